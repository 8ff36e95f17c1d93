package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type registerForm struct {
	Name     string          `json:"name" validate:"required,min=2,max=100"`
	Email    string          `json:"email" validate:"required,email"`
	Phone    string          `json:"phone" validate:"required,phoneke"`
	Role     string          `json:"role" validate:"oneof=owner|worker"`
	Password string          `json:"password" validate:"required,min=6"`
	Confirm  string          `json:"confirm" validate:"eqfield=Password"`
	Budget   decimal.Decimal `json:"budget" validate:"required"`
}

func validForm() registerForm {
	return registerForm{
		Name: "Wanjiru", Email: "wanjiru@example.com", Phone: "0712 345 678",
		Password: "secret1", Confirm: "secret1", Budget: decimal.NewFromInt(500),
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	f := validForm()
	assert.NoError(t, ValidateStruct(&f))
}

func TestValidateStruct_Rules(t *testing.T) {
	cases := map[string]func(f *registerForm){
		"name is required":                  func(f *registerForm) { f.Name = "  " },
		"name must be at least 2":           func(f *registerForm) { f.Name = "W" },
		"email must be a valid":             func(f *registerForm) { f.Email = "not-an-email" },
		"phone must be a Kenyan":            func(f *registerForm) { f.Phone = "0812345678" },
		"role must be one of owner, worker": func(f *registerForm) { f.Role = "admin" },
		"password must be at least 6":       func(f *registerForm) { f.Password, f.Confirm = "abc", "abc" },
		"confirm must equal Password":       func(f *registerForm) { f.Confirm = "other" },
		"budget is required":                func(f *registerForm) { f.Budget = decimal.Decimal{} },
	}
	for want, mutate := range cases {
		f := validForm()
		mutate(&f)
		err := ValidateStruct(f)
		if assert.Error(t, err, want) {
			assert.Contains(t, err.Error(), want)
		}
	}
}

func TestValidateStruct_RejectsNonStruct(t *testing.T) {
	assert.Error(t, ValidateStruct("nope"))
}
