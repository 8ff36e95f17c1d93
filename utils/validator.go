package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Minimal tag validator. Supports:
// - required
// - min=N / max=N (string length in runes)
// - email
// - phoneke (07.., 01.., +2547.., 2541.., 7.. local or international forms)
// - oneof=a|b|c
// - eqfield=OtherField

var (
	reEmail   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	rePhoneKE = regexp.MustCompile(`^(\+?254|0)?[71][0-9]{8}$`)
)

// ValidateStruct inspects struct tags `validate:"..."` and returns the first error encountered.
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return errors.New("ValidateStruct expects a struct or pointer to struct")
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}
		name := fieldName(field)
		fv := v.Field(i)
		var sval string
		isString := fv.Kind() == reflect.String
		if isString {
			sval = strings.TrimSpace(fv.String())
		}
		for _, p := range strings.Split(tag, ",") {
			p = strings.TrimSpace(p)
			switch {
			case p == "required":
				if (isString && sval == "") || (!isString && fv.IsZero()) {
					return fmt.Errorf("%s is required", name)
				}
			case p == "email":
				if sval != "" && !reEmail.MatchString(sval) {
					return fmt.Errorf("%s must be a valid email address", name)
				}
			case p == "phoneke":
				if sval != "" && !rePhoneKE.MatchString(strings.NewReplacer(" ", "", "-", "").Replace(sval)) {
					return fmt.Errorf("%s must be a Kenyan mobile number", name)
				}
			case strings.HasPrefix(p, "min="):
				n, _ := strconv.Atoi(strings.TrimPrefix(p, "min="))
				if isString && utf8.RuneCountInString(sval) < n {
					return fmt.Errorf("%s must be at least %d characters", name, n)
				}
			case strings.HasPrefix(p, "max="):
				n, _ := strconv.Atoi(strings.TrimPrefix(p, "max="))
				if isString && utf8.RuneCountInString(sval) > n {
					return fmt.Errorf("%s must be at most %d characters", name, n)
				}
			case strings.HasPrefix(p, "oneof="):
				if sval == "" {
					continue
				}
				allowed := strings.Split(strings.TrimPrefix(p, "oneof="), "|")
				ok := false
				for _, a := range allowed {
					if a == sval {
						ok = true
						break
					}
				}
				if !ok {
					return fmt.Errorf("%s must be one of %s", name, strings.Join(allowed, ", "))
				}
			case strings.HasPrefix(p, "eqfield="):
				other := strings.TrimPrefix(p, "eqfield=")
				of := v.FieldByName(other)
				if of.IsValid() && of.Kind() == reflect.String && fv.String() != of.String() {
					return fmt.Errorf("%s must equal %s", name, other)
				}
			}
		}
	}
	return nil
}

func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		if n := strings.Split(tag, ",")[0]; n != "" && n != "-" {
			return n
		}
	}
	return f.Name
}
