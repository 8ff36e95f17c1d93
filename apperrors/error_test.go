package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"kazi/apperrors"
	"kazi/translator"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMain(m *testing.M) {
	translator.Translator = i18n.NewBundle(language.English)
	_ = translator.Translator.AddMessages(language.Swahili, &i18n.Message{
		ID:    apperrors.MsgTaskNotFound,
		Other: "Kazi haikupatikana",
	})
	m.Run()
}

func TestHTTPStatus_MapsEveryKind(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperrors.Validation(apperrors.MsgInvalidPhone), http.StatusBadRequest},
		{apperrors.Unauthenticated(apperrors.MsgUnauthorized), http.StatusUnauthorized},
		{apperrors.Authorization(apperrors.MsgNotTaskOwner), http.StatusForbidden},
		{apperrors.NotFound(apperrors.MsgTaskNotFound), http.StatusNotFound},
		{apperrors.Conflict(apperrors.MsgTaskAlreadyPaid), http.StatusConflict},
		{apperrors.Gateway(apperrors.MsgGatewayAuth, errors.New("401")), http.StatusBadGateway},
		{apperrors.Internal(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, apperrors.HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestKindOf_SeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("apply: %w", apperrors.Conflict(apperrors.MsgAlreadyApplied))
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.False(t, apperrors.Is(nil, apperrors.KindConflict))
}

func TestWrap_UnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := apperrors.Gateway(apperrors.MsgGatewayUnavailable, cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "refused")
}

func TestLocalizedMessage(t *testing.T) {
	err := apperrors.NotFound(apperrors.MsgTaskNotFound)
	assert.Equal(t, "Kazi haikupatikana", apperrors.LocalizedMessage(err, translator.LanguageSw))
	assert.Equal(t, "Task not found", apperrors.LocalizedMessage(err, translator.LanguageEn))

	internal := apperrors.Internal(errors.New("sql: connection refused"))
	assert.Equal(t, apperrors.DefaultMessage(apperrors.MsgInternal), apperrors.LocalizedMessage(internal, translator.LanguageEn))
}

func TestDefaultMessage_UnknownIDFallsBackToID(t *testing.T) {
	assert.Equal(t, "someUnknownKey", apperrors.DefaultMessage("someUnknownKey"))
}
