package gateway

import (
	"errors"
	"regexp"
	"strings"

	"kazi/apperrors"
)

var ErrInvalidPhone = errors.New("gateway: invalid phone number")

// Safaricom 07XX and Airtel/Safaricom 01XX ranges in international form.
var canonicalPhone = regexp.MustCompile(`^254[71][0-9]{8}$`)

var phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// NormalizePhone converts local (07.., 01..), international (+254.., 254..)
// and bare subscriber (7.., 1..) numbers to 2547XXXXXXXX / 2541XXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	p := strings.TrimPrefix(phoneNoise.Replace(strings.TrimSpace(raw)), "+")
	switch {
	case len(p) == 10 && strings.HasPrefix(p, "0"):
		p = "254" + p[1:]
	case len(p) == 9 && (p[0] == '7' || p[0] == '1'):
		p = "254" + p
	}
	if !canonicalPhone.MatchString(p) {
		return "", apperrors.Wrap(apperrors.KindValidation, apperrors.MsgInvalidPhone, ErrInvalidPhone)
	}
	return p, nil
}
