package localidp

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/shule-app/shule/core"
)

// password policy
var (
	pwdMinLen    = 8
	pwdMinLenErr = errors.Errorf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceErr = errors.New("password must not contain whitespace")
	pwdAllNumErr  = errors.New("password cannot be entirely numeric")
	pwdMaxSim     = .7
	pwdAttrSimErr = errors.New("password cannot be similar to user attributes")
)

// validatePassword enforces the password policy. userAttrs are account
// attributes (email, display name) the password may not resemble.
func validatePassword(pwd string, userAttrs ...string) error {
	if len(pwd) < pwdMinLen {
		return fieldError("password", pwdMinLenErr)
	}
	if strings.IndexFunc(pwd, unicode.IsSpace) >= 0 {
		return fieldError("password", pwdNoSpaceErr)
	}
	if isAllNumeric(pwd) {
		return fieldError("password", pwdAllNumErr)
	}

	lowerPwd := strings.ToLower(pwd)
	for _, attr := range userAttrs {
		attr = core.CleanString(attr, true /* lower */)
		if attr == "" {
			continue
		}
		if similarity(lowerPwd, attr) > pwdMaxSim {
			return fieldError("password", pwdAttrSimErr)
		}
		// also match against local parts of emails and word fragments
		for _, part := range strings.FieldsFunc(attr, func(r rune) bool { return r == '@' || r == '.' || r == ' ' }) {
			if len(part) >= pwdMinLen/2 && similarity(lowerPwd, part) > pwdMaxSim {
				return fieldError("password", pwdAttrSimErr)
			}
		}
	}
	return nil
}

func isAllNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func similarity(pwd, attr string) float64 {
	return difflib.NewMatcher(strings.Split(pwd, ""), strings.Split(attr, "")).QuickRatio()
}

func fieldError(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}
