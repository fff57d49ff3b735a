package staff

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/easyspeak/console/core"
)

var (
	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to your name or email"
)

// InitValidators registers the staff package's struct validations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(registerStaffStructValidation, RegisterStaff{})

	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

func registerStaffStructValidation(sl validator.StructLevel) {
	rs := sl.Current().Interface().(RegisterStaff)
	validatePassword(sl, rs.Password, rs.Name, rs.Email)
}

func validatePassword(sl validator.StructLevel, pwd string, attrs ...string) {
	if pwd == "" {
		return // `required` handles empties
	}

	if len(pwd) < pwdMinLen {
		sl.ReportError(pwd, "password", "Password", pwdMinLenTag, "")
	}
	if strings.IndexFunc(pwd, unicode.IsSpace) >= 0 {
		sl.ReportError(pwd, "password", "Password", pwdNoSpaceTag, "")
	}
	if allNumeric(pwd) {
		sl.ReportError(pwd, "password", "Password", pwdNotAllNumTag, "")
	}
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		if similarity(pwd, attr) > pwdMaxSim {
			sl.ReportError(pwd, "password", "Password", pwdAttrSimTag, "")
			break
		}
	}
}

func allNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func similarity(pass, attr string) float64 {
	pass = strings.ToLower(pass)
	attr = strings.ToLower(attr)
	return difflib.NewMatcher(strings.Split(pass, ""), strings.Split(attr, "")).QuickRatio()
}
