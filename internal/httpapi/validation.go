package httpapi

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// bdPhonePattern matches Bangladesh mobile numbers in the +8801XXXXXXXXX or
// 01XXXXXXXXX formats.
var bdPhonePattern = regexp.MustCompile(`^(?:\+?880|0)1[3-9]\d{8}$`)

// newValidator builds the request validator with the service's custom rules.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("bd_phone", func(fl validator.FieldLevel) bool {
		return bdPhonePattern.MatchString(fl.Field().String())
	})
	// Report JSON field names in error details.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationDetails converts field errors into a field-to-message map.
func validationDetails(fieldErrs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[strings.ToLower(fe.Field())] = validationMessage(fe)
	}
	return details
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email address"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Must be at least " + fe.Param()
	case "bd_phone":
		return "Invalid Bangladesh phone number. Use format: +8801XXXXXXXXX or 01XXXXXXXXX"
	default:
		return "Invalid value"
	}
}
