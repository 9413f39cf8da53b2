package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v *validator.Validate

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	if v == nil {
		v = validator.New()
		// Custom: dataset path must have a supported extension
		_ = v.RegisterValidation("dataset_ext", func(fl validator.FieldLevel) bool {
			s := strings.ToLower(strings.TrimSpace(fl.Field().String()))
			if s == "" {
				return false
			}
			return strings.HasSuffix(s, ".csv") || strings.HasSuffix(s, ".xlsx")
		})
		// Custom: ISO currency code from the supported fetch set
		_ = v.RegisterValidation("currency_code", func(fl validator.FieldLevel) bool {
			s := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
			switch s {
			case "EUR", "USD", "TRY":
				return true
			}
			return false
		})
		// Custom: non-blank string (rejects whitespace-only values that
		// "required" lets through)
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	}
	return v
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for MCP tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	if err := Validator().Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required", "notblank":
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "dataset_ext":
				return "VALIDATION: path must be a .csv or .xlsx dataset"
			case "currency_code":
				return "VALIDATION: base_currency must be one of EUR, USD, TRY"
			case "min", "max", "gte", "lte":
				return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
			case "oneof":
				return fmt.Sprintf("VALIDATION: %s must be one of %s", field, fe.Param())
			}
			return fmt.Sprintf("VALIDATION: invalid %s", field)
		}
		return "VALIDATION: invalid inputs"
	}
	return ""
}
