package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// studentNumberPattern matches the institutional YY-XXXX-XXX student id format.
var studentNumberPattern = regexp.MustCompile(`^\d{2}-\d{4}-\d{3}$`)

// New builds the validator instance used across the API, with the custom
// student_id rule registered.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("student_id", func(fl validator.FieldLevel) bool {
		return studentNumberPattern.MatchString(fl.Field().String())
	})

	return v
}
