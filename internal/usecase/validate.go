package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/you-humble/jobclient/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their form names so messages match what
// the server calls them.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

func validateForm(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate form: %w", err)
	}

	fe := verrs[0]
	return &domain.ValidationError{Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be an e-mail address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gtefield":
		return "must not be less than " + fieldName(fe)
	case "alpha":
		return "must be a column letter"
	default:
		return "failed " + fe.Tag()
	}
}

func fieldName(fe validator.FieldError) string {
	switch fe.Param() {
	case "StartRow":
		if strings.HasSuffix(fe.Field(), "_email") {
			return "start_row_email"
		}
		return "start_row"
	default:
		return fe.Param()
	}
}
