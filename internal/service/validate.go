package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/msomdec/revtrack/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if label := f.Tag.Get("label"); label != "" {
			return label
		}
		return strings.ToLower(f.Name)
	})
	return v
}

// validateInput runs struct validation and reports the first failure as
// ErrInvalidInput with a readable message.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, fe.Field())
	case "max":
		return fmt.Errorf("%w: %s must be at most %s characters", domain.ErrInvalidInput, fe.Field(), fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Errorf("%w: %s must not be empty", domain.ErrInvalidInput, fe.Field())
		}
		return fmt.Errorf("%w: %s must be at least %s", domain.ErrInvalidInput, fe.Field(), fe.Param())
	case "gte":
		return fmt.Errorf("%w: %s must be at least %s", domain.ErrInvalidInput, fe.Field(), fe.Param())
	case "oneof":
		return fmt.Errorf("%w: %s must be one of %s", domain.ErrInvalidInput, fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return fmt.Errorf("%w: %s must be a valid email address", domain.ErrInvalidInput, fe.Field())
	default:
		return fmt.Errorf("%w: %s is invalid", domain.ErrInvalidInput, fe.Field())
	}
}
