package common

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator"
)

// FieldError names the first form field that failed validation and the rule it broke.
type FieldError struct {
	Field string
	Tag   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s failed on %s", e.Field, e.Tag)
}

type GenericEchoValidator struct {
	Validator *validator.Validate
	once      sync.Once
}

func NewGenericEchoValidator() *GenericEchoValidator {
	return &GenericEchoValidator{Validator: validator.New()}
}

// Validate satisfies echo.Validator. Struct fields are checked in declaration
// order, so the returned FieldError is the first failing field.
func (gv *GenericEchoValidator) Validate(i interface{}) error {
	gv.once.Do(func() {
		if gv.Validator == nil {
			gv.Validator = validator.New()
		}
	})
	err := gv.Validator.Struct(i)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		first := validationErrors[0]
		return &FieldError{Field: first.Field(), Tag: first.Tag()}
	}
	return err
}
