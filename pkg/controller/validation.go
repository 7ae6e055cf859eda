package controller

import (
	"errors"
	"reflect"
)

// Validator is an interface that DTOs can implement to provide custom validation logic
type Validator interface {
	Validate() error
}

// ValidateDTO validates a DTO implementing Validator. Errors already known to
// MapError are returned unchanged, anything else becomes a validation error.
func ValidateDTO(dto interface{}) error {
	if dto == nil {
		return NewValidationError("dto cannot be nil", nil)
	}

	// Check for nil pointer before type assertion
	v := reflect.ValueOf(dto)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return NewValidationError("dto cannot be nil", nil)
	}

	validator, ok := dto.(Validator)
	if !ok {
		return nil
	}
	err := validator.Validate()
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) || toAppError(err) != nil {
		return err
	}
	return NewValidationError(err.Error(), map[string]interface{}{"cause": err.Error()})
}
