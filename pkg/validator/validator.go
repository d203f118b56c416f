//nolint:gochecknoglobals
package validator

import (
	"errors"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// StorageKeyTag validates the key binding a client's transactions in a shared scope storage:
// letters, digits and the characters _ - . # only.
const StorageKeyTag = "storagekey"

var storageKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.#-]+$`)

// Validator - struct validation of configuration and pool settings.
type Validator struct {
	validate *validator.Validate
}

var (
	once              sync.Once
	validatorInstance *Validator
)

// NewValidator - Create a new Validator (singleton) with the custom tags registered.
func NewValidator() *Validator {
	once.Do(func() {
		validate := validator.New()
		_ = validate.RegisterValidation(StorageKeyTag, func(fl validator.FieldLevel) bool {
			return storageKeyPattern.MatchString(fl.Field().String())
		})

		validatorInstance = &Validator{validate: validate}
	})

	return validatorInstance
}

// ValidateStruct - apply validation, one response per failed field.
func (v *Validator) ValidateStruct(str any) []*ValidationErrorResponse {
	var valErrorsResResult []*ValidationErrorResponse

	err := v.validate.Struct(str)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []*ValidationErrorResponse{{Tag: "invalid", Value: err.Error()}}
	}

	for _, fe := range validationErrors {
		valErrorsResResult = append(valErrorsResResult, &ValidationErrorResponse{
			FailedField: fe.StructNamespace(),
			Tag:         fe.Tag(),
			Value:       fe.Param(),
		})
	}

	return valErrorsResResult
}
