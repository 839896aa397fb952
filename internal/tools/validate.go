package tools

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/klubi/relay/internal/apperrors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report violations by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return jsonName(f)
	})
	return v
}

// ValidateStruct checks in against its validate tags and reports failures as
// a ValidationError attributed to name.
func ValidateStruct(name string, in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(name, nil, err)
	}

	violations := make([]apperrors.Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, apperrors.Violation{
			Field:      fieldPath(fe),
			Constraint: fe.Tag(),
			Param:      fe.Param(),
		})
	}
	return apperrors.NewValidationError(name, violations, err)
}

// fieldPath drops the top-level struct name from the namespace, so nested
// and element failures read "labels[0]" rather than "CreateIssueInput.labels[0]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}
