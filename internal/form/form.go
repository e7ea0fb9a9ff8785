// Package form validates portal form submissions before anything reaches the
// remote API.
package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"support-portal/internal/model"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Form is a submission that can clean itself up before validation.
type Form interface {
	Normalize()
}

// ValidationError reports every failing field plus the one message a user
// sees first.
type ValidationError struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return model.ErrValidation
}

// Validate normalizes f and checks its tags. It returns nil or a
// *ValidationError.
func Validate(f Form) error {
	f.Normalize()

	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	best := -1
	for _, fe := range fieldErrs {
		msg := message(fe)
		if _, seen := out.Fields[fe.Field()]; !seen {
			out.Fields[fe.Field()] = msg
		}

		rank := priority(fe.Tag())
		if best == -1 || rank < best {
			best = rank
			out.Message = msg
			if fe.Tag() == "required" {
				out.Message = "All fields are required"
			}
		}
	}

	return out
}

// Decode reads a JSON body into f and validates it.
func Decode(r *http.Request, f Form) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(f); err != nil {
		return fmt.Errorf("%w: malformed request body", model.ErrInvalidInput)
	}
	return Validate(f)
}

// A missing field blocks submission before anything else is checked, then a
// confirmation mismatch, then the remaining field rules.
func priority(tag string) int {
	switch tag {
	case "required":
		return 0
	case "eqfield":
		return 1
	default:
		return 2
	}
}

func message(fe validator.FieldError) string {
	label := fe.StructField()
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "eqfield":
		return "Passwords do not match"
	case "email":
		return "Please enter a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
