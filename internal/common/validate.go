package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes bounds request bodies decoded by DecodeJSON.
const MaxBodyBytes = 4 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "-" {
			return ""
		}
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// DecodeJSON decodes the request body into dst and validates it with the
// struct's `validate` tags. Malformed bodies yield BAD_REQUEST; failed rules
// yield VALIDATION_FAILED with one message per field path.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		details := map[string]any{"error": err.Error()}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			details["offset"] = syntaxErr.Offset
		}
		return BadRequest("invalid request body", err).WithDetails(details)
	}
	return ValidateStruct(dst)
}

// ValidateStruct runs the shared validator on v.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := make(map[string]string, len(errs))
		for _, fe := range errs {
			details[fieldPath(fe)] = validationMessage(fe)
		}
		return NewAppError(CodeValidationFailed, "validation failed", http.StatusUnprocessableEntity, err).WithDetails(details)
	}
	return NewAppError(CodeValidationFailed, "validation failed", http.StatusUnprocessableEntity, err)
}

// fieldPath drops the root struct name from the namespace: items[0].quantity.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return "is invalid"
}
