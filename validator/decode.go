package validator

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/voxelhub/community-backend/errors"
	"go.vocdoni.io/dvote/log"
)

// maxBodyBytes bounds the size of a JSON request body.
const maxBodyBytes = 1 << 20

// ValidationError represents an individual validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a slice of ValidationError.
type ValidationErrors []ValidationError

// Error returns a string representation of the validation errors.
func (ve ValidationErrors) Error() string {
	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return sb.String()
}

// DecodeJSON reads the JSON request body into dst and validates it. The
// returned error is an errors.Error ready to be written to the client.
func (v *Validator) DecodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.ErrMalformedBody.WithErr(err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.ErrMalformedBody.WithErr(err)
	}
	if err := v.validator.Struct(dst); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return errors.ErrMalformedBody.WithErr(err)
		}
		var validationErrors ValidationErrors
		for _, fieldErr := range fieldErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fieldErr.Field(),
				Message: getErrorMessage(fieldErr),
			})
		}
		log.Debugw("validation errors", "errors", validationErrors)
		return errors.ErrMalformedBody.WithErr(validationErrors).WithData(validationErrors)
	}
	return nil
}

// getErrorMessage returns a human-readable error message for a validation error.
func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s", err.Param())
	case "url":
		return "Invalid URL format"
	case "mcname":
		return "Invalid Minecraft name (3 to 16 letters, digits or underscores)"
	case "currency":
		return "Invalid currency (lowercase ISO 4217 code)"
	case "serveraddr":
		return "Invalid server address (host with optional port)"
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", err.Param())
	default:
		return fmt.Sprintf("Invalid value: %s", err.Tag())
	}
}
