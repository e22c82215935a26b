package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validationMessages turns validator errors into user-facing messages.
func validationMessages(err error) []string {
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	var errorMsgs []string
	for _, e := range validationErrors {
		// Customize error messages for better feedback
		switch e.Tag() {
		case "required":
			errorMsgs = append(errorMsgs, fmt.Sprintf("%s is required", e.Field()))
		default:
			errorMsgs = append(errorMsgs, fmt.Sprintf("%s failed on the '%s' tag", e.Field(), e.Tag()))
		}
	}

	return errorMsgs
}
