package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldErrors flattens a binding error into a field -> message map for the
// {status:false, errors:{...}} envelope. Non-validator errors (bad JSON,
// wrong content type) land under a single "body" key.
func FieldErrors(err error) map[string]string {
	out := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["body"] = err.Error()
		return out
	}

	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s can not be blank", fe.Field())
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		default:
			out[field] = fmt.Sprintf("%s is not valid", fe.Field())
		}
	}
	return out
}
