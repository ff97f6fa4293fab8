package httputil

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
)

// Validation errors should name fields the way clients sent them, so
// the binding validator reports json tag names instead of Go field
// names.
func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// BindErrorMessage flattens a binding failure into one line for the
// error envelope, e.g. "doctor_id is required; end_utc is required".
func BindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !apperrors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldMessage(fe))
	}
	return strings.Join(parts, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s is too short", fe.Field())
	case "max":
		return fmt.Sprintf("%s is too long", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
