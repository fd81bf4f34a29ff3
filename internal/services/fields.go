package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var fields *validator.Validate

func init() {
	fields = validator.New()

	// Report JSON field names rather than Go field names.
	fields.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidateStruct checks validate tags and returns a map of field errors, or
// nil when s is valid.
func ValidateStruct(s interface{}) map[string]string {
	err := fields.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out[field] = "This field is required"
		case "email":
			out[field] = "Invalid email format"
		case "min":
			out[field] = "Value is too short (min: " + e.Param() + ")"
		case "max":
			out[field] = "Value is too long (max: " + e.Param() + ")"
		case "oneof":
			out[field] = "Must be one of: " + e.Param()
		case "uuid":
			out[field] = "Invalid identifier"
		case "url":
			out[field] = "Invalid URL format"
		default:
			out[field] = "Invalid value"
		}
	}
	return out
}
