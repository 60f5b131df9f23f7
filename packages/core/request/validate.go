package request

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("method", func(fl validator.FieldLevel) bool {
			return model.Method(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("bodytype", func(fl validator.FieldLevel) bool {
			return model.BodyType(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// Validate checks the definition before any variable is resolved. Failures
// are ValidationErrors listing every offending field.
func Validate(def *model.Definition) error {
	if def == nil {
		return errdef.New(errdef.KindValidation, "request definition is required")
	}

	var problems []string
	if err := validatorInstance().Struct(def); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errdef.Wrap(errdef.KindValidation, err, "validate request")
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}
	for i, h := range def.Headers {
		if err := checkHeaderName(h.Key); err != nil {
			problems = append(problems, fmt.Sprintf("headers[%d]: %v", i, err))
		}
	}

	if len(problems) > 0 {
		return errdef.New(errdef.KindValidation, "invalid request definition: %s", strings.Join(problems, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "method":
		return fmt.Sprintf("method %q is not one of %s", fe.Value(), joinMethods())
	case "bodytype":
		return fmt.Sprintf("bodyType %q is not supported", fe.Value())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

func joinMethods() string {
	names := make([]string, len(model.Methods))
	for i, m := range model.Methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// checkHeaderName enforces the RFC 7230 token grammar for header keys.
func checkHeaderName(name string) error {
	if name == "" {
		return fmt.Errorf("header key is required")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c >= 0x7f || strings.IndexByte(`"(),/:;<=>?@[\]{}`, c) >= 0 {
			return fmt.Errorf("invalid header key %q", name)
		}
	}
	return nil
}
