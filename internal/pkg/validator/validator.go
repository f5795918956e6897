// Package validator validates configuration structs by the "validate" tags.
package validator

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslation "github.com/go-playground/validator/v10/translations/en"

	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

type Validation struct {
	Tag  string
	Func validator.Func
}

func Validate(ctx context.Context, value any, rules ...Validation) error {
	return ValidateCtx(ctx, value, "dive", "", rules...)
}

func ValidateCtx(ctx context.Context, value any, tag string, fieldName string, rules ...Validation) error {
	validate, enTranslator := newValidator(rules...)

	// Structs are validated by the field tags, other values by the tag parameter.
	var err error
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr && !v.IsNil() {
		v = v.Elem()
	}
	if v.Kind() == reflect.Struct {
		err = validate.StructCtx(ctx, value)
	} else {
		err = validate.VarCtx(ctx, value, tag)
	}

	if err != nil {
		var validationErrs validator.ValidationErrors
		switch {
		case errors.As(err, &validationErrs):
			return processValidateError(validationErrs, enTranslator, fieldName)
		default:
			panic(err)
		}
	}

	return nil
}

func newValidator(rules ...Validation) (*validator.Validate, ut.Translator) {
	validate := validator.New()

	// Register default EN translator
	enLocale := en.New()
	enTranslator, found := ut.New(enLocale, enLocale).GetTranslator("en")
	if !found {
		panic(errors.New("en translator was not found"))
	}
	if err := enTranslation.RegisterDefaultTranslations(validate, enTranslator); err != nil {
		panic(errors.PrefixError(err, "translator was not registered"))
	}

	// Register custom validation rules
	for _, rule := range rules {
		if err := validate.RegisterValidation(rule.Tag, rule.Func); err != nil {
			panic(err)
		}
	}

	// Use JSON field name in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if fld.Anonymous {
			return "__nested__"
		}
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return validate, enTranslator
}

// processNamespace removes struct name (first part), field name (last part) and anonymous parts.
func processNamespace(namespace string) string {
	namespace = strings.ReplaceAll(namespace, `__nested__.`, ``)
	parts := strings.Split(namespace, ".")
	if len(parts) <= 2 {
		return ""
	}
	return strings.Join(parts[1:len(parts)-1], ".")
}

func processValidateError(err validator.ValidationErrors, translator ut.Translator, fieldName string) error {
	result := errors.NewMultiError()
	for _, e := range err {
		msg := e.Translate(translator)
		if namespace := processNamespace(e.Namespace()); namespace != "" {
			msg = namespace + "." + msg
		} else if fieldName != "" {
			msg = fieldName + msg
		}
		result.Append(errors.New(msg))
	}

	return result.ErrorOrNil()
}
