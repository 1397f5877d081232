package web

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

type validatorSvc struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *validatorSvc
)

func getValidator() *validatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// report json names, not Go field names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			name, _, _ := strings.Cut(tag, ",")
			return name
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)

		vSvc = &validatorSvc{validate: v, translator: trans}
	})
	return vSvc
}

// validateStruct returns translated messages keyed by json field name, or nil
// when s is valid
func validateStruct(s any) map[string][]string {
	svc := getValidator()

	err := svc.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string][]string{"form": {err.Error()}}
	}

	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = append(out[fe.Field()], fe.Translate(svc.translator))
	}
	return out
}
