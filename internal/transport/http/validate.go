package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validator checks request shapes and renders failures in English with JSON field names.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewValidator() *Validator {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("letter", func(fl validator.FieldLevel) bool {
		v := strings.TrimSpace(fl.Field().String())
		return len(v) == 1 && strings.ContainsAny(strings.ToUpper(v), "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	})
	_ = validate.RegisterTranslation("letter", translator,
		func(t ut.Translator) error { return t.Add("letter", "{0} must be a single letter", false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T("letter", fe.Field())
			return s
		},
	)
	return &Validator{validate: validate, translator: translator}
}

// fieldErrors maps JSON field names to their translated message.
func (v *Validator) fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Translate(v.translator)
	}
	return out
}

// bind decodes the JSON body into dst and validates it. On failure the
// response is already written and false is returned.
func (v *Validator) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "validation", "malformed request body")
		return false
	}
	if err := v.validate.Struct(dst); err != nil {
		fields := v.fieldErrors(err)
		if fields == nil {
			respondError(c, http.StatusBadRequest, "validation", err.Error())
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, errorEnvelope{Error: apiError{
			Message: "request validation failed",
			Code:    "validation",
			Fields:  fields,
		}})
		return false
	}
	return true
}
