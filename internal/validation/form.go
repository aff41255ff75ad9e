package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Form checks request structs by their `validate` tags and reports failures
// under their JSON field names.
type Form struct {
	validate *validator.Validate
}

func NewForm() *Form {
	validate := validator.New()

	// fullname: letters, digits, spaces and a little punctuation
	_ = validate.RegisterValidation("fullname", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune(" .'-", r) {
				return false
			}
		}
		return true
	})

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Form{validate: validate}
}

// FieldError is one failed rule.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e FieldError) String() string {
	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", e.Field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", e.Field, e.Param)
	case "fullname":
		return fmt.Sprintf("%s may only contain letters, numbers and spaces", e.Field)
	default:
		return fmt.Sprintf("%s is invalid", e.Field)
	}
}

// FormError lists every failed rule in struct field order.
type FormError struct {
	Fields []FieldError
}

func (e *FormError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.String()
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

// Has reports whether field failed tag. An empty tag matches any rule.
func (e *FormError) Has(field, tag string) bool {
	for _, f := range e.Fields {
		if f.Field == field && (tag == "" || f.Tag == tag) {
			return true
		}
	}
	return false
}

// HasTag reports whether any field failed tag.
func (e *FormError) HasTag(tag string) bool {
	for _, f := range e.Fields {
		if f.Tag == tag {
			return true
		}
	}
	return false
}

// Check validates s and returns a *FormError when rules fail.
func (f *Form) Check(s any) error {
	err := f.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &FormError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}
