package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
)

// maxBodyBytes bounds every storefront request body; the largest legitimate
// one is a checkout contact block.
const maxBodyBytes = 64 << 10

var validate = newValidator()

// newValidator reports field errors under their JSON names so clients see
// "product_id" rather than "ProductID".
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// DecodeJSONBody decodes a required JSON object into dest and runs its
// validate tags. Unknown fields are rejected.
func DecodeJSONBody(r *http.Request, dest any) error {
	present, err := decodeBody(r, dest)
	if err != nil {
		return err
	}
	if !present {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	}
	return validateStruct(dest)
}

// DecodeOptionalJSONBody is DecodeJSONBody for endpoints where the body may be
// left out. A missing or empty body, chunked or not, leaves dest untouched.
func DecodeOptionalJSONBody(r *http.Request, dest any) error {
	present, err := decodeBody(r, dest)
	if err != nil || !present {
		return err
	}
	return validateStruct(dest)
}

func decodeBody(r *http.Request, dest any) (bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, nil
	}
	body := io.LimitReader(r.Body, maxBodyBytes)
	defer io.Copy(io.Discard, body)

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dest)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return true, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]any{"error": err.Error()})
	}
	return true, nil
}

func validateStruct(dest any) error {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return "is invalid"
}
