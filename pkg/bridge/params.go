package bridge

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const paramsKey = "bridge.params"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

// BindParams returns a handler that decodes the command object into a T,
// validates it against its `validate` tags and stores it for GetParams.
//
// Only properties whose names match a json tag exactly are bound; "PATH" does
// not fill a field tagged "path".
//
// A failed `required` rule answers with the full list of required properties,
// e.g. "Missing required properties for getpk: path, coin", regardless of how
// many are missing.
func BindParams[T any]() Handler {
	t := reflect.TypeFor[T]()
	required := requiredFields(t)
	known := jsonFields(t)

	return func(c *Context) {
		params, err := decodeExact[T](c.Params, known)
		if err != nil {
			c.Fail(Errorf("Invalid properties for %s: %s", c.Command, err.Error()), "")
			return
		}

		if err := validate.Struct(params); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				c.Logger.Debug("parameter validation failed", "error", verrs.Error())
				c.Fail(Errorf("Missing required properties for %s: %s", c.Command, strings.Join(required, ", ")), "")
				return
			}
			c.Fail(err, "")
			return
		}

		c.Set(paramsKey, params)
		c.Next()
	}
}

// GetParams returns the parameters bound by BindParams[T], or the zero T.
func GetParams[T any](c *Context) T {
	v, _ := c.Get(paramsKey)
	params, _ := v.(T)
	return params
}

// decodeExact decodes the object in data into a T, keeping only the keys listed
// in known. encoding/json alone would also match keys case-insensitively.
func decodeExact[T any](data []byte, known []string) (T, error) {
	var params T

	var props map[string]json.RawMessage
	if err := json.Unmarshal(data, &props); err != nil {
		return params, err
	}

	exact := make(map[string]json.RawMessage, len(known))
	for _, name := range known {
		if v, ok := props[name]; ok {
			exact[name] = v
		}
	}

	filtered, err := json.Marshal(exact)
	if err != nil {
		return params, err
	}
	if err := json.Unmarshal(filtered, &params); err != nil {
		return params, err
	}
	return params, nil
}

func jsonFields(t reflect.Type) []string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if name := jsonFieldName(f); name != "-" {
			fields = append(fields, name)
		}
	}
	return fields
}

func requiredFields(t reflect.Type) []string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !hasRule(f.Tag.Get("validate"), "required") {
			continue
		}
		if name := jsonFieldName(f); name != "-" {
			fields = append(fields, name)
		}
	}
	return fields
}

func hasRule(tag, rule string) bool {
	for _, r := range strings.Split(tag, ",") {
		if r == rule {
			return true
		}
	}
	return false
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}
