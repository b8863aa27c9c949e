// Package validate checks request structs against `validate` struct tags.
//
// Rules, comma separated:
//
//	required     not zero; strings must hold a non-blank character, pointers
//	             must be non-nil and point at a non-empty value
//	nullable     skip the remaining rules when the field is empty or a nil
//	             pointer
//	min=N        strings: at least N characters; numbers: at least N
//	max=N        strings: at most N characters; numbers: at most N
//	in=a|b|c     value must be one of the listed items
//
// Pointer fields are dereferenced before min, max and in, so optional PATCH
// fields are written as `validate:"nullable,max=255"`, and optional fields
// that must not be blank when present as `validate:"nullable,required"`.
//
//	type storeProduct struct {
//	    Name string `json:"name" validate:"required,max=255"`
//	}
package validate

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Errors maps a JSON field name to its first failing rule's message.
type Errors map[string]string

// Struct validates every exported field of v that carries a `validate` tag.
// The result is empty when v is valid.
func Struct(v interface{}) Errors {
	errs := Errors{}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return errs
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return errs
	}
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" || !field.IsExported() {
			continue
		}

		value := rv.Field(i)
		rules := strings.Split(tag, ",")
		if hasRule(rules, "nullable") && isAbsent(value) {
			continue
		}

		name := jsonFieldName(field)
		for _, rule := range rules {
			if msg := apply(strings.TrimSpace(rule), value); msg != "" {
				errs[name] = msg
				break
			}
		}
	}
	return errs
}

// HasErrors reports whether errs holds any message.
func HasErrors(errs Errors) bool { return len(errs) > 0 }

func apply(rule string, v reflect.Value) string {
	key, param, _ := strings.Cut(rule, "=")

	if key == "required" {
		if isEmpty(v) {
			return "is required"
		}
		return ""
	}

	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	switch key {
	case "nullable", "":
	case "min":
		n := parseFloat(param)
		if isNumeric(v) {
			if toFloat(v) < n {
				return "must be at least " + param
			}
		} else if float64(length(v)) < n {
			return "must be at least " + param + " characters"
		}
	case "max":
		n := parseFloat(param)
		if isNumeric(v) {
			if toFloat(v) > n {
				return "must be at most " + param
			}
		} else if float64(length(v)) > n {
			return "must be at most " + param + " characters"
		}
	case "in":
		raw := fmt.Sprint(v.Interface())
		for _, opt := range strings.Split(param, "|") {
			if raw == opt {
				return ""
			}
		}
		return "must be one of " + strings.ReplaceAll(param, "|", ", ")
	default:
		panic(fmt.Sprintf("validate: unknown rule %q", rule))
	}
	return ""
}

func hasRule(rules []string, name string) bool {
	for _, r := range rules {
		if strings.TrimSpace(r) == name {
			return true
		}
	}
	return false
}

func isAbsent(v reflect.Value) bool {
	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		return v.IsNil()
	}
	return isEmpty(v)
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil() || isEmpty(v.Elem())
	case reflect.Bool:
		return false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	}
	return false
}

func length(v reflect.Value) int {
	if v.Kind() == reflect.String {
		return utf8.RuneCountInString(strings.TrimSpace(v.String()))
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len()
	}
	return utf8.RuneCountInString(fmt.Sprint(v.Interface()))
}

func isNumeric(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	}
	return v.Float()
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return strings.ToLower(f.Name)
	}
	return name
}
