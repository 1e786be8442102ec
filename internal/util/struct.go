package util

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// IsStructInitialized reports whether all pointer and interface fields of
// the given struct are non-nil. Used by the readiness probe to detect
// components that were never wired.
func IsStructInitialized(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return errors.New("not a struct")
	}

	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)

		switch field.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Chan, reflect.Func:
			if field.IsNil() {
				return fmt.Errorf("field %q is not initialized", t.Field(i).Name)
			}
		default:
			continue
		}
	}

	return nil
}
