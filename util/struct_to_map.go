// Package util flattens config structs into rows for the startup table.
package util

import (
	"fmt"
	"reflect"
	"runtime"
	"sort"
)

// StrToMap flattens the exported fields of v into sorted [path, value] rows.
// Nested structs and struct pointers become dotted paths. Values with a
// String or Name method are rendered through it, other interfaces by their
// dynamic type.
func StrToMap(path string, v interface{}) [][]string {
	rows := make(map[string]string)
	flatten(rows, path, reflect.ValueOf(v))

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, []string{k, rows[k]})
	}

	return out
}

func flatten(rows map[string]string, parent string, v reflect.Value) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	typ := v.Type()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if !f.CanInterface() {
			continue
		}

		path := typ.Field(i).Name
		if parent != `` {
			path = parent + `.` + path
		}

		if (f.Kind() == reflect.Ptr || f.Kind() == reflect.Interface || f.Kind() == reflect.Func) && f.IsNil() {
			rows[path] = `<nil>`
			continue
		}

		if s, ok := describe(f); ok {
			rows[path] = s
			continue
		}

		switch f.Kind() {
		case reflect.Ptr, reflect.Struct:
			flatten(rows, path, f)
		case reflect.Interface:
			rows[path] = fmt.Sprintf(`%T`, f.Interface())
		default:
			rows[path] = toString(f)
		}
	}
}

// describe renders values implementing fmt.Stringer or exposing Name().
func describe(v reflect.Value) (string, bool) {
	switch i := v.Interface().(type) {
	case fmt.Stringer:
		return i.String(), true
	case interface{ Name() string }:
		return i.Name(), true
	}

	return ``, false
}

func toString(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Map, reflect.Array, reflect.Slice:
		return fmt.Sprintf(`%+v`, v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf(`%d`, v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf(`%d`, v.Uint())
	case reflect.Bool:
		return fmt.Sprint(v.Bool())
	case reflect.Float64, reflect.Float32:
		return fmt.Sprint(v.Float())
	case reflect.Func:
		return runtime.FuncForPC(v.Pointer()).Name()
	default:
		return v.String()
	}
}
