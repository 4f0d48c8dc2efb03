package registry

import "reflect"

// ToFieldMap exports c's exported fields as a name->value map, for handing to
// a scripted hook that only knows field names, not Go types. Supports the
// scalar kinds a component's Serialize/Deserialize pair can round-trip
// (numbers, strings, bools); any other field kind is skipped.
func ToFieldMap(c any) map[string]any {
	v := reflect.ValueOf(c)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		if isScalarKind(v.Field(i).Kind()) {
			out[f.Name] = v.Field(i).Interface()
		}
	}
	return out
}

// FromFieldMap writes values back onto c's exported fields by name, skipping
// names it doesn't recognize and values whose type is not convertible to the
// field's type (convertible values, e.g. a float64 for an int32 field, are
// converted). Used to apply a scripted hook's modifications back onto a
// component after ToFieldMap round-tripped it through Lua.
func FromFieldMap(c any, fields map[string]any) {
	v := reflect.ValueOf(c)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		val, ok := fields[f.Name]
		if !ok {
			continue
		}
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}
		rv := reflect.ValueOf(val)
		if rv.Type().ConvertibleTo(fv.Type()) {
			fv.Set(rv.Convert(fv.Type()))
		}
	}
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}
