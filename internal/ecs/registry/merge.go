package registry

import (
	"reflect"

	"github.com/scenegraph/syncengine/internal/ecs"
)

// Merge copies every exported field from src into dst wherever the two
// differ, and returns whether anything changed. dst and src must be
// non-nil pointers to the same concrete struct type; any other combination
// is a no-op returning false, matching original_source's MergeComponents
// precondition ("both non-null and same concrete type, else no-op").
//
// original_source's Merger<T> detects per-field inequality at compile time
// via a HasInequalityOperators<T> trait and a generated per-type thunk
// table. Go has no compile-time reflection over struct fields, so this is
// done at runtime with reflect.DeepEqual per field — the direct Go
// generalization of the same idea (see DESIGN.md). Unexported fields are
// skipped (Go reflection cannot set them); this is the Go analogue of the
// original's "skip fields lacking comparison support" escape hatch.
func Merge(dst, src ecs.Component) bool {
	if dst == nil || src == nil {
		return false
	}
	dv := reflect.ValueOf(dst)
	sv := reflect.ValueOf(src)
	if dv.Type() != sv.Type() {
		return false
	}
	if dv.Kind() != reflect.Ptr || dv.IsNil() || sv.Kind() != reflect.Ptr || sv.IsNil() {
		return false
	}
	dElem := dv.Elem()
	sElem := sv.Elem()
	if dElem.Kind() != reflect.Struct {
		return false
	}

	changed := false
	t := dElem.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).PkgPath != "" {
			continue // unexported: cannot Set, skip (mirrors "fields lacking comparison support")
		}
		df := dElem.Field(i)
		sf := sElem.Field(i)
		if !df.CanSet() {
			continue
		}
		if !reflect.DeepEqual(df.Interface(), sf.Interface()) {
			df.Set(sf)
			changed = true
		}
	}

	if changed {
		if am, ok := dst.(ecs.AfterMerger); ok {
			am.OnAfterMerge()
		}
	}
	return changed
}
