package hooks

import (
	"math"
	"reflect"
)

// Deps is the ordered list of values an effect or memo depends on.
//
// A nil Deps means "omitted": the slot is recomputed on every render.
// An empty, non-nil Deps (Deps{}) never changes, so the slot runs once at
// mount.
type Deps []any

// Is reports whether a and b are the same dependency value.
//
// It behaves like == for comparable values except that NaN is equal to
// itself. Slices, maps, pointers and channels compare by identity. Funcs are
// only equal when both are nil, since Go exposes no closure identity.
func Is(a, b any) bool {
	if isNaN(a) && isNaN(b) {
		return true
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	if va.Comparable() && vb.Comparable() {
		return a == b
	}

	switch va.Kind() {
	case reflect.Slice:
		return va.Len() == vb.Len() && va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Func:
		return va.IsNil() && vb.IsNil()
	default:
		return false
	}
}

// DepsEqual compares two dependency lists positionally with Is.
// An omitted (nil) list on either side is never equal.
func DepsEqual(prev, next Deps) bool {
	if prev == nil || next == nil {
		return false
	}
	if len(prev) != len(next) {
		return false
	}
	for i := range prev {
		if !Is(prev[i], next[i]) {
			return false
		}
	}
	return true
}

func isNaN(v any) bool {
	switch f := v.(type) {
	case float64:
		return math.IsNaN(f)
	case float32:
		return math.IsNaN(float64(f))
	case nil:
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return math.IsNaN(rv.Float())
	}
	return false
}
