package domain

import (
	"reflect"

	"github.com/mohae/deepcopy"
)

// State is the workflow state threaded through a run.
type State map[string]any

// Merge folds a partial result into s in place.
// A key present on both sides whose old and new values are both lists is extended;
// any other key is set or overwritten.
func (s State) Merge(partial map[string]any) {
	for key, value := range partial {
		if old, ok := s[key]; ok && isList(old) && isList(value) {
			s[key] = extend(old, value)
			continue
		}
		s[key] = value
	}
}

// Clone returns a deep copy of s. A nil state clones to an empty one.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	c, ok := deepcopy.Copy(map[string]any(s)).(map[string]any)
	if !ok || c == nil {
		return State{}
	}
	return State(c)
}

// isList reports whether v is a slice or array. Byte slices are treated as scalars.
func isList(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func extend(old, value any) any {
	ov, nv := reflect.ValueOf(old), reflect.ValueOf(value)
	if ov.Kind() == reflect.Slice && ov.Type() == nv.Type() {
		// Never append into old: its backing array may belong to a node function.
		out := reflect.MakeSlice(ov.Type(), 0, ov.Len()+nv.Len())
		out = reflect.AppendSlice(out, ov)
		return reflect.AppendSlice(out, nv).Interface()
	}
	out := make([]any, 0, ov.Len()+nv.Len())
	for i := 0; i < ov.Len(); i++ {
		out = append(out, ov.Index(i).Interface())
	}
	for i := 0; i < nv.Len(); i++ {
		out = append(out, nv.Index(i).Interface())
	}
	return out
}
