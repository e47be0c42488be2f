package autoloop

import (
	"encoding/json"
	"reflect"
)

// outputsAgree runs the comparison cascade spec.md §4.10 describes for
// shadow testing: exact equality, normalized-JSON equality (sorted
// keys via encoding/json's own map ordering), semantic-dict equality,
// then semantic-list equality (element-wise, falling back to a
// multiset comparison when elements are hashable).
func outputsAgree(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}

	aj, aerr := json.Marshal(a)
	bj, berr := json.Marshal(b)
	if aerr == nil && berr == nil && string(aj) == string(bj) {
		return true
	}

	if semanticDictEqual(a, b) {
		return true
	}

	return semanticListEqual(a, b)
}

func semanticDictEqual(a, b any) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if !aok || !bok || len(am) != len(bm) {
		return false
	}
	for k, av := range am {
		bv, ok := bm[k]
		if !ok || !outputsAgree(av, bv) {
			return false
		}
	}
	return true
}

func semanticListEqual(a, b any) bool {
	al, aok := a.([]any)
	bl, bok := b.([]any)
	if !aok || !bok || len(al) != len(bl) {
		return false
	}

	elementwise := true
	for i := range al {
		if !outputsAgree(al[i], bl[i]) {
			elementwise = false
			break
		}
	}
	if elementwise {
		return true
	}

	return multisetEqual(al, bl)
}

// multisetEqual compares two slices as bags, ignoring order. Elements
// that aren't hashable (maps, slices) make the comparison fail rather
// than panic on an unhashable map key.
func multisetEqual(a, b []any) bool {
	counts := make(map[any]int, len(a))
	for _, v := range a {
		key, ok := hashableKey(v)
		if !ok {
			return false
		}
		counts[key]++
	}
	for _, v := range b {
		key, ok := hashableKey(v)
		if !ok {
			return false
		}
		counts[key]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

func hashableKey(v any) (any, bool) {
	switch v.(type) {
	case string, bool, float64, float32, int, int32, int64, nil:
		return v, true
	default:
		return nil, false
	}
}
