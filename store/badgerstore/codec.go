package badgerstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"bookswap/store"
)

// Documents are persisted as JSON objects. Decoding goes through
// json.Number so UnixNano timestamps survive the round trip without
// float64 truncation.

func encode(doc store.Document) ([]byte, error) {
	return json.Marshal(doc)
}

func decode(data []byte) (store.Document, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc := make(store.Document, len(raw))
	for k, v := range raw {
		doc[k] = normalize(v)
	}
	return doc, nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i, e := range val {
			val[i] = normalize(e)
		}
		return val
	case map[string]any:
		for k, e := range val {
			val[k] = normalize(e)
		}
		return val
	default:
		return v
	}
}

// compareField orders two documents by one field. Missing values sort first.
func compareField(a, b store.Document, field string) int {
	av, aok := a[field]
	bv, bok := b[field]
	if !aok || !bok {
		if aok {
			return 1
		}
		if bok {
			return -1
		}
		return 0
	}
	switch x := av.(type) {
	case int64:
		if y, ok := bv.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := bv.(string); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return compareAsFloat(av, bv)
}

func compareAsFloat(a, b any) int {
	x, xok := asFloat(a)
	y, yok := asFloat(b)
	if !xok || !yok {
		return 0
	}
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// equalValue compares a stored value against an expectation supplied by
// the caller, tolerating the int64/float64 split JSON decoding produces.
func equalValue(stored, expect any) bool {
	if stored == expect {
		return true
	}
	x, xok := asFloat(stored)
	y, yok := asFloat(expect)
	return xok && yok && x == y
}
