package store

import "time"

// Field accessors tolerant of the two shapes a value can have depending
// on whether the document came from the writer or from a decoded read.

func String(doc Document, field string) string {
	s, _ := doc[field].(string)
	return s
}

func Bool(doc Document, field string) bool {
	b, _ := doc[field].(bool)
	return b
}

func Int64(doc Document, field string) int64 {
	switch v := doc[field].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Time reads a UnixNano timestamp field.
func Time(doc Document, field string) time.Time {
	n := Int64(doc, field)
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func Strings(doc Document, field string) []string {
	switch v := doc[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
