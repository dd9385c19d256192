// Package snapshotdiff partitions two provider snapshots into changed, new
// and deleted records.
package snapshotdiff

import (
	"bytes"
	"encoding/json"
)

// Result holds the three partitions of a snapshot comparison.
//
// Changed carries the previous-snapshot record for every current record
// whose key also appears among the previous records that differ in value.
type Result[T any] struct {
	Changed []T
	New     []T
	Deleted []T
}

func (r Result[T]) Empty() bool {
	return len(r.Changed) == 0 && len(r.New) == 0 && len(r.Deleted) == 0
}

func (r Result[T]) Len() int {
	return len(r.Changed) + len(r.New) + len(r.Deleted)
}

// Compute diffs current against previous.
//
// Records equal by value in both snapshots are ignored. Of the rest, pairing
// is by key only: the first differing previous record with the same key wins,
// in previous-snapshot order.
func Compute[T any](current, previous []T, key func(T) string, equal func(a, b T) bool) Result[T] {
	fromCurrent := valueDifference(current, previous, equal)
	fromPrevious := valueDifference(previous, current, equal)

	previousByKey := make(map[string]T, len(fromPrevious))
	for _, item := range fromPrevious {
		k := key(item)
		if _, seen := previousByKey[k]; !seen {
			previousByKey[k] = item
		}
	}
	currentKeys := make(map[string]struct{}, len(fromCurrent))

	var result Result[T]
	for _, item := range fromCurrent {
		k := key(item)
		currentKeys[k] = struct{}{}
		if match, ok := previousByKey[k]; ok {
			result.Changed = append(result.Changed, match)
			continue
		}
		result.New = append(result.New, item)
	}
	for _, item := range fromPrevious {
		if _, ok := currentKeys[key(item)]; !ok {
			result.Deleted = append(result.Deleted, item)
		}
	}
	return result
}

func valueDifference[T any](left, right []T, equal func(a, b T) bool) []T {
	out := make([]T, 0)
	for _, l := range left {
		found := false
		for _, r := range right {
			if equal(l, r) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, l)
		}
	}
	return out
}

// Record is one provider row as decoded from the raw JSON response.
type Record map[string]any

// String returns the field as text; numeric codes are formatted without exponent.
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		b, _ := json.Marshal(v)
		return string(bytes.Trim(b, `"`))
	}
}

// Float returns a numeric field, accepting numbers encoded as strings.
func (r Record) Float(field string) float64 {
	switch v := r[field].(type) {
	case json.Number:
		f, _ := v.Float64()
		return f
	case float64:
		return v
	case string:
		f, _ := json.Number(v).Float64()
		return f
	default:
		return 0
	}
}

// Bool accepts true, 1 and "true" in either case as set.
func (r Record) Bool(field string) bool {
	switch v := r[field].(type) {
	case bool:
		return v
	case json.Number:
		return v.String() == "1"
	case float64:
		return v == 1
	case string:
		return v == "1" || v == "true" || v == "True"
	default:
		return false
	}
}

// KeyBy builds a key func over a single field.
func KeyBy(field string) func(Record) string {
	return func(r Record) string { return r.String(field) }
}

// RecordsEqual compares records by canonical JSON encoding.
func RecordsEqual(a, b Record) bool {
	if len(a) != len(b) {
		return false
	}
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// DecodeRecords parses a JSON array of objects keeping numbers exact.
func DecodeRecords(raw []byte) ([]Record, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out []Record
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
