// Package patch models PATCH request bodies where a key can be absent,
// explicitly null, or carry a value. Absent leaves a stored column untouched;
// null clears it.
package patch

import (
	"bytes"
	"encoding/json"
)

// Field is a tri-state optional value decoded from JSON.
type Field[T any] struct {
	// Set is true when the key appeared in the body, including as null.
	Set bool
	// Null is true when the key appeared with a JSON null.
	Null  bool
	Value T
}

// Of returns a Field carrying v.
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null returns a Field that clears the stored value.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// Present reports whether the key carried a non-null value.
func (f Field[T]) Present() bool {
	return f.Set && !f.Null
}

// Ptr returns nil for null and a pointer to the value otherwise.
func (f Field[T]) Ptr() *T {
	if !f.Present() {
		return nil
	}
	v := f.Value
	return &v
}

// UnmarshalJSON implements json.Unmarshaler. encoding/json only calls it
// when the key is present, which is what distinguishes absent from null.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

// MarshalJSON implements json.Marshaler. Unset and null fields both encode as null.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Present() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}
