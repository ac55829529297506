// Package optional provides a JSON-aware optional value that distinguishes an
// absent field from an explicit null.
package optional

import (
	"bytes"
	"encoding/json"
)

// Value holds a possibly-absent, possibly-null T. The zero Value is absent.
//
// When decoding JSON, a field that is missing from the object leaves the
// Value absent, an explicit null makes it present with Null set, and any
// other value makes it present with V set.
type Value[T any] struct {
	V       T
	Present bool
	Null    bool
}

// Some returns a present, non-null Value.
func Some[T any](v T) Value[T] {
	return Value[T]{V: v, Present: true}
}

// Null returns a present Value that clears the field.
func Null[T any]() Value[T] {
	return Value[T]{Present: true, Null: true}
}

// UnmarshalJSON marks the value as present.
func (o *Value[T]) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.V = zero
		o.Null = true
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.V)
}

// MarshalJSON encodes an absent or null Value as null.
func (o Value[T]) MarshalJSON() ([]byte, error) {
	if !o.Present || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.V)
}

// Merge applies o to a pointer-typed field: absent keeps current, null clears
// it, and a value replaces it.
func Merge[T any](current *T, o Value[T]) *T {
	if !o.Present {
		return current
	}
	if o.Null {
		return nil
	}
	v := o.V
	return &v
}

// MergeValue applies o to a non-pointer field. A null resets it to the zero
// value.
func MergeValue[T any](current T, o Value[T]) T {
	if !o.Present {
		return current
	}
	if o.Null {
		var zero T
		return zero
	}
	return o.V
}

// Changed reports whether applying o to current would alter it.
func Changed[T comparable](current T, o Value[T]) bool {
	return o.Present && !o.Null && o.V != current
}
