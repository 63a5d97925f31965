package model

import (
	"bytes"
	"encoding/json"
)

type fieldState uint8

const (
	fieldUnchanged fieldState = iota
	fieldSet
	fieldReset
)

// Field is a tri-state update value. An omitted JSON key leaves it
// unchanged, an explicit null resets it and any other value sets it.
type Field[T any] struct {
	state fieldState
	value T
}

func Set[T any](v T) Field[T] {
	return Field[T]{state: fieldSet, value: v}
}

func Reset[T any]() Field[T] {
	return Field[T]{state: fieldReset}
}

func Unchanged[T any]() Field[T] {
	return Field[T]{}
}

func (f Field[T]) IsSet() bool       { return f.state == fieldSet }
func (f Field[T]) IsReset() bool     { return f.state == fieldReset }
func (f Field[T]) IsUnchanged() bool { return f.state == fieldUnchanged }

// Value returns the set value, or the zero value when not set.
func (f Field[T]) Value() T {
	return f.value
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = Reset[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Set(v)
	return nil
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.state != fieldSet {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
