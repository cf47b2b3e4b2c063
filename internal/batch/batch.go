// Package batch defines the buffer handle handed to a recording stream: a
// slice of component values that is either borrowed from the caller or owned
// by the batch itself.
//
// A borrowed batch aliases caller memory. The caller must keep the source
// alive and unmodified for as long as the batch is in use. An owned batch
// holds its own copy and has no such constraint.
package batch

import (
	"errors"
	"slices"
	"unsafe"
)

var (
	// ErrTemporaryUnsupported is returned by borrow-only adapters when asked
	// to take ownership of a container. Zero-copy only holds for sources that
	// outlive the batch.
	ErrTemporaryUnsupported = errors.New("zero-copy adaptation is not supported for temporaries")

	// ErrLayoutMismatch is returned when source and destination element
	// layouts cannot be reinterpreted as each other.
	ErrLayoutMismatch = errors.New("source and destination layouts are not compatible")

	// ErrNotContiguous is returned when a view is requested over strided
	// storage.
	ErrNotContiguous = errors.New("source storage is not contiguous")
)

// Batch is a sequence of component values, borrowed or owned.
type Batch[T any] struct {
	data  []T
	owned bool
}

// Borrow returns a batch viewing data without copying it.
func Borrow[T any](data []T) Batch[T] {
	return Batch[T]{data: data}
}

// TakeOwnership returns a batch that owns data. The caller must not use data
// afterwards.
func TakeOwnership[T any](data []T) Batch[T] {
	return Batch[T]{data: data, owned: true}
}

// Of returns an owned batch holding a copy of values.
func Of[T any](values ...T) Batch[T] {
	return TakeOwnership(slices.Clone(values))
}

// Len returns the number of elements.
func (b Batch[T]) Len() int { return len(b.data) }

// Owned reports whether the batch owns its storage.
func (b Batch[T]) Owned() bool { return b.owned }

// Data returns the elements. For a borrowed batch this is the caller's memory.
func (b Batch[T]) Data() []T { return b.data }

// At returns element i.
func (b Batch[T]) At(i int) T { return b.data[i] }

// ElemSize returns the size in bytes of one element.
func (b Batch[T]) ElemSize() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// ByteLen returns the total size of the elements in bytes.
func (b Batch[T]) ByteLen() int { return len(b.data) * b.ElemSize() }

// Bytes returns the raw bytes of the elements without copying. Only
// meaningful for pointer-free element types.
func (b Batch[T]) Bytes() []byte {
	if len(b.data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&b.data[0])), b.ByteLen()) //nolint:gosec
}

// Clone returns an owned copy of the batch.
func (b Batch[T]) Clone() Batch[T] {
	if b.data == nil {
		return Batch[T]{owned: true}
	}
	return TakeOwnership(slices.Clone(b.data))
}
