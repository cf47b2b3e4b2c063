package batch

import "fmt"

// Adapter converts a container of type C into a batch of T.
//
// ViewInto borrows: the returned batch aliases the container's memory and
// is valid only while the container is alive and unmodified. CopyFrom takes
// the container as a value the caller is giving up and returns an owned
// batch. Borrow-only adapters return ErrTemporaryUnsupported from CopyFrom.
type Adapter[T, C any] interface {
	ViewInto(c *C) (Batch[T], error)
	CopyFrom(c C) (Batch[T], error)
}

// Ownership selects between the two adapter paths.
type Ownership int

const (
	// Borrowed requests a zero-copy view. The source outlives the batch.
	Borrowed Ownership = 0
	// Owned requests a copy. The source is about to go away.
	Owned Ownership = 1
)

func (o Ownership) String() string {
	switch o {
	case Borrowed:
		return "borrowed"
	case Owned:
		return "owned"
	default:
		return fmt.Sprintf("Ownership(%d)", int(o))
	}
}

// Adapt runs the adapter path selected by o.
func Adapt[T, C any](a Adapter[T, C], c *C, o Ownership) (Batch[T], error) {
	switch o {
	case Borrowed:
		return a.ViewInto(c)
	case Owned:
		return a.CopyFrom(*c)
	default:
		return Batch[T]{}, fmt.Errorf("unknown ownership %v", o)
	}
}
