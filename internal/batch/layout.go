package batch

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

// layoutCache memoizes layout checks per (dst, src) type pair.
var layoutCache sync.Map // layoutKey -> error (nil when compatible)

type layoutKey struct {
	dst, src reflect.Type
	view     bool
}

// checkLayout validates that Src memory may be read as Dst. Views also
// require Dst to be no more aligned than Src; copies do not.
func checkLayout[Dst, Src any](view bool) error {
	key := layoutKey{dst: reflect.TypeFor[Dst](), src: reflect.TypeFor[Src](), view: view}
	if v, ok := layoutCache.Load(key); ok {
		err, _ := v.(error)
		return err
	}

	err := computeLayout(key)
	layoutCache.Store(key, err)
	return err
}

func computeLayout(key layoutKey) error {
	switch {
	case key.dst.Size() == 0 || key.src.Size() == 0:
		return fmt.Errorf("%w: zero-sized element (%s <- %s)", ErrLayoutMismatch, key.dst, key.src)
	case hasPointers(key.dst) || hasPointers(key.src):
		return fmt.Errorf("%w: pointer-carrying element (%s <- %s)", ErrLayoutMismatch, key.dst, key.src)
	case key.view && key.dst.Align() > key.src.Align():
		return fmt.Errorf("%w: alignment %d of %s exceeds %d of %s",
			ErrLayoutMismatch, key.dst.Align(), key.dst, key.src.Align(), key.src)
	}
	return nil
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func byteCount[Src any](src []Src) int {
	var zero Src
	return len(src) * int(unsafe.Sizeof(zero))
}

// Reinterpret views the memory of src as a borrowed batch of Dst without
// copying. The byte length of src must be a multiple of the size of Dst.
func Reinterpret[Dst, Src any](src []Src) (Batch[Dst], error) {
	if err := checkLayout[Dst, Src](true); err != nil {
		return Batch[Dst]{}, err
	}
	n, err := dstCount[Dst](src)
	if err != nil {
		return Batch[Dst]{}, err
	}
	if n == 0 {
		return Borrow[Dst](nil), nil
	}
	return Borrow(unsafe.Slice((*Dst)(unsafe.Pointer(&src[0])), n)), nil //nolint:gosec
}

// CopyBytes copies the memory of src byte for byte into a new owned batch
// of Dst.
func CopyBytes[Dst, Src any](src []Src) (Batch[Dst], error) {
	if err := checkLayout[Dst, Src](false); err != nil {
		return Batch[Dst]{}, err
	}
	n, err := dstCount[Dst](src)
	if err != nil {
		return Batch[Dst]{}, err
	}
	out := make([]Dst, n)
	if n > 0 {
		nbytes := byteCount(src)
		dst := unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), nbytes) //nolint:gosec
		copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), nbytes))
	}
	return TakeOwnership(out), nil
}

func dstCount[Dst, Src any](src []Src) (int, error) {
	var zero Dst
	dstSize := int(unsafe.Sizeof(zero))
	nbytes := byteCount(src)
	if nbytes%dstSize != 0 {
		return 0, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrLayoutMismatch, nbytes, dstSize)
	}
	return nbytes / dstSize, nil
}
