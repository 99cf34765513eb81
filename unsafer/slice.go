package unsafer

import (
	"unsafe"
)

// SliceToBytes interprets an arbitrary input slice as a byte slice.
//
// Note that the returned slice points to the same underlying data in memory. It
// does not make a copy. An empty input yields a nil slice.
func SliceToBytes[T any](input []T) []byte {
	if len(input) == 0 {
		return nil
	}
	size := int(unsafe.Sizeof(input[0])) * len(input)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(input))), size)
}

// StructToBytes returns the memory of the value pointed to by input as a byte
// slice. Like SliceToBytes it aliases the original memory.
func StructToBytes[T any](input *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(input)), unsafe.Sizeof(*input))
}

// BytesToSlice is the inverse of SliceToBytes. Trailing bytes which do not make
// up a whole element are ignored. The data must be suitably aligned for T.
func BytesToSlice[T any](data []byte) []T {
	var zero T
	n := len(data) / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(data))), n)
}
