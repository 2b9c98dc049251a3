package common

import (
	"unsafe"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// StructToBytes reinterprets a pointer to a value as a raw byte slice using unsafe.
// The returned slice has length equal to the value's size in memory and aliases it.
//
// Parameters:
//   - v: pointer to the value to reinterpret
//
// Returns:
//   - []byte: byte slice view of the value's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}

// RoundUpToMultiple rounds v up to the next multiple of m.
// A zero multiple leaves v unchanged, as does a v that is already a multiple of m.
// Unlike a power-of-two mask, this works for any m.
//
// Parameters:
//   - v: the value to round
//   - m: the multiple to round up to
//
// Returns:
//   - uint64: the smallest multiple of m that is >= v, or v when m is 0
func RoundUpToMultiple(v, m uint64) uint64 {
	if m == 0 {
		return v
	}
	rem := v % m
	if rem == 0 {
		return v
	}
	return v + (m - rem)
}
