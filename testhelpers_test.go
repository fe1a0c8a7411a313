package stm

import "unsafe"

// unsafePointerOf returns a pointer to the start of a non-empty byte slice,
// for tests that need to pass caller-private buffers across the
// unsafe.Pointer-based Read/Write boundary.
func unsafePointerOf(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		panic("unsafePointerOf: empty slice")
	}
	return unsafe.Pointer(&b[0])
}
