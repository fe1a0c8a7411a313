package stm

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, distinguished per the engine's error taxonomy.
// Use errors.Is against these to classify a failure; the wrapped detail
// is for humans, not for control flow.
var (
	// ErrInvalidArgument is returned by NewRegion when a size/alignment
	// precondition is violated: size not a multiple of align, align not a
	// power of two, or size exceeding the 48-bit limit. Transaction
	// operations report invalid arguments, including freeing the base
	// segment, through their bool or AllocStatus result instead.
	ErrInvalidArgument = errors.New("stm: invalid argument")

	// ErrOutOfMemory is returned when the host allocator cannot satisfy an
	// allocation request.
	ErrOutOfMemory = errors.New("stm: out of memory")

	// ErrConflict names the abort kind where a word a transaction read or
	// wrote was found locked, or newer than its read version. No function in
	// the package returns it: Read, Write, Free and End report such aborts
	// by returning false.
	ErrConflict = errors.New("stm: conflict")
)

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func outOfMemory(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrOutOfMemory, fmt.Sprintf(format, args...))
}
