package arena

import (
	"fmt"

	"github.com/ruteri/tee-keymaster-state/interfaces"
)

const (
	// DefaultCapacity is the scratch capacity of the reference hardware (8 KiB).
	DefaultCapacity = 0x2000

	// MaxCapacity is the largest capacity addressable by an Offset.
	MaxCapacity = 0xFFFF
)

// Offset addresses a byte inside the arena.
type Offset uint16

// Arena is a fixed-capacity bump allocator.
type Arena struct {
	buf   []byte
	index int
	peak  int
}

// New creates an arena with the given capacity. A capacity <= 0 selects DefaultCapacity.
func New(capacity int) (*Arena, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: arena capacity %d exceeds %d", interfaces.ErrInvalidData, capacity, MaxCapacity)
	}
	return &Arena{buf: make([]byte, capacity)}, nil
}

// Allocate reserves length bytes and returns the offset of the first one.
// The returned range never overlaps any other range handed out since the last Wipe.
func (a *Arena) Allocate(length int) (Offset, error) {
	if length < 0 {
		return 0, fmt.Errorf("%w: negative allocation length %d", interfaces.ErrInvalidData, length)
	}
	if length > len(a.buf)-a.index {
		return 0, fmt.Errorf("%w: arena needs %d bytes, %d remaining", interfaces.ErrResourceExhausted, length, len(a.buf)-a.index)
	}

	off := a.index
	a.index += length
	if a.index > a.peak {
		a.peak = a.index
	}
	return Offset(off), nil
}

// Wipe zero-fills the used region and resets the index.
func (a *Arena) Wipe() {
	clear(a.buf[:a.index])
	a.index = 0
}

// Buffer returns the raw backing buffer. The caller must not retain it past the cycle.
func (a *Arena) Buffer() []byte {
	return a.buf
}

// View returns the length bytes starting at off. The range must lie inside
// the region allocated since the last Wipe.
func (a *Arena) View(off Offset, length int) ([]byte, error) {
	start := int(off)
	if length < 0 || start > a.index || length > a.index-start {
		return nil, fmt.Errorf("%w: range of %d bytes at %d outside allocated region [0,%d)", interfaces.ErrConditionsNotSatisfied, length, start, a.index)
	}
	return a.buf[start : start+length : start+length], nil
}

// Index returns the number of bytes allocated since the last Wipe.
func (a *Arena) Index() int {
	return a.index
}

// Capacity returns the size of the backing buffer.
func (a *Arena) Capacity() int {
	return len(a.buf)
}

// Remaining returns the number of bytes still available.
func (a *Arena) Remaining() int {
	return len(a.buf) - a.index
}
