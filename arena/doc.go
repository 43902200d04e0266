// Package arena implements the fixed-capacity scratch arena used to build TLV
// records for one request/response cycle.
//
// # Overview
//
// The arena is a single byte buffer with a bump index. Allocate hands out the
// next length bytes and returns their starting Offset. There is no per-object
// deallocation: Wipe zero-fills every byte handed out since the last wipe and
// resets the index. Wipe must run at the end of every cycle, whatever its
// outcome, so that no secret material survives into the next one.
//
// # Offsets
//
// Records reference each other through Offset values, never through pointers.
// Offsets are 16 bits wide because TLV records store them in 2-byte fields,
// which bounds the capacity to MaxCapacity.
//
// # Basic Usage
//
//	a, err := arena.New(arena.DefaultCapacity)
//	if err != nil {
//	    return err
//	}
//	defer a.Wipe()
//
//	off, err := a.Allocate(16)
//	if err != nil {
//	    return err // interfaces.ErrResourceExhausted
//	}
//	buf, _ := a.View(off, 16)
//	copy(buf, payload)
//
// The arena is not safe for concurrent use; keymaster.Context serializes
// access to it.
package arena
