package tlv

import (
	"encoding/binary"
	"fmt"

	"github.com/ruteri/tee-keymaster-state/arena"
	"github.com/ruteri/tee-keymaster-state/interfaces"
)

// ByteBlob is a view of a byte-blob record.
type ByteBlob struct {
	off  arena.Offset
	data []byte
}

// NewByteBlob copies value into a new byte-blob record.
func NewByteBlob(a *arena.Arena, value []byte) (arena.Offset, error) {
	off, payload, err := newRecord(a, TypeByteBlob, len(value))
	if err != nil {
		return 0, err
	}
	copy(payload, value)
	return off, nil
}

// ByteBlobAt views the record at off as a byte blob.
func ByteBlobAt(a *arena.Arena, off arena.Offset) (ByteBlob, error) {
	data, err := readRecord(a, off, TypeByteBlob)
	if err != nil {
		return ByteBlob{}, err
	}
	return ByteBlob{off: off, data: data}, nil
}

// Offset returns the offset of the record.
func (b ByteBlob) Offset() arena.Offset { return b.off }

// Length returns the payload length.
func (b ByteBlob) Length() int { return len(b.data) }

// Bytes returns the payload. The slice aliases the arena and is valid until the next wipe.
func (b ByteBlob) Bytes() []byte { return b.data }

// Integer is a view of a 4 or 8 byte integer record.
type Integer struct {
	off  arena.Offset
	data []byte
}

// NewInteger encodes a 32-bit integer record.
func NewInteger(a *arena.Arena, v uint32) (arena.Offset, error) {
	off, payload, err := newRecord(a, TypeInteger, 4)
	if err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint32(payload, v)
	return off, nil
}

// NewLong encodes a 64-bit integer record.
func NewLong(a *arena.Arena, v uint64) (arena.Offset, error) {
	off, payload, err := newRecord(a, TypeInteger, 8)
	if err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint64(payload, v)
	return off, nil
}

// IntegerAt views the record at off as an integer.
func IntegerAt(a *arena.Arena, off arena.Offset) (Integer, error) {
	data, err := readRecord(a, off, TypeInteger)
	if err != nil {
		return Integer{}, err
	}
	if len(data) != 4 && len(data) != 8 {
		return Integer{}, fmt.Errorf("%w: integer record of %d bytes", interfaces.ErrConditionsNotSatisfied, len(data))
	}
	return Integer{off: off, data: data}, nil
}

// Offset returns the offset of the record.
func (i Integer) Offset() arena.Offset { return i.off }

// Length returns 4 or 8.
func (i Integer) Length() int { return len(i.data) }

// Uint64 returns the value widened to 64 bits.
func (i Integer) Uint64() uint64 {
	if len(i.data) == 4 {
		return uint64(binary.BigEndian.Uint32(i.data))
	}
	return binary.BigEndian.Uint64(i.data)
}

// AuthTagAt reads a 12-byte auth tag from the byte-blob record at off.
func AuthTagAt(a *arena.Arena, off arena.Offset) (interfaces.AuthTag, error) {
	blob, err := ByteBlobAt(a, off)
	if err != nil {
		return interfaces.AuthTag{}, err
	}
	return interfaces.NewAuthTagFromBytes(blob.Bytes())
}
