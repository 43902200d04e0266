package tlv

import (
	"encoding/binary"
	"fmt"

	"github.com/ruteri/tee-keymaster-state/arena"
	"github.com/ruteri/tee-keymaster-state/interfaces"
)

// tagPayloadLen is kind(2) + key(2) + value(2).
const tagPayloadLen = 6

// Tag is implemented by every tag variant.
type Tag interface {
	Offset() arena.Offset
	Kind() Kind
	Key() Key
}

type tagHeader struct {
	off   arena.Offset
	kind  Kind
	key   Key
	value uint16
}

func (h tagHeader) Offset() arena.Offset { return h.off }
func (h tagHeader) Kind() Kind           { return h.kind }
func (h tagHeader) Key() Key             { return h.key }

// ByteTag references a byte-blob record.
type ByteTag struct {
	tagHeader
	blob ByteBlob
}

// Blob returns the referenced byte blob.
func (t ByteTag) Blob() ByteBlob { return t.blob }

// Length returns the length of the referenced blob.
func (t ByteTag) Length() int { return t.blob.Length() }

// Value returns the blob payload.
func (t ByteTag) Value() []byte { return t.blob.Bytes() }

// IntegerTag references a 4-byte (UINT) or 8-byte (ULONG) integer record.
type IntegerTag struct {
	tagHeader
	integer Integer
}

// Integer returns the referenced integer record.
func (t IntegerTag) Integer() Integer { return t.integer }

// Value returns the integer widened to 64 bits.
func (t IntegerTag) Value() uint64 { return t.integer.Uint64() }

// Length returns 4 or 8.
func (t IntegerTag) Length() int { return t.integer.Length() }

// DateTag references an 8-byte millisecond timestamp record.
type DateTag struct {
	tagHeader
	integer Integer
}

// Millis returns the timestamp in milliseconds.
func (t DateTag) Millis() uint64 { return t.integer.Uint64() }

// BoolTag is present-means-true.
type BoolTag struct {
	tagHeader
}

// Value reports whether the flag is set.
func (t BoolTag) Value() bool { return t.value != 0 }

// EnumTag holds a one byte enumeration value inline.
type EnumTag struct {
	tagHeader
}

// Value returns the enumeration value.
func (t EnumTag) Value() uint8 { return uint8(t.value) }

func newTag(a *arena.Arena, kind Kind, key Key, value uint16) (arena.Offset, error) {
	off, payload, err := newRecord(a, TypeTag, tagPayloadLen)
	if err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint16(payload[0:2], uint16(kind))
	binary.BigEndian.PutUint16(payload[2:4], uint16(key))
	binary.BigEndian.PutUint16(payload[4:6], value)
	return off, nil
}

// checkKey returns the catalogue kind of key if it is one of allowed.
func checkKey(key Key, allowed ...Kind) (Kind, error) {
	kind := KindOf(key)
	for _, k := range allowed {
		if kind == k {
			return kind, nil
		}
	}
	return KindInvalid, fmt.Errorf("%w: key %d has kind %s, want one of %v", interfaces.ErrInvalidData, key, kind, allowed)
}

// NewByteTag encodes a tag referencing the byte blob at blob. The blob must be
// a byte-blob record and its value must pass p.
func NewByteTag(a *arena.Arena, p Policy, key Key, blob arena.Offset) (arena.Offset, error) {
	if _, err := checkKey(key, KindBytes); err != nil {
		return 0, err
	}
	b, err := ByteBlobAt(a, blob)
	if err != nil {
		return 0, fmt.Errorf("%w: byte tag %d: %v", interfaces.ErrInvalidData, key, err)
	}
	if err := p.ValidateBytes(key, b.Bytes()); err != nil {
		return 0, err
	}
	return newTag(a, KindBytes, key, uint16(blob))
}

func integerOfLength(a *arena.Arena, off arena.Offset, n int) error {
	i, err := IntegerAt(a, off)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrInvalidData, err)
	}
	if i.Length() != n {
		return fmt.Errorf("%w: integer at %d is %d bytes, want %d", interfaces.ErrInvalidData, off, i.Length(), n)
	}
	return nil
}

// NewIntegerTag encodes a UINT tag referencing the 4-byte integer at integer.
func NewIntegerTag(a *arena.Arena, key Key, integer arena.Offset) (arena.Offset, error) {
	kind, err := checkKey(key, KindUint, KindUintArray)
	if err != nil {
		return 0, err
	}
	if err := integerOfLength(a, integer, 4); err != nil {
		return 0, err
	}
	return newTag(a, kind, key, uint16(integer))
}

// NewLongTag encodes a ULONG tag referencing the 8-byte integer at integer.
func NewLongTag(a *arena.Arena, key Key, integer arena.Offset) (arena.Offset, error) {
	kind, err := checkKey(key, KindUlong, KindUlongArray)
	if err != nil {
		return 0, err
	}
	if err := integerOfLength(a, integer, 8); err != nil {
		return 0, err
	}
	return newTag(a, kind, key, uint16(integer))
}

// NewDateTag encodes a DATE tag referencing the 8-byte integer at integer.
func NewDateTag(a *arena.Arena, key Key, integer arena.Offset) (arena.Offset, error) {
	if _, err := checkKey(key, KindDate); err != nil {
		return 0, err
	}
	if err := integerOfLength(a, integer, 8); err != nil {
		return 0, err
	}
	return newTag(a, KindDate, key, uint16(integer))
}

// NewBoolTag encodes a BOOL tag.
func NewBoolTag(a *arena.Arena, key Key) (arena.Offset, error) {
	if _, err := checkKey(key, KindBool); err != nil {
		return 0, err
	}
	return newTag(a, KindBool, key, 1)
}

// NewEnumTag encodes an ENUM or ENUM_REP tag with the inline value v.
func NewEnumTag(a *arena.Arena, key Key, v uint8) (arena.Offset, error) {
	kind, err := checkKey(key, KindEnum, KindEnumArray)
	if err != nil {
		return 0, err
	}
	return newTag(a, kind, key, uint16(v))
}

func readTag(a *arena.Arena, off arena.Offset, allowed ...Kind) (tagHeader, error) {
	payload, err := readRecord(a, off, TypeTag)
	if err != nil {
		return tagHeader{}, err
	}
	if len(payload) != tagPayloadLen {
		return tagHeader{}, fmt.Errorf("%w: tag record at %d has %d byte payload", interfaces.ErrConditionsNotSatisfied, off, len(payload))
	}
	h := tagHeader{
		off:   off,
		kind:  Kind(binary.BigEndian.Uint16(payload[0:2])),
		key:   Key(binary.BigEndian.Uint16(payload[2:4])),
		value: binary.BigEndian.Uint16(payload[4:6]),
	}
	if len(allowed) == 0 {
		return h, nil
	}
	for _, k := range allowed {
		if h.kind == k {
			return h, nil
		}
	}
	return tagHeader{}, fmt.Errorf("%w: tag at %d has kind %s", interfaces.ErrConditionsNotSatisfied, off, h.kind)
}

// ByteTagAt views the record at off as a byte tag.
func ByteTagAt(a *arena.Arena, off arena.Offset) (ByteTag, error) {
	h, err := readTag(a, off, KindBytes)
	if err != nil {
		return ByteTag{}, err
	}
	blob, err := ByteBlobAt(a, arena.Offset(h.value))
	if err != nil {
		return ByteTag{}, err
	}
	return ByteTag{tagHeader: h, blob: blob}, nil
}

func integerAtLength(a *arena.Arena, off arena.Offset, n int) (Integer, error) {
	i, err := IntegerAt(a, off)
	if err != nil {
		return Integer{}, err
	}
	if i.Length() != n {
		return Integer{}, fmt.Errorf("%w: integer at %d is %d bytes, want %d", interfaces.ErrConditionsNotSatisfied, off, i.Length(), n)
	}
	return i, nil
}

// IntegerTagAt views the record at off as a UINT or ULONG tag.
func IntegerTagAt(a *arena.Arena, off arena.Offset) (IntegerTag, error) {
	h, err := readTag(a, off, KindUint, KindUintArray, KindUlong, KindUlongArray)
	if err != nil {
		return IntegerTag{}, err
	}
	n := 4
	if h.kind == KindUlong || h.kind == KindUlongArray {
		n = 8
	}
	i, err := integerAtLength(a, arena.Offset(h.value), n)
	if err != nil {
		return IntegerTag{}, err
	}
	return IntegerTag{tagHeader: h, integer: i}, nil
}

// DateTagAt views the record at off as a DATE tag.
func DateTagAt(a *arena.Arena, off arena.Offset) (DateTag, error) {
	h, err := readTag(a, off, KindDate)
	if err != nil {
		return DateTag{}, err
	}
	i, err := integerAtLength(a, arena.Offset(h.value), 8)
	if err != nil {
		return DateTag{}, err
	}
	return DateTag{tagHeader: h, integer: i}, nil
}

// BoolTagAt views the record at off as a BOOL tag.
func BoolTagAt(a *arena.Arena, off arena.Offset) (BoolTag, error) {
	h, err := readTag(a, off, KindBool)
	if err != nil {
		return BoolTag{}, err
	}
	return BoolTag{tagHeader: h}, nil
}

// EnumTagAt views the record at off as an ENUM or ENUM_REP tag.
func EnumTagAt(a *arena.Arena, off arena.Offset) (EnumTag, error) {
	h, err := readTag(a, off, KindEnum, KindEnumArray)
	if err != nil {
		return EnumTag{}, err
	}
	return EnumTag{tagHeader: h}, nil
}

// TagAt views the record at off as whichever variant its kind selects.
func TagAt(a *arena.Arena, off arena.Offset) (Tag, error) {
	h, err := readTag(a, off)
	if err != nil {
		return nil, err
	}

	var t Tag
	switch h.kind {
	case KindBytes:
		t, err = ByteTagAt(a, off)
	case KindUint, KindUintArray, KindUlong, KindUlongArray:
		t, err = IntegerTagAt(a, off)
	case KindDate:
		t, err = DateTagAt(a, off)
	case KindBool:
		t, err = BoolTagAt(a, off)
	case KindEnum, KindEnumArray:
		t, err = EnumTagAt(a, off)
	default:
		err = fmt.Errorf("%w: tag at %d has unsupported kind %s", interfaces.ErrConditionsNotSatisfied, off, h.kind)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
