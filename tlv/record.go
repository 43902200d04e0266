package tlv

import (
	"encoding/binary"
	"fmt"

	"github.com/ruteri/tee-keymaster-state/arena"
	"github.com/ruteri/tee-keymaster-state/interfaces"
)

// HeaderLen is the size of the type and length prefix of every record.
const HeaderLen = 3

// MaxPayloadLen is the largest payload a 2-byte length field can describe.
const MaxPayloadLen = 0xFFFF

// Type IDs of arena records.
const (
	TypeByteBlob uint8 = 0x01
	TypeInteger  uint8 = 0x02
	TypeTag      uint8 = 0x07
)

// newRecord allocates a record of the given type and returns its offset and
// a writable view of its payload.
func newRecord(a *arena.Arena, typ uint8, payloadLen int) (arena.Offset, []byte, error) {
	if payloadLen > MaxPayloadLen {
		return 0, nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", interfaces.ErrInvalidData, payloadLen, MaxPayloadLen)
	}
	off, err := a.Allocate(HeaderLen + payloadLen)
	if err != nil {
		return 0, nil, err
	}
	buf, err := a.View(off, HeaderLen+payloadLen)
	if err != nil {
		return 0, nil, err
	}
	buf[0] = typ
	binary.BigEndian.PutUint16(buf[1:HeaderLen], uint16(payloadLen))
	return off, buf[HeaderLen:], nil
}

// recordType returns the type discriminant of the record at off.
func recordType(a *arena.Arena, off arena.Offset) (uint8, error) {
	hdr, err := a.View(off, HeaderLen)
	if err != nil {
		return 0, err
	}
	return hdr[0], nil
}

// readRecord returns the payload of the record at off after checking its type.
func readRecord(a *arena.Arena, off arena.Offset, want uint8) ([]byte, error) {
	hdr, err := a.View(off, HeaderLen)
	if err != nil {
		return nil, err
	}
	if hdr[0] != want {
		return nil, fmt.Errorf("%w: record at %d has type %#02x, want %#02x", interfaces.ErrConditionsNotSatisfied, off, hdr[0], want)
	}
	n := int(binary.BigEndian.Uint16(hdr[1:HeaderLen]))
	return a.View(off+HeaderLen, n)
}
