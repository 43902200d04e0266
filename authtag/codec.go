package authtag

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ruteri/tee-keymaster-state/interfaces"
)

// Record names in the state store.
const (
	snapshotRecord = "authtags.snapshot"
	journalRecord  = "authtags.journal"
	markerRecord   = "authtags.commit"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}).DecMode(); err != nil {
		panic(err)
	}
}

// snapshot is the full table as of sequence Seq.
type snapshot struct {
	Seq   uint64  `cbor:"1,keyasint"`
	Count int     `cbor:"2,keyasint"`
	Slots []Entry `cbor:"3,keyasint"`
}

// slotWrite is the image of one slot after a mutation.
type slotWrite struct {
	Index int   `cbor:"1,keyasint"`
	Entry Entry `cbor:"2,keyasint"`
}

// journal is a staged mutation. Replaying it is idempotent.
type journal struct {
	Seq    uint64      `cbor:"1,keyasint"`
	Count  int         `cbor:"2,keyasint"`
	Writes []slotWrite `cbor:"3,keyasint"`
}

// marker names the journal sequence that has been committed.
type marker struct {
	Seq uint64 `cbor:"1,keyasint"`
}

func encode(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return data, nil
}

func decode(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: failed to decode %T: %v", interfaces.ErrCorruptState, v, err)
	}
	return nil
}
