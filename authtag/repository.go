package authtag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ruteri/tee-keymaster-state/interfaces"
)

const (
	// DefaultSlots is the table size of the reference configuration.
	DefaultSlots = 32

	// InvalidUsageCount is returned by UsageCount for an unknown tag.
	InvalidUsageCount uint32 = math.MaxUint32
)

// Entry is one slot of the table.
type Entry struct {
	Tag        interfaces.AuthTag `cbor:"1,keyasint" json:"tag"`
	Reserved   bool               `cbor:"2,keyasint" json:"reserved"`
	UsageCount uint32             `cbor:"3,keyasint" json:"usage_count"`
}

// Recovery describes what Open found in the state store.
type Recovery struct {
	SnapshotSeq uint64 `json:"snapshot_seq"`
	MarkerSeq   uint64 `json:"marker_seq"`
	JournalSeq  uint64 `json:"journal_seq"`
	Replayed    bool   `json:"replayed"`
	Discarded   bool   `json:"discarded"`
}

// Repository is the fixed-size auth tag table.
type Repository struct {
	store interfaces.StateStore
	log   *slog.Logger

	slots []Entry
	count int

	// appliedSeq is the sequence of the last mutation reflected in slots.
	appliedSeq uint64
	// nextSeq is never reused, even by commits that failed before the marker.
	nextSeq uint64
	// markerSeq is the sequence of the last marker known to be durable.
	markerSeq uint64
	// dirty is set when a committed mutation has no snapshot yet.
	dirty bool

	recovery Recovery
}

// Open loads the table from store, recovering an interrupted commit if one
// is found. A store with no snapshot yields an empty table of the given size.
func Open(ctx context.Context, store interfaces.StateStore, slots int, log *slog.Logger) (*Repository, error) {
	if slots <= 0 {
		slots = DefaultSlots
	}
	if store == nil {
		return nil, errors.New("auth tag repository requires a state store")
	}

	r := &Repository{
		store: store,
		log:   log,
		slots: make([]Entry, slots),
	}
	if err := r.recover(ctx); err != nil {
		return nil, err
	}

	r.log.Info("Auth tag repository opened",
		slog.String("store", store.Name()),
		slog.Int("slots", slots),
		slog.Int("count", r.count),
		slog.Uint64("seq", r.appliedSeq))

	return r, nil
}

// Persist records tag in the first free slot with a zero usage counter.
// A tag that is already present is left untouched. A full table returns
// interfaces.ErrResourceExhausted and changes nothing.
func (r *Repository) Persist(ctx context.Context, tag interfaces.AuthTag) error {
	if r.find(tag) >= 0 {
		return nil
	}

	free := -1
	for i := range r.slots {
		if !r.slots[i].Reserved {
			free = i
			break
		}
	}
	if free < 0 {
		r.log.Warn("Auth tag table full", slog.Int("capacity", len(r.slots)))
		return fmt.Errorf("%w: auth tag table holds %d entries", interfaces.ErrResourceExhausted, len(r.slots))
	}

	return r.commit(ctx, r.count+1, slotWrite{
		Index: free,
		Entry: Entry{Tag: tag, Reserved: true},
	})
}

// Validate reports whether tag is present.
func (r *Repository) Validate(tag interfaces.AuthTag) bool {
	return r.find(tag) >= 0
}

// Remove frees the slot holding tag. Returns interfaces.ErrNotFound if absent.
func (r *Repository) Remove(ctx context.Context, tag interfaces.AuthTag) error {
	i := r.find(tag)
	if i < 0 {
		return interfaces.ErrNotFound
	}
	return r.commit(ctx, r.count-1, slotWrite{Index: i})
}

// RemoveAll frees every slot.
func (r *Repository) RemoveAll(ctx context.Context) error {
	writes := make([]slotWrite, len(r.slots))
	for i := range writes {
		writes[i].Index = i
	}
	return r.commit(ctx, 0, writes...)
}

// UsageCount returns the counter of tag, or InvalidUsageCount if absent.
func (r *Repository) UsageCount(tag interfaces.AuthTag) uint32 {
	i := r.find(tag)
	if i < 0 {
		return InvalidUsageCount
	}
	return r.slots[i].UsageCount
}

// SetUsageCount stores n as the counter of tag. An absent tag is ignored.
func (r *Repository) SetUsageCount(ctx context.Context, tag interfaces.AuthTag, n uint32) error {
	if n == InvalidUsageCount {
		return fmt.Errorf("%w: usage count %d is reserved", interfaces.ErrInvalidData, n)
	}

	i := r.find(tag)
	if i < 0 {
		return nil
	}
	if r.slots[i].UsageCount == n {
		return nil
	}

	e := r.slots[i]
	e.UsageCount = n
	return r.commit(ctx, r.count, slotWrite{Index: i, Entry: e})
}

// Count returns the number of reserved slots.
func (r *Repository) Count() int {
	return r.count
}

// Capacity returns the number of slots.
func (r *Repository) Capacity() int {
	return len(r.slots)
}

// Entries returns a copy of the reserved entries in slot order.
func (r *Repository) Entries() []Entry {
	out := make([]Entry, 0, r.count)
	for _, e := range r.slots {
		if e.Reserved {
			out = append(out, e)
		}
	}
	return out
}

// LastRecovery returns what Open found in the state store.
func (r *Repository) LastRecovery() Recovery {
	return r.recovery
}

func (r *Repository) find(tag interfaces.AuthTag) int {
	for i := range r.slots {
		if r.slots[i].Reserved && r.slots[i].Tag == tag {
			return i
		}
	}
	return -1
}

// checkInvariants verifies a loaded table.
func checkInvariants(slots []Entry, count int) error {
	seen := make(map[interfaces.AuthTag]struct{}, len(slots))
	reserved := 0
	for i, e := range slots {
		if !e.Reserved {
			if e != (Entry{}) {
				return fmt.Errorf("%w: free slot %d is not zeroed", interfaces.ErrCorruptState, i)
			}
			continue
		}
		if _, dup := seen[e.Tag]; dup {
			return fmt.Errorf("%w: tag %s reserved twice", interfaces.ErrCorruptState, e.Tag)
		}
		seen[e.Tag] = struct{}{}
		reserved++
	}
	if reserved != count {
		return fmt.Errorf("%w: count %d does not match %d reserved slots", interfaces.ErrCorruptState, count, reserved)
	}
	return nil
}
