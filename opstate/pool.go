// Package opstate implements the fixed pool of operation-state slots that let a
// cryptographic operation span several begin/update/finish exchanges.
package opstate

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/ruteri/tee-keymaster-state/interfaces"
)

const (
	// DefaultSlots is the pool size of the reference configuration.
	DefaultSlots = 4

	// MaxSecretLen bounds the operation-scoped secret material.
	MaxSecretLen = 64
)

// State is one operation slot. Fields other than the handle are set by the
// dispatcher between Reserve and Release.
type State struct {
	handle interfaces.OperationHandle
	active bool

	Purpose   uint8
	Algorithm uint8
	Digest    uint8
	Padding   uint8
	BlockMode uint8
	MacLength uint16

	KeyAuthTag interfaces.AuthTag
	HasAuthTag bool
	AuthTime   uint64

	secret    [MaxSecretLen]byte
	secretLen int
}

// Handle returns the operation handle.
func (s *State) Handle() interfaces.OperationHandle { return s.handle }

// Active reports whether the slot is reserved.
func (s *State) Active() bool { return s.active }

// SetSecret copies b into the slot's secret buffer.
func (s *State) SetSecret(b []byte) error {
	if len(b) > MaxSecretLen {
		return fmt.Errorf("%w: operation secret of %d bytes exceeds %d", interfaces.ErrInvalidData, len(b), MaxSecretLen)
	}
	clear(s.secret[:])
	s.secretLen = copy(s.secret[:], b)
	return nil
}

// Secret returns the secret bytes. The slice aliases the slot until Release.
func (s *State) Secret() []byte {
	return s.secret[:s.secretLen]
}

func (s *State) reset() {
	clear(s.secret[:])
	*s = State{}
}

// Pool is a fixed set of operation slots.
type Pool struct {
	slots     []State
	newHandle func() uint64
}

// New creates a pool with the given number of slots. A count <= 0 selects DefaultSlots.
func New(slots int) *Pool {
	if slots <= 0 {
		slots = DefaultSlots
	}
	return &Pool{
		slots:     make([]State, slots),
		newHandle: randomHandle,
	}
}

func randomHandle() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return binary.BigEndian.Uint64(b[:])
}

// Reserve activates the first inactive slot with a fresh non-zero handle that
// no other active slot holds. Returns nil when every slot is active.
func (p *Pool) Reserve() *State {
	for i := range p.slots {
		s := &p.slots[i]
		if s.active {
			continue
		}

		s.reset()
		s.handle = p.uniqueHandle()
		s.active = true
		return s
	}
	return nil
}

func (p *Pool) uniqueHandle() interfaces.OperationHandle {
	for {
		h := interfaces.OperationHandle(p.newHandle())
		if h != interfaces.InvalidOperationHandle && p.Find(h) == nil {
			return h
		}
	}
}

// Release deactivates s and zeroes every operation-scoped field.
func (p *Pool) Release(s *State) {
	if s == nil {
		return
	}
	s.reset()
}

// Find returns the active slot holding handle, or nil.
func (p *Pool) Find(handle interfaces.OperationHandle) *State {
	if handle == interfaces.InvalidOperationHandle {
		return nil
	}
	for i := range p.slots {
		if p.slots[i].active && p.slots[i].handle == handle {
			return &p.slots[i]
		}
	}
	return nil
}

// Active returns the number of reserved slots.
func (p *Pool) Active() int {
	n := 0
	for i := range p.slots {
		if p.slots[i].active {
			n++
		}
	}
	return n
}

// Capacity returns the number of slots.
func (p *Pool) Capacity() int {
	return len(p.slots)
}

// ReleaseAll releases every slot.
func (p *Pool) ReleaseAll() {
	for i := range p.slots {
		p.slots[i].reset()
	}
}
