package opstate

import (
	"testing"

	"github.com/ruteri/tee-keymaster-state/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserve_Exhaustion(t *testing.T) {
	p := New(0)
	require.Equal(t, DefaultSlots, p.Capacity())

	var states []*State
	for i := 0; i < DefaultSlots; i++ {
		s := p.Reserve()
		require.NotNil(t, s)
		assert.True(t, s.Active())
		assert.NotEqual(t, interfaces.InvalidOperationHandle, s.Handle())
		states = append(states, s)
	}
	assert.Nil(t, p.Reserve())
	assert.Equal(t, DefaultSlots, p.Active())

	// Released slot is reused
	released := states[2]
	p.Release(released)
	assert.False(t, released.Active())
	assert.Equal(t, DefaultSlots-1, p.Active())

	again := p.Reserve()
	require.NotNil(t, again)
	assert.Same(t, released, again)
}

func TestFind(t *testing.T) {
	p := New(4)
	a := p.Reserve()
	b := p.Reserve()

	assert.Same(t, a, p.Find(a.Handle()))
	assert.Same(t, b, p.Find(b.Handle()))
	assert.Nil(t, p.Find(a.Handle()+b.Handle()+1))
	assert.Nil(t, p.Find(interfaces.InvalidOperationHandle))

	h := a.Handle()
	p.Release(a)
	assert.Nil(t, p.Find(h))
}

func TestReserve_HandlesUniqueAndNonZero(t *testing.T) {
	p := New(3)

	// Source yields zero and duplicates before fresh values
	seq := []uint64{0, 7, 7, 0, 7, 9, 9, 11}
	p.newHandle = func() uint64 {
		v := seq[0]
		seq = seq[1:]
		return v
	}

	a := p.Reserve()
	b := p.Reserve()
	c := p.Reserve()
	assert.Equal(t, interfaces.OperationHandle(7), a.Handle())
	assert.Equal(t, interfaces.OperationHandle(9), b.Handle())
	assert.Equal(t, interfaces.OperationHandle(11), c.Handle())
}

func TestRelease_WipesState(t *testing.T) {
	p := New(1)
	s := p.Reserve()
	s.Purpose = 2
	s.Algorithm = 32
	s.MacLength = 256
	s.KeyAuthTag = interfaces.AuthTag{1, 2, 3}
	s.HasAuthTag = true
	require.NoError(t, s.SetSecret([]byte("operation secret")))
	assert.Equal(t, []byte("operation secret"), s.Secret())

	secret := s.Secret()
	p.Release(s)

	assert.Equal(t, State{}, *s)
	assert.Equal(t, make([]byte, len(secret)), secret, "secret bytes must be zeroed")
	p.Release(nil)
}

func TestSetSecret_TooLong(t *testing.T) {
	p := New(1)
	s := p.Reserve()
	assert.ErrorIs(t, s.SetSecret(make([]byte, MaxSecretLen+1)), interfaces.ErrInvalidData)
	assert.Empty(t, s.Secret())
}

func TestReleaseAll(t *testing.T) {
	p := New(4)
	for i := 0; i < 4; i++ {
		require.NotNil(t, p.Reserve())
	}
	p.ReleaseAll()
	assert.Equal(t, 0, p.Active())
	assert.NotNil(t, p.Reserve())
}
