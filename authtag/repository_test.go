package authtag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/tee-keymaster-state/interfaces"
	"github.com/ruteri/tee-keymaster-state/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tagN(n int) interfaces.AuthTag {
	var t interfaces.AuthTag
	t[0] = byte(n >> 8)
	t[1] = byte(n)
	t[11] = 0xA5
	return t
}

func openRepo(t *testing.T, store interfaces.StateStore, slots int) *Repository {
	t.Helper()
	r, err := Open(context.Background(), store, slots, testLogger())
	require.NoError(t, err)
	return r
}

func TestPersistValidateRemove(t *testing.T) {
	ctx := context.Background()
	r := openRepo(t, storage.NewMemoryStore("t", testLogger()), 0)
	assert.Equal(t, DefaultSlots, r.Capacity())

	tag := tagN(1)
	assert.False(t, r.Validate(tag))

	require.NoError(t, r.Persist(ctx, tag))
	assert.True(t, r.Validate(tag))
	assert.Equal(t, uint32(0), r.UsageCount(tag))
	assert.Equal(t, 1, r.Count())

	require.NoError(t, r.Remove(ctx, tag))
	assert.False(t, r.Validate(tag))
	assert.Equal(t, 0, r.Count())

	// Second remove fails and changes nothing
	err := r.Remove(ctx, tag)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	assert.ErrorIs(t, err, interfaces.ErrCommandNotAllowed)
	assert.Equal(t, 0, r.Count())
}

func TestPersist_Duplicate(t *testing.T) {
	ctx := context.Background()
	r := openRepo(t, storage.NewMemoryStore("t", testLogger()), 4)

	tag := tagN(7)
	require.NoError(t, r.Persist(ctx, tag))
	require.NoError(t, r.SetUsageCount(ctx, tag, 3))

	require.NoError(t, r.Persist(ctx, tag))
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, uint32(3), r.UsageCount(tag), "duplicate persist must not reset the counter")
}

func TestPersist_FullTable(t *testing.T) {
	ctx := context.Background()
	r := openRepo(t, storage.NewMemoryStore("t", testLogger()), DefaultSlots)

	for i := 0; i < DefaultSlots; i++ {
		require.NoError(t, r.Persist(ctx, tagN(i)))
	}
	assert.Equal(t, DefaultSlots, r.Count())

	err := r.Persist(ctx, tagN(DefaultSlots))
	assert.ErrorIs(t, err, interfaces.ErrResourceExhausted)
	assert.False(t, r.Validate(tagN(DefaultSlots)))
	assert.Equal(t, DefaultSlots, r.Count())

	for i := 0; i < DefaultSlots; i++ {
		assert.True(t, r.Validate(tagN(i)), "tag %d", i)
	}

	// A freed slot is reused
	require.NoError(t, r.Remove(ctx, tagN(5)))
	require.NoError(t, r.Persist(ctx, tagN(DefaultSlots)))
	assert.Equal(t, tagN(DefaultSlots), r.Entries()[5].Tag)
}

func TestUsageCount(t *testing.T) {
	ctx := context.Background()
	r := openRepo(t, storage.NewMemoryStore("t", testLogger()), 4)

	tag := tagN(1)
	assert.Equal(t, InvalidUsageCount, r.UsageCount(tag))

	// Setting an absent tag is a no-op
	require.NoError(t, r.SetUsageCount(ctx, tag, 9))
	assert.Equal(t, InvalidUsageCount, r.UsageCount(tag))

	require.NoError(t, r.Persist(ctx, tag))
	require.NoError(t, r.SetUsageCount(ctx, tag, 42))
	assert.Equal(t, uint32(42), r.UsageCount(tag))

	assert.ErrorIs(t, r.SetUsageCount(ctx, tag, InvalidUsageCount), interfaces.ErrInvalidData)
	assert.Equal(t, uint32(42), r.UsageCount(tag))
}

func TestRemoveAll(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("t", testLogger())
	r := openRepo(t, store, 8)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Persist(ctx, tagN(i)))
	}
	require.NoError(t, r.RemoveAll(ctx))
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.Entries())

	reopened := openRepo(t, store, 8)
	assert.Equal(t, 0, reopened.Count())
}

func TestOpen_Reload(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("t", testLogger())
	r := openRepo(t, store, 8)

	require.NoError(t, r.Persist(ctx, tagN(1)))
	require.NoError(t, r.Persist(ctx, tagN(2)))
	require.NoError(t, r.SetUsageCount(ctx, tagN(2), 11))
	require.NoError(t, r.Remove(ctx, tagN(1)))

	reopened := openRepo(t, store, 8)
	assert.Equal(t, r.Entries(), reopened.Entries())
	assert.Equal(t, uint32(11), reopened.UsageCount(tagN(2)))
	assert.False(t, reopened.LastRecovery().Replayed)

	// Journal is gone after a clean commit
	_, err := store.Load(ctx, journalRecord)
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)
}

func TestOpen_SlotMismatch(t *testing.T) {
	store := storage.NewMemoryStore("t", testLogger())
	r := openRepo(t, store, 8)
	require.NoError(t, r.Persist(context.Background(), tagN(1)))

	_, err := Open(context.Background(), store, 16, testLogger())
	assert.ErrorIs(t, err, interfaces.ErrCorruptState)
}

func TestOpen_CorruptSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("undecodable", func(t *testing.T) {
		store := storage.NewMemoryStore("t", testLogger())
		require.NoError(t, store.Save(ctx, snapshotRecord, []byte{0xff, 0x00}))
		_, err := Open(ctx, store, 4, testLogger())
		assert.ErrorIs(t, err, interfaces.ErrCorruptState)
	})

	t.Run("duplicate tags", func(t *testing.T) {
		store := storage.NewMemoryStore("t", testLogger())
		dup := Entry{Tag: tagN(1), Reserved: true}
		data, err := encode(snapshot{Seq: 1, Count: 2, Slots: []Entry{dup, dup, {}, {}}})
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, snapshotRecord, data))

		_, err = Open(ctx, store, 4, testLogger())
		assert.ErrorIs(t, err, interfaces.ErrCorruptState)
	})

	t.Run("count mismatch", func(t *testing.T) {
		store := storage.NewMemoryStore("t", testLogger())
		data, err := encode(snapshot{Seq: 1, Count: 3, Slots: []Entry{{Tag: tagN(1), Reserved: true}, {}, {}, {}}})
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, snapshotRecord, data))

		_, err = Open(ctx, store, 4, testLogger())
		assert.ErrorIs(t, err, interfaces.ErrCorruptState)
	})
}

func TestOpen_BackendError(t *testing.T) {
	store := &faultStore{StateStore: storage.NewMemoryStore("t", testLogger()), loadErr: errors.New("disk gone")}
	_, err := Open(context.Background(), store, 4, testLogger())
	assert.Error(t, err)
}

func TestCommit_CancelledContext(t *testing.T) {
	store := &faultStore{StateStore: storage.NewMemoryStore("t", testLogger())}
	r := openRepo(t, store, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Persist(ctx, tagN(1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, r.Validate(tagN(1)))
	assert.Equal(t, 0, store.ops)
}
