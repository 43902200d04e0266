package authtag

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ruteri/tee-keymaster-state/interfaces"
	"github.com/ruteri/tee-keymaster-state/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected fault")

// faultStore counts mutating calls. With crashFrom set, the call with that
// number and every later one fails, as if the process died before it. Calls
// listed in fail fail without effect; calls listed in lie take effect but
// still report an error.
type faultStore struct {
	interfaces.StateStore
	ops       int
	crashFrom int
	fail      map[int]bool
	lie       map[int]bool
	loadErr   error
}

func (f *faultStore) mutate(do func() error) error {
	f.ops++
	switch {
	case f.crashFrom > 0 && f.ops >= f.crashFrom, f.fail[f.ops]:
		return errInjected
	case f.lie[f.ops]:
		if err := do(); err != nil {
			return err
		}
		return errInjected
	}
	return do()
}

func (f *faultStore) Load(ctx context.Context, name string) ([]byte, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.StateStore.Load(ctx, name)
}

func (f *faultStore) Save(ctx context.Context, name string, data []byte) error {
	return f.mutate(func() error { return f.StateStore.Save(ctx, name, data) })
}

func (f *faultStore) Delete(ctx context.Context, name string) error {
	return f.mutate(func() error { return f.StateStore.Delete(ctx, name) })
}

type mutation struct {
	name string
	run  func(ctx context.Context, r *Repository) error
}

var mutations = []mutation{
	{"persist", func(ctx context.Context, r *Repository) error { return r.Persist(ctx, tagN(9)) }},
	{"remove", func(ctx context.Context, r *Repository) error { return r.Remove(ctx, tagN(1)) }},
	{"set usage", func(ctx context.Context, r *Repository) error { return r.SetUsageCount(ctx, tagN(2), 77) }},
	{"remove all", func(ctx context.Context, r *Repository) error { return r.RemoveAll(ctx) }},
}

// seed brings a repository into a non-trivial state.
func seed(t *testing.T, r *Repository) {
	ctx := context.Background()
	require.NoError(t, r.Persist(ctx, tagN(1)))
	require.NoError(t, r.Persist(ctx, tagN(2)))
	require.NoError(t, r.Persist(ctx, tagN(3)))
	require.NoError(t, r.SetUsageCount(ctx, tagN(2), 5))
	require.NoError(t, r.Remove(ctx, tagN(3)))
}

// A commit performs four mutating store calls: stage journal, write marker,
// save snapshot, delete journal. Crashing before any of them must leave the
// table in the pre-state (before the marker) or the post-state (after it).
func TestCommit_CrashAtEveryStep(t *testing.T) {
	for _, m := range mutations {
		// Expected post-state from a fault-free run
		clean := openRepo(t, storage.NewMemoryStore("clean", testLogger()), 8)
		seed(t, clean)
		pre := clean.Entries()
		require.NoError(t, m.run(context.Background(), clean))
		post := clean.Entries()

		for step := 1; step <= 4; step++ {
			t.Run(fmt.Sprintf("%s/crash at step %d", m.name, step), func(t *testing.T) {
				mem := storage.NewMemoryStore("t", testLogger())
				fs := &faultStore{StateStore: mem}
				r := openRepo(t, fs, 8)
				seed(t, r)

				fs.crashFrom = fs.ops + step
				err := m.run(context.Background(), r)

				committed := step > 2
				if committed {
					assert.NoError(t, err)
					assert.Equal(t, post, r.Entries())
				} else {
					assert.ErrorIs(t, err, errInjected)
					assert.Equal(t, pre, r.Entries())
				}

				// Restart on the surviving durable state
				recovered := openRepo(t, mem, 8)
				if committed {
					assert.Equal(t, post, recovered.Entries())
				} else {
					assert.Equal(t, pre, recovered.Entries())
				}
				assert.Equal(t, len(recovered.Entries()), recovered.Count())

				_, err = mem.Load(context.Background(), journalRecord)
				assert.ErrorIs(t, err, interfaces.ErrRecordNotFound, "recovery leaves no journal behind")
			})
		}
	}
}

func TestRecover_ReplaysCommittedJournal(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore("t", testLogger())
	fs := &faultStore{StateStore: mem}
	r := openRepo(t, fs, 4)

	// Crash right after the commit marker
	fs.crashFrom = fs.ops + 3
	require.NoError(t, r.Persist(ctx, tagN(1)))

	recovered := openRepo(t, mem, 4)
	rec := recovered.LastRecovery()
	assert.True(t, rec.Replayed)
	assert.False(t, rec.Discarded)
	assert.Equal(t, rec.MarkerSeq, rec.JournalSeq)
	assert.Greater(t, rec.JournalSeq, rec.SnapshotSeq)
	assert.True(t, recovered.Validate(tagN(1)))

	// Replay is checkpointed: a second restart finds nothing to do
	again := openRepo(t, mem, 4)
	assert.False(t, again.LastRecovery().Replayed)
	assert.True(t, again.Validate(tagN(1)))
}

func TestRecover_DiscardsUncommittedJournal(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore("t", testLogger())
	fs := &faultStore{StateStore: mem}
	r := openRepo(t, fs, 4)
	require.NoError(t, r.Persist(ctx, tagN(1)))

	// Crash right after staging the journal
	fs.crashFrom = fs.ops + 2
	assert.Error(t, r.Persist(ctx, tagN(2)))

	recovered := openRepo(t, mem, 4)
	assert.True(t, recovered.LastRecovery().Discarded)
	assert.True(t, recovered.Validate(tagN(1)))
	assert.False(t, recovered.Validate(tagN(2)))
}

func TestCommit_SequenceNotReusedAfterAbort(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore("t", testLogger())
	fs := &faultStore{StateStore: mem}
	r := openRepo(t, fs, 4)

	// The marker reaches the store but reports failure, and neither the
	// journal delete nor the marker restore succeeds afterwards
	fs.lie = map[int]bool{fs.ops + 2: true}
	fs.fail = map[int]bool{fs.ops + 3: true, fs.ops + 4: true}
	assert.Error(t, r.Persist(ctx, tagN(1)))
	assert.False(t, r.Validate(tagN(1)))

	// The next commit crashes after staging its own journal
	fs.crashFrom = fs.ops + 2
	assert.Error(t, r.Persist(ctx, tagN(2)))

	recovered := openRepo(t, mem, 4)
	assert.True(t, recovered.LastRecovery().Discarded)
	assert.False(t, recovered.Validate(tagN(1)))
	assert.False(t, recovered.Validate(tagN(2)))
}

func TestCommit_AbortRestoresMarker(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore("t", testLogger())
	fs := &faultStore{StateStore: mem}
	r := openRepo(t, fs, 4)
	require.NoError(t, r.Persist(ctx, tagN(1)))

	// The marker reaches the store but reports failure, and the journal
	// cannot be deleted
	fs.lie = map[int]bool{fs.ops + 2: true}
	fs.fail = map[int]bool{fs.ops + 3: true}
	assert.Error(t, r.Persist(ctx, tagN(2)))
	assert.False(t, r.Validate(tagN(2)))

	// Restart straight away: the failed persist is not replayed
	recovered := openRepo(t, mem, 4)
	rec := recovered.LastRecovery()
	assert.False(t, rec.Replayed)
	assert.True(t, rec.Discarded)
	assert.Less(t, rec.MarkerSeq, rec.JournalSeq)
	assert.True(t, recovered.Validate(tagN(1)))
	assert.False(t, recovered.Validate(tagN(2)))
}

func TestCommit_AbortDeletesJournal(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore("t", testLogger())
	fs := &faultStore{StateStore: mem}
	r := openRepo(t, fs, 4)

	// The marker reaches the store but reports failure
	fs.lie = map[int]bool{fs.ops + 2: true}
	assert.Error(t, r.Persist(ctx, tagN(1)))

	_, err := mem.Load(ctx, journalRecord)
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)

	recovered := openRepo(t, mem, 4)
	assert.False(t, recovered.LastRecovery().Replayed)
	assert.False(t, recovered.Validate(tagN(1)))
}

func TestCommit_CheckpointRetriedByNextCommit(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore("t", testLogger())
	fs := &faultStore{StateStore: mem}
	r := openRepo(t, fs, 4)

	// Snapshot save fails once after a successful marker
	fs.fail = map[int]bool{fs.ops + 3: true}
	require.NoError(t, r.Persist(ctx, tagN(1)))
	assert.True(t, r.dirty)

	require.NoError(t, r.Persist(ctx, tagN(2)))
	assert.False(t, r.dirty)

	recovered := openRepo(t, mem, 4)
	assert.False(t, recovered.LastRecovery().Replayed)
	assert.True(t, recovered.Validate(tagN(1)))
	assert.True(t, recovered.Validate(tagN(2)))
}

// switchableStore reports itself unavailable while down is set.
type switchableStore struct {
	interfaces.StateStore
	down bool
}

func (s *switchableStore) Load(ctx context.Context, name string) ([]byte, error) {
	if s.down {
		return nil, interfaces.ErrBackendUnavailable
	}
	return s.StateStore.Load(ctx, name)
}

func (s *switchableStore) Available(ctx context.Context) bool {
	return !s.down && s.StateStore.Available(ctx)
}

func TestOpen_ReplicatedPrimaryDown(t *testing.T) {
	ctx := context.Background()
	primary := &switchableStore{StateStore: storage.NewMemoryStore("primary", testLogger())}
	mirrorMem := storage.NewMemoryStore("mirror", testLogger())
	mirror := &faultStore{StateStore: mirrorMem}
	store := storage.NewReplicatedStore(primary, []interfaces.StateStore{mirror}, testLogger())

	r := openRepo(t, store, 4)
	require.NoError(t, r.Persist(ctx, tagN(1)))

	// The mirror misses every write of the next commit
	mirror.crashFrom = mirror.ops + 1
	require.NoError(t, r.SetUsageCount(ctx, tagN(1), 9))

	stale, err := Open(ctx, mirrorMem, 4, testLogger())
	require.NoError(t, err)
	require.Equal(t, uint32(0), stale.UsageCount(tagN(1)), "mirror lags behind the primary")

	// A stale mirror must not stand in for the primary
	primary.down = true
	_, err = Open(ctx, store, 4, testLogger())
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)

	primary.down = false
	recovered := openRepo(t, store, 4)
	assert.Equal(t, uint32(9), recovered.UsageCount(tagN(1)))
}
