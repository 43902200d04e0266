package authtag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/tee-keymaster-state/interfaces"
)

// commit makes writes and the new live count durable, then applies them.
// An error means the table is unchanged both in memory and after recovery.
func (r *Repository) commit(ctx context.Context, count int, writes ...slotWrite) error {
	if r.dirty {
		if err := r.flush(ctx); err != nil {
			return fmt.Errorf("failed to checkpoint previous commit: %w", err)
		}
	}

	seq := r.nextSeq
	r.nextSeq++

	j := journal{Seq: seq, Count: count, Writes: writes}
	journalData, err := encode(j)
	if err != nil {
		return err
	}
	markerData, err := encode(marker{Seq: seq})
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.store.Save(ctx, journalRecord, journalData); err != nil {
		return fmt.Errorf("failed to stage journal: %w", err)
	}

	if err := ctx.Err(); err != nil {
		r.discardJournal(ctx, seq)
		return err
	}
	if err := r.store.Save(ctx, markerRecord, markerData); err != nil {
		r.abort(ctx, seq)
		return fmt.Errorf("failed to write commit marker: %w", err)
	}
	r.markerSeq = seq

	// Committed. The remaining steps only checkpoint and are retried by the
	// next commit or replayed by recovery.
	r.apply(j)
	r.dirty = true

	if err := r.flush(context.WithoutCancel(ctx)); err != nil {
		r.log.Warn("Auth tag change committed but not checkpointed",
			slog.Uint64("seq", seq),
			"err", err)
	}
	return nil
}

// flush saves a snapshot of the applied state and drops the journal.
func (r *Repository) flush(ctx context.Context) error {
	data, err := encode(snapshot{Seq: r.appliedSeq, Count: r.count, Slots: r.slots})
	if err != nil {
		return err
	}
	if err := r.store.Save(ctx, snapshotRecord, data); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	r.dirty = false

	if err := r.store.Delete(ctx, journalRecord); err != nil {
		// A journal not newer than the snapshot is discarded by recovery.
		r.log.Warn("Failed to delete applied journal", slog.Uint64("seq", r.appliedSeq), "err", err)
	}
	return nil
}

// discardJournal removes a journal whose commit was abandoned.
func (r *Repository) discardJournal(ctx context.Context, seq uint64) {
	if err := r.store.Delete(context.WithoutCancel(ctx), journalRecord); err != nil {
		r.log.Warn("Failed to discard abandoned journal", slog.Uint64("seq", seq), "err", err)
	}
}

// abort undoes a commit whose marker write reported failure. The marker may
// still have landed, so either the journal must go or the marker must be
// restored to the last committed sequence; recovery replays a journal only
// when both agree.
func (r *Repository) abort(ctx context.Context, seq uint64) {
	ctx = context.WithoutCancel(ctx)

	journalErr := r.store.Delete(ctx, journalRecord)
	if journalErr == nil {
		return
	}

	restored, err := encode(marker{Seq: r.markerSeq})
	if err == nil {
		err = r.store.Save(ctx, markerRecord, restored)
	}
	if err == nil {
		r.log.Warn("Abandoned journal kept, commit marker restored",
			slog.Uint64("seq", seq),
			slog.Uint64("marker_seq", r.markerSeq),
			"err", journalErr)
		return
	}

	r.log.Error("Failed to abandon commit; a restart before the next commit may replay it",
		slog.Uint64("seq", seq),
		"journal_err", journalErr,
		"marker_err", err)
}

func (r *Repository) apply(j journal) {
	for _, w := range j.Writes {
		r.slots[w.Index] = w.Entry
	}
	r.count = j.Count
	r.appliedSeq = j.Seq
}

// recover loads the snapshot, then replays or discards a pending journal.
func (r *Repository) recover(ctx context.Context) error {
	var snap snapshot
	found, err := r.load(ctx, snapshotRecord, &snap)
	if err != nil {
		return err
	}
	if found {
		if len(snap.Slots) != len(r.slots) {
			return fmt.Errorf("%w: snapshot has %d slots, repository configured for %d", interfaces.ErrCorruptState, len(snap.Slots), len(r.slots))
		}
		if err := checkInvariants(snap.Slots, snap.Count); err != nil {
			return err
		}
		copy(r.slots, snap.Slots)
		r.count = snap.Count
		r.appliedSeq = snap.Seq
	}

	var m marker
	if _, err := r.load(ctx, markerRecord, &m); err != nil {
		return err
	}

	var j journal
	hasJournal, err := r.load(ctx, journalRecord, &j)
	if err != nil {
		return err
	}

	r.recovery = Recovery{SnapshotSeq: snap.Seq, MarkerSeq: m.Seq, JournalSeq: j.Seq}
	r.markerSeq = m.Seq
	r.nextSeq = max(snap.Seq, m.Seq, j.Seq) + 1

	if !hasJournal {
		return nil
	}

	if j.Seq != m.Seq || j.Seq <= snap.Seq {
		r.log.Info("Discarding uncommitted auth tag journal",
			slog.Uint64("journal_seq", j.Seq),
			slog.Uint64("marker_seq", m.Seq),
			slog.Uint64("snapshot_seq", snap.Seq))
		r.recovery.Discarded = true
		if err := r.store.Delete(ctx, journalRecord); err != nil {
			return fmt.Errorf("failed to discard journal: %w", err)
		}
		return nil
	}

	slots := append([]Entry(nil), r.slots...)
	for _, w := range j.Writes {
		if w.Index < 0 || w.Index >= len(slots) {
			return fmt.Errorf("%w: journal writes slot %d of %d", interfaces.ErrCorruptState, w.Index, len(slots))
		}
		slots[w.Index] = w.Entry
	}
	if err := checkInvariants(slots, j.Count); err != nil {
		return err
	}

	r.log.Warn("Replaying committed auth tag journal",
		slog.Uint64("seq", j.Seq),
		slog.Int("writes", len(j.Writes)))
	r.apply(j)
	r.dirty = true
	r.recovery.Replayed = true

	return r.flush(ctx)
}

// load decodes the named record into v. A missing record is not an error.
func (r *Repository) load(ctx context.Context, name string, v any) (bool, error) {
	data, err := r.store.Load(ctx, name)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", name, err)
	}
	if err := decode(data, v); err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return true, nil
}
