// Package authtag implements the bounded repository of authorization tags.
//
// An auth tag is the 12-byte authentication tag of a sealed key blob. The
// repository records which blobs have been issued (so a blob can be checked
// for validity and removed on key deletion) and keeps a usage counter per
// blob for rate limiting.
//
// The table has a fixed number of slots. Each slot is either free or
// reserved with a distinct tag and its counter:
//
//	Free --Persist--> Reserved(tag, 0) --SetUsageCount--> Reserved(tag, n)
//	Reserved --Remove/RemoveAll--> Free
//
// # Durability
//
// Every mutation touches several fields (slot, tag, counter, live count) and
// is made crash-atomic by a write-ahead commit over an interfaces.StateStore:
//
//  1. the new slot images are staged as a journal record tagged with a
//     sequence number
//  2. a commit marker holding that sequence number is written; this single
//     atomic write is the commit point
//  3. the change is applied in memory and a snapshot is saved
//  4. the journal is deleted
//
// Open recovers from an interruption at any step: a journal whose sequence
// equals the marker and is newer than the snapshot is replayed, any other
// journal is discarded. After recovery the table reflects either the state
// before or the state after each interrupted mutation, never a mix.
//
// # Usage
//
//	repo, err := authtag.Open(ctx, store, authtag.DefaultSlots, logger)
//	if err != nil {
//		return err
//	}
//	if err := repo.Persist(ctx, tag); err != nil {
//		return err // interfaces.ErrResourceExhausted when full
//	}
//	n := repo.UsageCount(tag)
//
// The repository is not safe for concurrent use; callers serialize access.
package authtag
