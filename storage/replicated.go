package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/tee-keymaster-state/interfaces"
)

// ReplicatedStore writes records to a primary store and to every mirror.
// The primary is authoritative: a Save or Delete that fails on it fails as a
// whole, mirror failures are only logged, and reads are served by the
// primary alone.
type ReplicatedStore struct {
	primary interfaces.StateStore
	mirrors []interfaces.StateStore
	log     *slog.Logger
}

// NewReplicatedStore creates a store replicating primary into mirrors.
func NewReplicatedStore(primary interfaces.StateStore, mirrors []interfaces.StateStore, logger *slog.Logger) *ReplicatedStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &ReplicatedStore{
		primary: primary,
		mirrors: mirrors,
		log:     logger,
	}
}

// Load reads from the primary only. Mirrors receive writes best effort and
// may lag behind it, so they are never read: a stale mirror would roll back
// committed state. While the primary is down Load fails with
// interfaces.ErrBackendUnavailable; to recover from a mirror, restart with
// that mirror configured as the primary.
func (r *ReplicatedStore) Load(ctx context.Context, name string) ([]byte, error) {
	if !r.primary.Available(ctx) {
		r.log.Error("Primary store unavailable",
			slog.String("backend_name", r.primary.Name()),
			slog.String("record", name))
		return nil, fmt.Errorf("%w: primary %s", interfaces.ErrBackendUnavailable, r.primary.Name())
	}
	return r.primary.Load(ctx, name)
}

// Save writes to the primary, then to every available mirror.
func (r *ReplicatedStore) Save(ctx context.Context, name string, data []byte) error {
	if err := r.primary.Save(ctx, name, data); err != nil {
		return err
	}

	for _, mirror := range r.mirrors {
		if !mirror.Available(ctx) {
			r.log.Debug("Mirror unavailable", slog.String("backend_name", mirror.Name()))
			continue
		}
		if err := mirror.Save(ctx, name, data); err != nil {
			r.log.Warn("Failed to replicate record",
				slog.String("backend_name", mirror.Name()),
				slog.String("record", name),
				"err", err)
		}
	}
	return nil
}

// Delete removes the record from the primary, then from every mirror.
func (r *ReplicatedStore) Delete(ctx context.Context, name string) error {
	if err := r.primary.Delete(ctx, name); err != nil {
		return err
	}

	for _, mirror := range r.mirrors {
		if err := mirror.Delete(ctx, name); err != nil {
			r.log.Warn("Failed to delete replicated record",
				slog.String("backend_name", mirror.Name()),
				slog.String("record", name),
				"err", err)
		}
	}
	return nil
}

// Available reports whether the primary is available.
func (r *ReplicatedStore) Available(ctx context.Context) bool {
	return r.primary.Available(ctx)
}

// Name returns the name of this store.
func (r *ReplicatedStore) Name() string {
	return "replicated-" + r.primary.Name()
}

// LocationURI returns a combined URI of the primary and mirrors.
func (r *ReplicatedStore) LocationURI() string {
	locations := []string{r.primary.LocationURI()}
	for _, mirror := range r.mirrors {
		locations = append(locations, mirror.LocationURI())
	}
	return "replicated:[" + strings.Join(locations, ",") + "]"
}
