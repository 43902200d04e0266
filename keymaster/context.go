package keymaster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/tee-keymaster-state/arena"
	"github.com/ruteri/tee-keymaster-state/authtag"
	"github.com/ruteri/tee-keymaster-state/interfaces"
	"github.com/ruteri/tee-keymaster-state/opstate"
	"github.com/ruteri/tee-keymaster-state/tlv"
)

// Config sizes the components of a Context.
type Config struct {
	ArenaCapacity  int
	AuthTagSlots   int
	OperationSlots int
	Limits         tlv.Limits
	// Subject decodes certificate subjects; nil selects tlv.DERSubjectDecoder.
	Subject interfaces.SubjectDecoder
}

// DefaultConfig returns the sizes of the reference hardware.
func DefaultConfig() Config {
	return Config{
		ArenaCapacity:  arena.DefaultCapacity,
		AuthTagSlots:   authtag.DefaultSlots,
		OperationSlots: opstate.DefaultSlots,
		Limits:         tlv.DefaultLimits(),
	}
}

// Context exclusively owns the keymaster state.
type Context struct {
	mu  sync.Mutex
	log *slog.Logger

	arena    *arena.Arena
	authTags *authtag.Repository
	ops      *opstate.Pool
	policy   tlv.Policy
	secrets  Secrets
	boot     bootState

	tornDown bool
}

// Status is a point-in-time summary of the context.
type Status struct {
	Arena           arena.Metrics `json:"arena"`
	AuthTagCount    int           `json:"auth_tag_count"`
	AuthTagCapacity int           `json:"auth_tag_capacity"`
	OperationsInUse int           `json:"operations_in_use"`
	OperationSlots  int           `json:"operation_slots"`
	Secrets         SecretsStatus `json:"secrets"`
	BootProvisioned bool          `json:"boot_provisioned"`
	TornDown        bool          `json:"torn_down"`
}

// New creates a context, loading the auth tag table from store.
func New(ctx context.Context, cfg Config, store interfaces.StateStore, log *slog.Logger) (*Context, error) {
	if err := cfg.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limits: %w", err)
	}

	a, err := arena.New(cfg.ArenaCapacity)
	if err != nil {
		return nil, err
	}

	repo, err := authtag.Open(ctx, store, cfg.AuthTagSlots, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open auth tag repository: %w", err)
	}

	subject := cfg.Subject
	if subject == nil {
		subject = tlv.DERSubjectDecoder{}
	}

	return &Context{
		log:      log,
		arena:    a,
		authTags: repo,
		ops:      opstate.New(cfg.OperationSlots),
		policy:   tlv.Policy{Limits: cfg.Limits, Subject: subject},
	}, nil
}

// Process runs fn as one request/response cycle. Cycles are serialized and
// the arena is wiped on every exit path, panics included.
func (k *Context) Process(ctx context.Context, fn func(*Cycle) error) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.tornDown {
		return fmt.Errorf("%w: keymaster torn down", interfaces.ErrCommandNotAllowed)
	}

	defer k.arena.Wipe()

	err := fn(&Cycle{ctx: ctx, km: k})
	if err != nil {
		k.log.Debug("Cycle failed",
			slog.String("sw", fmt.Sprintf("%04X", interfaces.StatusWord(err))),
			"err", err)
	}
	return err
}

// Status returns a summary of the context.
func (k *Context) Status() Status {
	k.mu.Lock()
	defer k.mu.Unlock()

	return Status{
		Arena:           k.arena.Metrics(),
		AuthTagCount:    k.authTags.Count(),
		AuthTagCapacity: k.authTags.Capacity(),
		OperationsInUse: k.ops.Active(),
		OperationSlots:  k.ops.Capacity(),
		Secrets:         k.secrets.Status(),
		BootProvisioned: k.boot.set,
		TornDown:        k.tornDown,
	}
}

// Teardown wipes secrets, boot parameters, the arena and every operation slot.
// The context rejects further cycles.
func (k *Context) Teardown() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.secrets.Wipe()
	k.boot.wipe()
	k.arena.Wipe()
	k.ops.ReleaseAll()
	k.tornDown = true

	k.log.Info("Keymaster torn down")
}

// Cycle gives fn access to the context for the duration of one Process call.
type Cycle struct {
	ctx context.Context
	km  *Context
}

// Context returns the context of the request.
func (c *Cycle) Context() context.Context { return c.ctx }

// Arena returns the scratch arena.
func (c *Cycle) Arena() *arena.Arena { return c.km.arena }

// AuthTags returns the auth tag repository.
func (c *Cycle) AuthTags() *authtag.Repository { return c.km.authTags }

// Operations returns the operation pool.
func (c *Cycle) Operations() *opstate.Pool { return c.km.ops }

// Policy returns the byte-tag policy.
func (c *Cycle) Policy() tlv.Policy { return c.km.policy }

// Secrets returns the process-wide secrets.
func (c *Cycle) Secrets() *Secrets { return &c.km.secrets }

// SetBootParams stores the boot parameters. Only the first call succeeds.
func (c *Cycle) SetBootParams(p BootParams) error {
	if err := c.km.boot.store(p); err != nil {
		return err
	}
	c.km.log.Info("Boot parameters provisioned",
		slog.Uint64("os_version", uint64(p.OSVersion)),
		slog.Uint64("os_patch_level", uint64(p.OSPatchLevel)),
		slog.Bool("device_locked", p.DeviceLocked))
	return nil
}

// BootParams returns a copy of the boot parameters and whether they are set.
func (c *Cycle) BootParams() (BootParams, bool) {
	return c.km.boot.load()
}
