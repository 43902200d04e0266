// Package config loads the keymaster state service configuration from TOML.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ruteri/tee-keymaster-state/arena"
	"github.com/ruteri/tee-keymaster-state/interfaces"
	"github.com/ruteri/tee-keymaster-state/keymaster"
)

// Config is the runtime configuration of the service.
type Config struct {
	Keymaster  keymaster.Config
	StoreURI   string
	MirrorURIs []string
	Server     ServerConfig
}

// ServerConfig configures the operator HTTP surface.
type ServerConfig struct {
	ListenAddr    string
	DrainDuration time.Duration
}

// config.toml key mapping to runtime settings.
type fileConfig struct {
	Arena struct {
		Capacity int `toml:"capacity"`
	} `toml:"arena"`
	AuthTags struct {
		Slots   int      `toml:"slots"`
		Store   string   `toml:"store"`
		Mirrors []string `toml:"mirrors"`
	} `toml:"authtags"`
	Operations struct {
		Slots int `toml:"slots"`
	} `toml:"operations"`
	Limits struct {
		AttestationApplicationID int `toml:"attestation_application_id"`
		SubjectCommonName        int `toml:"subject_common_name"`
		ApplicationIDData        int `toml:"application_id_data"`
		AttestationChallenge     int `toml:"attestation_challenge"`
		AttestationIDs           int `toml:"attestation_ids"`
	} `toml:"limits"`
	Server struct {
		ListenAddr   string `toml:"listen_addr"`
		DrainSeconds int    `toml:"drain_seconds"`
	} `toml:"server"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Keymaster: keymaster.DefaultConfig(),
		StoreURI:  "memory://keymaster",
		Server: ServerConfig{
			ListenAddr:    "127.0.0.1:8080",
			DrainDuration: 45 * time.Second,
		},
	}
}

// Load reads path and overlays the keys it defines onto Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("arena", "capacity") {
		cfg.Keymaster.ArenaCapacity = raw.Arena.Capacity
	}
	if meta.IsDefined("authtags", "slots") {
		cfg.Keymaster.AuthTagSlots = raw.AuthTags.Slots
	}
	if meta.IsDefined("authtags", "store") {
		cfg.StoreURI = strings.TrimSpace(raw.AuthTags.Store)
	}
	if meta.IsDefined("authtags", "mirrors") {
		cfg.MirrorURIs = raw.AuthTags.Mirrors
	}
	if meta.IsDefined("operations", "slots") {
		cfg.Keymaster.OperationSlots = raw.Operations.Slots
	}

	limits := &cfg.Keymaster.Limits
	if meta.IsDefined("limits", "attestation_application_id") {
		limits.AttestationApplicationID = raw.Limits.AttestationApplicationID
	}
	if meta.IsDefined("limits", "subject_common_name") {
		limits.SubjectCommonName = raw.Limits.SubjectCommonName
	}
	if meta.IsDefined("limits", "application_id_data") {
		limits.ApplicationIDData = raw.Limits.ApplicationIDData
	}
	if meta.IsDefined("limits", "attestation_challenge") {
		limits.AttestationChallenge = raw.Limits.AttestationChallenge
	}
	if meta.IsDefined("limits", "attestation_ids") {
		limits.AttestationIDs = raw.Limits.AttestationIDs
	}

	if meta.IsDefined("server", "listen_addr") {
		cfg.Server.ListenAddr = strings.TrimSpace(raw.Server.ListenAddr)
	}
	if meta.IsDefined("server", "drain_seconds") {
		cfg.Server.DrainDuration = time.Duration(raw.Server.DrainSeconds) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and URIs.
func (c Config) Validate() error {
	if c.Keymaster.ArenaCapacity <= 0 || c.Keymaster.ArenaCapacity > arena.MaxCapacity {
		return fmt.Errorf("arena capacity must be 1 to %d, got %d", arena.MaxCapacity, c.Keymaster.ArenaCapacity)
	}
	if c.Keymaster.AuthTagSlots <= 0 {
		return fmt.Errorf("authtags.slots must be positive, got %d", c.Keymaster.AuthTagSlots)
	}
	if c.Keymaster.OperationSlots <= 0 {
		return fmt.Errorf("operations.slots must be positive, got %d", c.Keymaster.OperationSlots)
	}
	if err := c.Keymaster.Limits.Validate(); err != nil {
		return err
	}
	if _, err := interfaces.ParseStoreLocation(c.StoreURI); err != nil {
		return fmt.Errorf("authtags.store: %w", err)
	}
	for _, uri := range c.MirrorURIs {
		if _, err := interfaces.ParseStoreLocation(uri); err != nil {
			return fmt.Errorf("authtags.mirrors: %w", err)
		}
	}
	if c.Server.DrainDuration < 0 {
		return fmt.Errorf("server.drain_seconds must not be negative")
	}
	return nil
}
