package flags

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/tee-keymaster-state/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func loadWithArgs(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()

	var (
		cfg    config.Config
		cfgErr error
	)
	app := &cli.App{
		Name:  "test",
		Flags: append(append([]cli.Flag{}, CommonFlags...), ServerFlags...),
		Action: func(cCtx *cli.Context) error {
			cfg, cfgErr = LoadConfig(cCtx)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
	return cfg, cfgErr
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadWithArgs(t)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kmstate.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[authtags]
store = "file:///var/lib/keymaster"

[server]
listen_addr = "0.0.0.0:9090"
`), 0600))

	cfg, err := loadWithArgs(t,
		"--config", path,
		"--listen-addr", "127.0.0.1:7070",
		"--mirror", "memory://a", "--mirror", "memory://b",
		"--drain-seconds", "3")
	require.NoError(t, err)

	assert.Equal(t, "file:///var/lib/keymaster", cfg.StoreURI)
	assert.Equal(t, "127.0.0.1:7070", cfg.Server.ListenAddr)
	assert.Equal(t, []string{"memory://a", "memory://b"}, cfg.MirrorURIs)
	assert.Equal(t, 3*time.Second, cfg.Server.DrainDuration)
}

func TestLoadConfig_InvalidStore(t *testing.T) {
	_, err := loadWithArgs(t, "--store", "ipfs://localhost:5001")
	assert.Error(t, err)
}
