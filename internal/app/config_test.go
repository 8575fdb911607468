package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safechat/internal/app"
	"safechat/internal/store"
)

func TestLoadConfig_Defaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := app.LoadConfig(home)
	require.NoError(t, err)
	assert.Equal(t, app.DefaultConfig(home), cfg)
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, app.ConfigFilename), []byte(`
log_level = "debug"
cipher = "chacha20-poly1305"
scrypt_n = 1024
`), 0o600))

	cfg, err := app.LoadConfig(home)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "chacha20-poly1305", cfg.Cipher)
	assert.Equal(t, 1024, cfg.ScryptParams().N)
	assert.Equal(t, home, cfg.Home)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*app.Config)
	}{
		{"log level", func(c *app.Config) { c.LogLevel = "loud" }},
		{"cipher", func(c *app.Config) { c.Cipher = "rot13" }},
		{"chunk size", func(c *app.Config) { c.StreamChunkSize = 0 }},
		{"scrypt not power of two", func(c *app.Config) { c.ScryptN = 1000 }},
		{"empty home", func(c *app.Config) { c.Home = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := app.DefaultConfig(t.TempDir())
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig_BadToml(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, app.ConfigFilename), []byte("log_level = ["), 0o600))
	_, err := app.LoadConfig(home)
	assert.Error(t, err)
}

func TestNewWire_EndToEnd(t *testing.T) {
	ctx := context.Background()
	newCfg := func() app.Config {
		cfg := app.DefaultConfig(t.TempDir())
		cfg.ScryptN = 1 << 10
		return cfg
	}
	aliceCfg, bobCfg := newCfg(), newCfg()

	alice, err := app.NewWire(ctx, aliceCfg, "alice-pass")
	require.NoError(t, err)
	bob, err := app.NewWire(ctx, bobCfg, "bob-pass")
	require.NoError(t, err)

	inv, err := alice.Contacts.Invite(ctx, "bob")
	require.NoError(t, err)
	id, _, err := bob.Contacts.Accept(ctx, "alice", inv)
	require.NoError(t, err)

	env, err := bob.Messages.Send(ctx, id, "hello over the wire")
	require.NoError(t, err)
	require.NotNil(t, env)
	require.NoError(t, bob.Close())

	got, err := alice.Messages.Receive(ctx, *env)
	require.NoError(t, err)
	assert.Equal(t, "hello over the wire", got.Content)
	require.NoError(t, alice.Close())

	// State survives a restart; the wrong passphrase is refused.
	_, err = app.NewWire(ctx, aliceCfg, "wrong")
	require.ErrorIs(t, err, store.ErrWrongPassphrase)

	alice, err = app.NewWire(ctx, aliceCfg, "alice-pass")
	require.NoError(t, err)
	defer alice.Close()
	hist, err := alice.Messages.History(ctx, inv.ContactID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "hello over the wire", hist[0].Content)
}
