package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"safechat/internal/crypto"
	"safechat/internal/store"
)

// ConfigFilename is the optional config file inside the home directory.
const ConfigFilename = "config.toml"

// Config holds runtime wiring options for building the app.
type Config struct {
	Home            string `toml:"-"`                 // data directory, e.g. $HOME/.safechat
	LogLevel        string `toml:"log_level"`         // logrus level name
	Cipher          string `toml:"cipher"`            // auto, aes-gcm or chacha20-poly1305
	StreamChunkSize int    `toml:"stream_chunk_size"` // plaintext bytes per stream segment
	ScryptN         int    `toml:"scrypt_n"`          // cost of new vaults, a power of two
}

// DefaultHome returns $SAFECHAT_HOME, or ~/.safechat.
func DefaultHome() string {
	if h := os.Getenv("SAFECHAT_HOME"); h != "" {
		return h
	}
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".safechat")
	}
	return ".safechat"
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig(home string) Config {
	return Config{
		Home:            home,
		LogLevel:        logrus.InfoLevel.String(),
		Cipher:          string(crypto.AlgorithmAuto),
		StreamChunkSize: crypto.DefaultChunkSize,
		ScryptN:         store.DefaultScryptParams().N,
	}
}

// LoadConfig reads <home>/config.toml over the defaults. A missing file is
// not an error.
func LoadConfig(home string) (Config, error) {
	cfg := DefaultConfig(home)
	b, err := os.ReadFile(filepath.Join(home, ConfigFilename))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return Config{}, err
	default:
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", ConfigFilename, err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Home == "" {
		return fmt.Errorf("config: empty home")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if _, err := crypto.ParseAlgorithm(c.Cipher); err != nil {
		return fmt.Errorf("config: cipher: %w", err)
	}
	if c.StreamChunkSize <= 0 {
		return fmt.Errorf("config: stream_chunk_size must be positive, got %d", c.StreamChunkSize)
	}
	if c.ScryptN < 2 || c.ScryptN&(c.ScryptN-1) != 0 {
		return fmt.Errorf("config: scrypt_n must be a power of two above 1, got %d", c.ScryptN)
	}
	return nil
}

// ScryptParams returns the vault parameters for new vaults.
func (c Config) ScryptParams() store.ScryptParams {
	p := store.DefaultScryptParams()
	p.N = c.ScryptN
	return p
}

// ApplyLogging sets the global logrus level from the config.
func (c Config) ApplyLogging() error {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: lvl < logrus.DebugLevel})
	return nil
}
