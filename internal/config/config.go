package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"

	"sprig/internal/digest"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

const (
	EnvPrefix    = "SPRIG_"
	RepoFileName = "config.toml"

	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Config struct {
	User struct {
		Name string `koanf:"name"`
	} `koanf:"user"`

	Core struct {
		Hash string `koanf:"hash"`
	} `koanf:"core"`

	Store struct {
		CacheSize       int `koanf:"cache_size"`
		CompressMinSize int `koanf:"compress_min_size"`
		CompressLevel   int `koanf:"compress_level"`
	} `koanf:"store"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`

	Color string `koanf:"color"`
}

// LoadOptions names the layers merged on top of the built-in defaults.
// Later layers win: user file, then repository file, then environment.
type LoadOptions struct {
	UserFile   string
	RepoConfig []byte
	SkipEnv    bool
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// UserConfigPath is the per-user config file under the XDG config home.
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "sprig", "config.toml")
}

func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if opts.UserFile != "" {
		if _, err := os.Stat(opts.UserFile); err == nil {
			if err := k.Load(file.Provider(opts.UserFile), toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load user config from %s: %w", opts.UserFile, err)
			}
		}
	}

	if len(opts.RepoConfig) > 0 {
		if err := k.Load(&rawBytesProvider{bytes: opts.RepoConfig}, toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load repository config: %w", err)
		}
	}

	if !opts.SkipEnv {
		err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
			// SPRIG_STORE_CACHE_SIZE -> store.cache_size
			return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load environment: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration with no files or environment
// applied.
func Default() *Config {
	cfg, err := Load(LoadOptions{SkipEnv: true})
	if err != nil {
		panic(fmt.Sprintf("embedded defaults are invalid: %v", err))
	}
	return cfg
}

func (c *Config) Validate() error {
	if _, err := digest.New(c.Core.Hash); err != nil {
		return fmt.Errorf("core.hash: %w", err)
	}
	if c.Store.CacheSize < 0 {
		return fmt.Errorf("store.cache_size must not be negative, got %d", c.Store.CacheSize)
	}
	if c.Store.CompressMinSize < 0 {
		return fmt.Errorf("store.compress_min_size must not be negative, got %d", c.Store.CompressMinSize)
	}
	if c.Store.CompressLevel < 1 || c.Store.CompressLevel > 22 {
		return fmt.Errorf("store.compress_level must be between 1 and 22, got %d", c.Store.CompressLevel)
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("color must be one of auto, always, never, got %q", c.Color)
	}
	return nil
}

// RepoFile renders the repository-scoped settings written by init.
func RepoFile(hash string) ([]byte, error) {
	k := koanf.New(".")
	err := k.Load(confmap.Provider(map[string]interface{}{
		"core.hash": hash,
	}, "."), nil)
	if err != nil {
		return nil, err
	}
	return k.Marshal(toml.Parser())
}

// RepoHash reads core.hash from a repository config file. The repository
// file is authoritative for the hash so that objects stay addressable no
// matter what the user or environment layers say.
func RepoHash(data []byte) (string, error) {
	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: data}, toml.Parser()); err != nil {
		return "", err
	}
	h := k.String("core.hash")
	if h == "" {
		h = digest.SHA256
	}
	return h, nil
}
