package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/ancsummary/pkg/ancestral"
	"github.com/matzehuels/ancsummary/pkg/archive"
	"github.com/matzehuels/ancsummary/pkg/cache"
)

// defaultAddr is the listen address of "serve" when none is configured.
const defaultAddr = ":8080"

// Config holds defaults read from the configuration file.
//
//	[summary]
//	burnin_fraction = 0.25
//	reconstruction = "marginal"
//	slices = 500
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//
//	[archive]
//	backend = "mongo"
//	uri = "mongodb://localhost:27017"
//
//	[server]
//	addr = ":8080"
type Config struct {
	Summary SummaryConfig  `toml:"summary"`
	Cache   cache.Config   `toml:"cache"`
	Archive archive.Config `toml:"archive"`
	Server  ServerConfig   `toml:"server"`
}

// SummaryConfig holds defaults for the summary commands.
type SummaryConfig struct {
	Burnin         int                      `toml:"burnin"`
	BurninFraction float64                  `toml:"burnin_fraction"`
	Reconstruction ancestral.Reconstruction `toml:"reconstruction"`
	Statistic      ancestral.Statistic      `toml:"statistic"`
	Site           int                      `toml:"site"`
	Slices         int                      `toml:"slices"`
	TreeColumn     string                   `toml:"tree_column"`
}

// ServerConfig holds defaults for "serve".
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// defaultConfig returns the configuration used when no file exists.
func defaultConfig() Config {
	return Config{
		Summary: SummaryConfig{Slices: ancestral.DefaultSlices},
		Server:  ServerConfig{Addr: defaultAddr},
	}
}

// loadConfig reads the file at path over the defaults. A missing file at
// the default location is not an error; a missing explicit path is.
// Keys the file sets that Config does not know are returned for reporting.
func loadConfig(path string, explicit bool) (Config, []string, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return defaultConfig(), nil, nil
	}
	if err != nil {
		return Config{}, nil, fmt.Errorf("config %s: %w", path, err)
	}
	var unknown []string
	for _, k := range md.Undecoded() {
		unknown = append(unknown, k.String())
	}
	if cfg.Summary.Slices < 1 {
		return Config{}, nil, fmt.Errorf("config %s: summary.slices must be >= 1, got %d", path, cfg.Summary.Slices)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	return cfg, unknown, nil
}

// configPath returns the default config file location using the XDG
// standard (~/.config/ancsummary/config.toml).
func configPath() (string, error) {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// cacheDir returns the cache directory using the XDG standard (~/.cache/ancsummary/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// parseList splits a comma-separated flag value, dropping empty entries.
func parseList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
