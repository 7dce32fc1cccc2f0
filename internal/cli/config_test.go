package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/ancsummary/pkg/ancestral"
	"github.com/matzehuels/ancsummary/pkg/archive"
	"github.com/matzehuels/ancsummary/pkg/cache"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[summary]
burnin_fraction = 0.25
reconstruction = "joint"
slices = 100

[cache]
backend = "redis"
redis_url = "redis://localhost:6379/0"

[archive]
backend = "mongo"
uri = "mongodb://localhost:27017"
`)
	cfg, unknown, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if len(unknown) != 0 {
		t.Errorf("unknown keys = %v", unknown)
	}
	if cfg.Summary.BurninFraction != 0.25 || cfg.Summary.Reconstruction != ancestral.Joint || cfg.Summary.Slices != 100 {
		t.Errorf("summary = %+v", cfg.Summary)
	}
	if cfg.Cache.Backend != cache.BackendRedis || cfg.Cache.RedisURL == "" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Archive.Backend != archive.BackendMongo {
		t.Errorf("archive = %+v", cfg.Archive)
	}
	if cfg.Server.Addr != defaultAddr {
		t.Errorf("server addr = %q, want default", cfg.Server.Addr)
	}
}

func TestLoadConfigUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[summary]
burnin = 10
colour = "blue"

[plots]
width = 3
`)
	cfg, unknown, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Summary.Burnin != 10 {
		t.Errorf("burnin = %d, want 10", cfg.Summary.Burnin)
	}
	want := map[string]bool{"summary.colour": true, "plots": true, "plots.width": true}
	for _, k := range unknown {
		if !want[k] {
			t.Errorf("unexpected unknown key %q", k)
		}
	}
	if len(unknown) == 0 {
		t.Error("expected unknown keys to be reported")
	}
}

func TestLoadConfigMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")

	cfg, _, err := loadConfig(missing, false)
	if err != nil {
		t.Fatalf("default location: %v", err)
	}
	if cfg.Summary.Slices != ancestral.DefaultSlices {
		t.Errorf("slices = %d, want default", cfg.Summary.Slices)
	}

	if _, _, err := loadConfig(missing, true); err == nil {
		t.Error("explicit missing config should fail")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := writeConfig(t, "[summary\nslices = ")
	if _, _, err := loadConfig(path, true); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoadConfigSlices(t *testing.T) {
	path := writeConfig(t, "[summary]\nslices = 0\n")
	if _, _, err := loadConfig(path, true); err == nil {
		t.Error("slices = 0 should be rejected")
	}
}

func TestParseList(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"svg", 1},
		{"svg, png,,pdf ", 3},
	}
	for _, tt := range tests {
		if got := parseList(tt.in); len(got) != tt.want {
			t.Errorf("parseList(%q) = %v, want %d entries", tt.in, got, tt.want)
		}
	}
}
