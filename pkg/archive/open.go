package archive

import (
	"context"
	"fmt"
)

// Backend names accepted by [Open].
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// Config selects and configures an archive backend.
type Config struct {
	Backend    string `toml:"backend"`
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Open returns the archive described by cfg. An empty backend means none.
func Open(ctx context.Context, cfg Config) (Archive, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return Null{}, nil
	case BackendMemory:
		return NewMemoryArchive(), nil
	case BackendMongo:
		if cfg.URI == "" {
			return nil, fmt.Errorf("archive: mongo backend requires a uri")
		}
		return NewMongoArchive(ctx, cfg.URI, cfg.Database, cfg.Collection)
	default:
		return nil, fmt.Errorf("archive: unknown backend %q", cfg.Backend)
	}
}
