// Package cache stores finished summaries so that repeated runs over the
// same inputs and options are served without re-sweeping the samples.
//
// Three backends implement [Cache]:
//   - [FileCache]: JSON entries under a directory, used by the CLI
//   - [RedisCache]: a shared Redis instance, used by the HTTP server
//   - [NullCache]: stores nothing, used when caching is disabled
//
// Keys are produced by a [Keyer] from a content hash of the inputs and the
// options that affect the result, so a changed trace or burn-in never hits
// a stale entry.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the stored value and whether it was found. Expired or
	// unreadable entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Expiry of cached entries.
const (
	// TTLSummary applies to per-node summaries and transition tables.
	TTLSummary = 7 * 24 * time.Hour

	// TTLArtifact applies to rendered outputs (Newick, NEXUS, SVG, ...).
	TTLArtifact = 7 * 24 * time.Hour
)

// Keyer builds cache keys.
type Keyer interface {
	// SummaryKey identifies a summarization of inputHash under opts.
	SummaryKey(inputHash string, opts SummaryKeyOpts) string

	// ArtifactKey identifies one output format of a summary.
	ArtifactKey(summaryKey, format string) string
}

// SummaryKeyOpts lists every option that changes a summary's result.
type SummaryKeyOpts struct {
	Kind           string  `json:"kind"`
	Reconstruction string  `json:"reconstruction,omitempty"`
	Statistic      string  `json:"statistic,omitempty"`
	Cladogenetic   bool    `json:"cladogenetic,omitempty"`
	Site           int     `json:"site,omitempty"`
	Slices         int     `json:"slices,omitempty"`
	Conditional    bool    `json:"conditional,omitempty"`
	Burnin         int     `json:"burnin"`
	BurninFraction float64 `json:"burnin_fraction,omitempty"`
	TreeColumn     string  `json:"tree_column,omitempty"`
}

// DefaultKeyer produces "summary:<sha256>" and "artifact:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// SummaryKey hashes the input hash together with opts.
func (DefaultKeyer) SummaryKey(inputHash string, opts SummaryKeyOpts) string {
	return hashKey("summary", inputHash, opts)
}

// ArtifactKey hashes the summary key together with the format.
func (DefaultKeyer) ArtifactKey(summaryKey, format string) string {
	return hashKey("artifact", summaryKey, format)
}

var _ Keyer = DefaultKeyer{}
