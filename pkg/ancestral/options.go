package ancestral

import (
	apperr "github.com/matzehuels/ancsummary/pkg/errors"
)

// Reconstruction selects how samples are counted per node.
type Reconstruction string

// Reconstruction modes.
const (
	Marginal    Reconstruction = "marginal"
	Conditional Reconstruction = "conditional"
	Joint       Reconstruction = "joint"
)

// Statistic selects how counted samples are reduced.
type Statistic string

// Statistics.
const (
	MAP  Statistic = "MAP"
	Mean Statistic = "mean"
)

// Options configures [Summarizer.AncestralStates].
type Options struct {
	Reconstruction Reconstruction `json:"reconstruction,omitempty" toml:"reconstruction"`
	Statistic      Statistic      `json:"statistic,omitempty" toml:"statistic"`
	Cladogenetic   bool           `json:"cladogenetic,omitempty" toml:"cladogenetic"`

	// Site selects one comma-separated field of multi-site samples (1-based).
	// Zero uses the whole sample.
	Site int `json:"site,omitempty" toml:"site"`
}

// ValidateAndSetDefaults fills in defaults and rejects invalid combinations.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Reconstruction == "" {
		o.Reconstruction = Marginal
	}
	if o.Statistic == "" {
		o.Statistic = MAP
	}
	switch o.Reconstruction {
	case Marginal, Conditional, Joint:
	default:
		return apperr.New(apperr.ErrCodeInvalidMode, "unknown reconstruction %q", o.Reconstruction)
	}
	switch o.Statistic {
	case MAP:
	case Mean:
		if o.Reconstruction != Marginal {
			return apperr.New(apperr.ErrCodeInvalidMode,
				"mean and credible intervals are only defined for marginal reconstruction, not %s", o.Reconstruction)
		}
		if o.Cladogenetic {
			return apperr.New(apperr.ErrCodeInvalidMode, "mean cannot be combined with cladogenetic summaries")
		}
	default:
		return apperr.New(apperr.ErrCodeInvalidMode, "unknown statistic %q", o.Statistic)
	}
	if o.Site < 0 {
		return apperr.New(apperr.ErrCodeInvalidConfig, "site must be >= 0, got %d", o.Site)
	}
	return nil
}

// CharacterMapOptions configures [Summarizer.CharacterMap].
type CharacterMapOptions struct {
	// Slices is the number of equal-width windows spanning the root age.
	Slices int `json:"slices" toml:"slices"`

	// Conditional restricts each window to histories consistent with the
	// MAP state chosen for the preceding window.
	Conditional bool `json:"conditional,omitempty" toml:"conditional"`
}

// DefaultSlices is the default number of character map windows.
const DefaultSlices = 500

// Validate rejects slice counts below one.
func (o CharacterMapOptions) Validate() error {
	if o.Slices < 1 {
		return apperr.New(apperr.ErrCodeInvalidConfig, "number of time slices must be >= 1, got %d", o.Slices)
	}
	return nil
}
