// Package pipeline runs a complete summarization: load inputs, apply
// burn-in, summarize, render artifacts, cache and archive the result.
//
// The CLI and the HTTP API both go through [Runner.Execute], so caching,
// defaults and validation behave the same regardless of entry point.
//
// # Kinds
//
// A run computes one of three summaries:
//
//  1. states: ancestral states (MAP or mean) for every node
//  2. charmap: the MAP character history of every branch
//  3. transitions: a table of state changes in every sampled history
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Kind:            pipeline.KindStates,
//	    SummaryTreeFile: "map.tree",
//	    StateLogFile:    "states.log",
//	    BurninFraction:  0.25,
//	    Formats:         []string{"nexus", "svg"},
//	})
//	nexus := result.Artifacts["nexus"]
package pipeline

import (
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ancsummary/pkg/ancestral"
	"github.com/matzehuels/ancsummary/pkg/cache"
	apperr "github.com/matzehuels/ancsummary/pkg/errors"
	"github.com/matzehuels/ancsummary/pkg/render"
	"github.com/matzehuels/ancsummary/pkg/tree"
)

// Summary kinds.
const (
	KindStates      = "states"
	KindCharMap     = "charmap"
	KindTransitions = "transitions"
)

// Format constants for output artifacts.
const (
	FormatNewick = "newick"
	FormatNEXUS  = "nexus"
	FormatJSON   = "json"
	FormatDOT    = "dot"
	FormatSVG    = "svg"
	FormatPNG    = "png"
	FormatPDF    = "pdf"
	FormatTSV    = "tsv"
)

// TreeFormats are the formats available for summaries that annotate a tree.
var TreeFormats = map[string]bool{
	FormatNewick: true,
	FormatNEXUS:  true,
	FormatJSON:   true,
	FormatDOT:    true,
	FormatSVG:    true,
	FormatPNG:    true,
	FormatPDF:    true,
}

// TableFormats are the formats available for the transition table.
var TableFormats = map[string]bool{
	FormatTSV:  true,
	FormatJSON: true,
}

// DefaultFormats returns the formats produced when none are requested.
func DefaultFormats(kind string) []string {
	if kind == KindTransitions {
		return []string{FormatTSV}
	}
	return []string{FormatNEXUS}
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one run.
// This struct supports JSON serialization for API requests; there inputs
// arrive inline, while the CLI passes file paths.
type Options struct {
	Kind string `json:"kind"`

	// Inline inputs. When set they take precedence over the file paths.
	SummaryTree string `json:"summary_tree,omitempty"`
	StateLog    string `json:"state_log,omitempty"`
	TreeLog     string `json:"tree_log,omitempty"`

	// Input files. Compressed (gzip) files are detected by content.
	SummaryTreeFile string `json:"-"`
	StateLogFile    string `json:"-"`
	TreeLogFile     string `json:"-"`

	TreeColumn     string  `json:"tree_column,omitempty"`
	Burnin         int     `json:"burnin,omitempty"`
	BurninFraction float64 `json:"burnin_fraction,omitempty"`

	// Ancestral state options
	Reconstruction ancestral.Reconstruction `json:"reconstruction,omitempty"`
	Statistic      ancestral.Statistic      `json:"statistic,omitempty"`
	Cladogenetic   bool                     `json:"cladogenetic,omitempty"`
	Site           int                      `json:"site,omitempty"`

	// Character map options. A nil Slices selects ancestral.DefaultSlices;
	// an explicit value below one is rejected.
	Slices      *int `json:"slices,omitempty"`
	Conditional bool `json:"conditional,omitempty"`

	// Render options
	Formats       []string `json:"formats,omitempty"`
	StateKey      string   `json:"state_key,omitempty"`
	Detailed      bool     `json:"detailed,omitempty"`
	BranchLengths bool     `json:"branch_lengths,omitempty"`
	Refresh       bool     `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger   *log.Logger            `json:"-"`
	Progress ancestral.ProgressFunc `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a run. Nodes, Branches and Transitions are
// only filled for the matching kind, and are empty on a cache hit.
type Result struct {
	RunID     string
	Kind      string
	InputHash string
	CacheKey  string

	Tree        *tree.Tree
	Nodes       []ancestral.NodeSummary
	Branches    []ancestral.BranchSummary
	Transitions []ancestral.TransitionEvent

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	Stats    Stats
	CacheHit bool
}

// Stats contains run statistics.
type Stats struct {
	Samples       int
	Burnin        int
	Nodes         int
	LoadTime      time.Duration
	SummarizeTime time.Duration
	RenderTime    time.Duration
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults. Every
// configuration error is reported here, before any input is read.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Kind == "" {
		o.Kind = KindStates
	}
	if o.SummaryTree == "" && o.SummaryTreeFile == "" {
		return apperr.New(apperr.ErrCodeInvalidInput, "a summary tree is required")
	}
	if o.StateLog == "" && o.StateLogFile == "" {
		return apperr.New(apperr.ErrCodeInvalidInput, "a state log is required")
	}
	if err := o.validateBurnin(); err != nil {
		return err
	}

	switch o.Kind {
	case KindStates:
		so := o.StateOptions()
		if err := so.ValidateAndSetDefaults(); err != nil {
			return err
		}
		o.Reconstruction, o.Statistic = so.Reconstruction, so.Statistic
	case KindCharMap:
		if o.Slices == nil {
			o.Slices = ptr(ancestral.DefaultSlices)
		}
		if err := o.CharacterMapOptions().Validate(); err != nil {
			return err
		}
	case KindTransitions:
	default:
		return apperr.New(apperr.ErrCodeInvalidConfig,
			"invalid kind: %q (must be one of: states, charmap, transitions)", o.Kind)
	}

	if len(o.Formats) == 0 {
		o.Formats = DefaultFormats(o.Kind)
	}
	if err := ValidateFormats(o.Kind, o.Formats); err != nil {
		return err
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

func (o *Options) validateBurnin() error {
	if o.Burnin < 0 {
		return apperr.New(apperr.ErrCodeInvalidBurnin, "burn-in must be >= 0, got %d", o.Burnin)
	}
	if o.BurninFraction < 0 || o.BurninFraction >= 1 {
		return apperr.New(apperr.ErrCodeInvalidBurnin, "burn-in fraction must be in [0, 1), got %g", o.BurninFraction)
	}
	if o.Burnin > 0 && o.BurninFraction > 0 {
		return apperr.New(apperr.ErrCodeInvalidConfig, "burn-in count and fraction are mutually exclusive")
	}
	return nil
}

// ValidateFormats checks that every format is available for kind.
func ValidateFormats(kind string, formats []string) error {
	valid := TreeFormats
	if kind == KindTransitions {
		valid = TableFormats
	}
	for _, f := range formats {
		if !valid[f] {
			return apperr.New(apperr.ErrCodeInvalidFormat, "invalid format for %s: %q", kind, f)
		}
	}
	return nil
}

// StateOptions returns the options for [ancestral.Summarizer.AncestralStates].
func (o *Options) StateOptions() ancestral.Options {
	return ancestral.Options{
		Reconstruction: o.Reconstruction,
		Statistic:      o.Statistic,
		Cladogenetic:   o.Cladogenetic,
		Site:           o.Site,
	}
}

// CharacterMapOptions returns the options for [ancestral.Summarizer.CharacterMap].
func (o *Options) CharacterMapOptions() ancestral.CharacterMapOptions {
	return ancestral.CharacterMapOptions{Slices: o.slices(), Conditional: o.Conditional}
}

// slices returns the configured slice count, or the default when unset.
func (o *Options) slices() int {
	if o.Slices == nil {
		return ancestral.DefaultSlices
	}
	return *o.Slices
}

func ptr[T any](v T) *T { return &v }

// RenderOptions returns the options for DOT generation.
func (o *Options) RenderOptions() render.Options {
	return render.Options{StateKey: o.StateKey, Detailed: o.Detailed, BranchLengths: o.BranchLengths}
}

// SummaryKeyOpts returns the cache key options. Only fields that affect the
// computed summary for the run's kind are included.
func (o *Options) SummaryKeyOpts() cache.SummaryKeyOpts {
	k := cache.SummaryKeyOpts{
		Kind:           o.Kind,
		Burnin:         o.Burnin,
		BurninFraction: o.BurninFraction,
		TreeColumn:     o.TreeColumn,
	}
	switch o.Kind {
	case KindStates:
		k.Reconstruction = string(o.Reconstruction)
		k.Statistic = string(o.Statistic)
		k.Cladogenetic = o.Cladogenetic
		k.Site = o.Site
	case KindCharMap:
		k.Slices = o.slices()
		k.Conditional = o.Conditional
	}
	return k
}

// artifactFormat extends format with the render options for artifacts whose
// bytes depend on them.
func (o *Options) artifactFormat(format string) string {
	switch format {
	case FormatDOT, FormatSVG, FormatPNG, FormatPDF:
		if o.StateKey != "" || o.Detailed || o.BranchLengths {
			return format + "|" + o.StateKey + "|" + strconv.FormatBool(o.Detailed) +
				"|" + strconv.FormatBool(o.BranchLengths)
		}
	}
	return format
}

// Describe returns the options that shaped the summary as strings, for
// archived run records.
func (o *Options) Describe() map[string]string {
	m := map[string]string{}
	if o.TreeColumn != "" {
		m["tree_column"] = o.TreeColumn
	}
	switch o.Kind {
	case KindStates:
		m["reconstruction"] = string(o.Reconstruction)
		m["statistic"] = string(o.Statistic)
		m["cladogenetic"] = strconv.FormatBool(o.Cladogenetic)
		m["site"] = strconv.Itoa(o.Site)
	case KindCharMap:
		m["slices"] = strconv.Itoa(o.slices())
		m["conditional"] = strconv.FormatBool(o.Conditional)
	}
	return m
}
