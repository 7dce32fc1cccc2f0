package trace

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	apperr "github.com/matzehuels/ancsummary/pkg/errors"
	"github.com/matzehuels/ancsummary/pkg/tree"
)

// IterationLabel is the label of the sampler's generation counter trace.
const IterationLabel = "Iteration"

// Prefixes used by cladogenetic logs.
const (
	EndPrefix   = "end_"
	StartPrefix = "start_"
)

// ErrSiteOutOfRange is returned by [SiteValue] when a sample has fewer sites
// than requested.
var ErrSiteOutOfRange = errors.New("site out of range")

// StateTrace is one labelled column of samples, one value per iteration.
type StateTrace struct {
	Label  string
	Values []string
}

// Len returns the number of samples, burn-in included.
func (t *StateTrace) Len() int { return len(t.Values) }

// At returns the sample of iteration i.
func (t *StateTrace) At(i int) string { return t.Values[i] }

// Store gives read-only, burn-in aware access to state traces and an
// optional tree trace. Traces and trees are never modified after NewStore.
type Store struct {
	traces  []*StateTrace
	byLabel map[string]*StateTrace
	trees   []*tree.Tree
	n       int
	burnin  int
}

// NewStore validates and wraps traces and an optional tree trace (nil or
// empty when states were sampled on a single fixed tree).
//
// All traces must have the same length, and a tree trace must have one tree
// per sample. Labels must be unique.
func NewStore(traces []*StateTrace, trees []*tree.Tree) (*Store, error) {
	if len(traces) == 0 {
		return nil, apperr.New(apperr.ErrCodeNoSamples, "no state traces")
	}
	s := &Store{
		traces:  traces,
		byLabel: make(map[string]*StateTrace, len(traces)),
		trees:   trees,
		n:       traces[0].Len(),
	}
	for _, t := range traces {
		if err := apperr.ValidateLabel(t.Label); err != nil {
			return nil, err
		}
		if _, dup := s.byLabel[t.Label]; dup {
			return nil, apperr.New(apperr.ErrCodeInvalidInput, "duplicate trace label %q", t.Label)
		}
		if t.Len() != s.n {
			return nil, apperr.New(apperr.ErrCodeInvalidInput,
				"trace %q has %d samples, expected %d", t.Label, t.Len(), s.n)
		}
		s.byLabel[t.Label] = t
	}
	if s.n == 0 {
		return nil, apperr.New(apperr.ErrCodeNoSamples, "traces contain no samples")
	}
	if len(trees) > 0 && len(trees) != s.n {
		return nil, apperr.New(apperr.ErrCodeInvalidInput,
			"tree trace has %d trees but state traces have %d samples", len(trees), s.n)
	}
	return s, nil
}

// Trace returns the trace with the given label.
func (s *Store) Trace(label string) (*StateTrace, bool) {
	t, ok := s.byLabel[label]
	return t, ok
}

// Traces returns all traces in log order.
func (s *Store) Traces() []*StateTrace { return s.traces }

// Labels returns all trace labels in log order.
func (s *Store) Labels() []string {
	labels := make([]string, len(s.traces))
	for i, t := range s.traces {
		labels[i] = t.Label
	}
	return labels
}

// NumSamples returns the number of samples, burn-in included.
func (s *Store) NumSamples() int { return s.n }

// Burnin returns the number of discarded leading samples.
func (s *Store) Burnin() int { return s.burnin }

// NumPostBurnin returns the number of samples after burn-in.
func (s *Store) NumPostBurnin() int { return s.n - s.burnin }

// SetBurnin discards the first b samples. b must leave at least one sample:
// a value equal to or above the sample count is a configuration error.
func (s *Store) SetBurnin(b int) error {
	if b < 0 || b >= s.n {
		return apperr.New(apperr.ErrCodeInvalidBurnin,
			"burn-in %d must be in [0, %d) for %d samples", b, s.n, s.n)
	}
	s.burnin = b
	return nil
}

// SetBurninFraction discards the leading fraction f of samples, 0 <= f < 1.
func (s *Store) SetBurninFraction(f float64) error {
	if f < 0 || f >= 1 {
		return apperr.New(apperr.ErrCodeInvalidBurnin, "burn-in fraction %v must be in [0, 1)", f)
	}
	return s.SetBurnin(int(f * float64(s.n)))
}

// Samples yields post-burn-in iteration indices in trace order.
func (s *Store) Samples() iter.Seq[int] {
	return func(yield func(int) bool) {
		for j := s.burnin; j < s.n; j++ {
			if !yield(j) {
				return
			}
		}
	}
}

// HasTrees reports whether a tree trace is present.
func (s *Store) HasTrees() bool { return len(s.trees) > 0 }

// Tree returns the sampled tree of iteration j, or nil without a tree trace.
func (s *Store) Tree(j int) *tree.Tree {
	if len(s.trees) == 0 {
		return nil
	}
	return s.trees[j]
}

// Trees returns the tree trace, which may be empty.
func (s *Store) Trees() []*tree.Tree { return s.trees }

// SiteValue extracts the site-th (1-based) comma-separated field of a
// sample. Site 0 returns the sample unchanged.
func SiteValue(sample string, site int) (string, error) {
	if site <= 0 {
		return sample, nil
	}
	fields := strings.Split(sample, ",")
	if site > len(fields) {
		return "", fmt.Errorf("%w: site %d of %d in %q", ErrSiteOutOfRange, site, len(fields), sample)
	}
	return strings.TrimSpace(fields[site-1]), nil
}
