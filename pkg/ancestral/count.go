package ancestral

import (
	"errors"
	"fmt"
)

// ErrNoCountedSamples is returned when a statistic is normalized over zero
// counted samples.
var ErrNoCountedSamples = errors.New("no counted samples")

// StateCount maps state labels to accumulated weight. Labels keep their
// first-insertion order, which decides ties in [Select].
type StateCount struct {
	labels []string
	weight map[string]float64
}

// NewStateCount returns an empty count.
func NewStateCount() *StateCount {
	return &StateCount{weight: make(map[string]float64)}
}

// Add increases the weight of label by w.
func (c *StateCount) Add(label string, w float64) {
	if _, ok := c.weight[label]; !ok {
		c.labels = append(c.labels, label)
	}
	c.weight[label] += w
}

// Normalize divides every weight by n, the number of counted samples.
func (c *StateCount) Normalize(n int) error {
	if n == 0 {
		return ErrNoCountedSamples
	}
	if n < 0 {
		return fmt.Errorf("normalize by %d samples", n)
	}
	for _, l := range c.labels {
		c.weight[l] /= float64(n)
	}
	return nil
}

// EndStateCounts tallies the sampled states at a node.
type EndStateCounts struct {
	Counts  *StateCount
	Samples int
}

func newEndStateCounts() *EndStateCounts {
	return &EndStateCounts{Counts: NewStateCount()}
}

// Add counts one sample.
func (e *EndStateCounts) Add(state string) {
	e.Counts.Add(state, 1)
	e.Samples++
}

// Normalize converts the tally to probabilities.
func (e *EndStateCounts) Normalize() error { return e.Counts.Normalize(e.Samples) }

// StartStateCounts tallies the sampled states at the start of the branch
// leading to a node, right after the speciation at its parent. It is kept
// apart from [EndStateCounts] because conditioning discards different
// samples for each.
type StartStateCounts struct {
	Counts  *StateCount
	Samples int
}

func newStartStateCounts() *StartStateCounts {
	return &StartStateCounts{Counts: NewStateCount()}
}

// Add counts one sample.
func (s *StartStateCounts) Add(state string) {
	s.Counts.Add(state, 1)
	s.Samples++
}

// Normalize converts the tally to probabilities.
func (s *StartStateCounts) Normalize() error { return s.Counts.Normalize(s.Samples) }
