package ancestral

import (
	"math"
	"slices"
)

// NA marks a state slot with no supported state.
const NA = "NA"

// ProbabilityFloor is the precision cutoff below which a top state is
// reported as NA with probability zero.
const ProbabilityFloor = 1e-4

// StateProb is a state label with its posterior probability.
type StateProb struct {
	State string  `json:"state"`
	Prob  float64 `json:"prob"`
}

// Selection is the three most probable states of a node and the mass left
// to all other states.
type Selection struct {
	Top   [3]StateProb `json:"top"`
	Other float64      `json:"other"`
}

// MAPState returns the most probable state.
func (s Selection) MAPState() string { return s.Top[0].State }

// emptySelection is reported for nodes without counted samples.
func emptySelection() Selection {
	var s Selection
	for k := range s.Top {
		s.Top[k] = StateProb{State: NA}
	}
	s.Other = 1
	return s
}

// Select picks the three highest probabilities from a normalized count in a
// single scan. Comparisons are strict, so the first-inserted label wins a
// tie. Probabilities at or below [ProbabilityFloor] are reported as NA.
func Select(c *StateCount) Selection {
	s := emptySelection()
	for _, l := range c.labels {
		p := c.weight[l]
		switch {
		case p > s.Top[0].Prob:
			s.Top[2] = s.Top[1]
			s.Top[1] = s.Top[0]
			s.Top[0] = StateProb{State: l, Prob: p}
		case p > s.Top[1].Prob:
			s.Top[2] = s.Top[1]
			s.Top[1] = StateProb{State: l, Prob: p}
		case p > s.Top[2].Prob:
			s.Top[2] = StateProb{State: l, Prob: p}
		}
	}
	sum := 0.0
	for k := range s.Top {
		if s.Top[k].Prob <= ProbabilityFloor {
			s.Top[k] = StateProb{State: NA}
		}
		sum += s.Top[k].Prob
	}
	s.Other = math.Max(0, 1-sum)
	return s
}

// SelectMerged tallies raw sampled states by label, normalizes by the number
// of samples and selects the top three.
func SelectMerged(samples []string) (Selection, error) {
	c := NewStateCount()
	for _, v := range samples {
		c.Add(v, 1)
	}
	if err := c.Normalize(len(samples)); err != nil {
		return emptySelection(), err
	}
	return Select(c), nil
}

// Interval is a posterior mean with an equal-tailed 95% credible interval.
type Interval struct {
	Mean  float64 `json:"mean"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// MeanInterval returns the mean of values and the sorted values at
// floor(0.025n) and ceil(0.975n), the upper index clamped to n-1.
func MeanInterval(values []float64) (Interval, error) {
	n := len(values)
	if n == 0 {
		return Interval{}, ErrNoCountedSamples
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	lo := int(math.Floor(0.025 * float64(n)))
	hi := min(int(math.Ceil(0.975*float64(n))), n-1)
	return Interval{Mean: sum / float64(n), Lower: sorted[lo], Upper: sorted[hi]}, nil
}
