package simmap

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	apperr "github.com/matzehuels/ancsummary/pkg/errors"
)

var (
	// ErrMissingBraces is returned for strings not wrapped in '{' and '}'.
	ErrMissingBraces = errors.New("simmap: missing braces")

	// ErrEmptyHistory is returned when a string contains no events.
	ErrEmptyHistory = errors.New("simmap: empty history")

	// ErrMalformedPair is returned for a pair that is not "state,duration".
	ErrMalformedPair = errors.New("simmap: malformed state,duration pair")
)

// Event is one constant-state segment of a branch.
type Event struct {
	State    string
	Duration float64
}

// BranchHistory is the ordered list of events along one branch, root end
// first. The last event's state is the branch's end state.
type BranchHistory []Event

// StartState returns the state at the root end of the branch.
func (h BranchHistory) StartState() string {
	if len(h) == 0 {
		return ""
	}
	return h[0].State
}

// EndState returns the state at the tip end of the branch.
func (h BranchHistory) EndState() string {
	if len(h) == 0 {
		return ""
	}
	return h[len(h)-1].State
}

// Duration returns the summed duration of all events.
func (h BranchHistory) Duration() float64 {
	total := 0.0
	for _, e := range h {
		total += e.Duration
	}
	return total
}

// Changes returns the number of state changes along the branch.
func (h BranchHistory) Changes() int {
	n := 0
	for i := 1; i < len(h); i++ {
		if h[i].State != h[i-1].State {
			n++
		}
	}
	return n
}

// StateAt returns the state of the first event whose cumulative duration
// reaches t. Times past the end of the history return the end state.
func (h BranchHistory) StateAt(t float64) string {
	elapsed := 0.0
	for _, e := range h {
		elapsed += e.Duration
		if elapsed >= t {
			return e.State
		}
	}
	return h.EndState()
}

// Decode parses a SIMMAP string into root-to-tip order. Any structural
// problem is reported as a DECODE_FAILED error.
func Decode(s string) (BranchHistory, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, apperr.Wrap(apperr.ErrCodeDecode, ErrMissingBraces, "decode %q", s)
	}
	body := s[1 : len(s)-1]
	if strings.TrimSpace(body) == "" {
		return nil, apperr.Wrap(apperr.ErrCodeDecode, ErrEmptyHistory, "decode %q", s)
	}

	pairs := strings.Split(body, ":")
	h := make(BranchHistory, 0, len(pairs))
	for k := len(pairs) - 1; k >= 0; k-- {
		e, err := parsePair(pairs[k])
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeDecode, err, "decode %q", s)
		}
		h = append(h, e)
	}
	return h, nil
}

func parsePair(pair string) (Event, error) {
	i := strings.LastIndexByte(pair, ',')
	if i < 0 {
		return Event{}, fmt.Errorf("%w: %q", ErrMalformedPair, pair)
	}
	state := strings.TrimSpace(pair[:i])
	if state == "" {
		return Event{}, fmt.Errorf("%w: %q has no state", ErrMalformedPair, pair)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(pair[i+1:]), 64)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %q: %v", ErrMalformedPair, pair, err)
	}
	return Event{State: state, Duration: d}, nil
}

// Encode formats a root-to-tip history as a SIMMAP string.
func Encode(h BranchHistory) string {
	var b Builder
	for _, e := range h {
		b.Prepend(e.State, e.Duration)
	}
	return b.String()
}

// Builder accumulates a SIMMAP string one forward-time segment at a time.
// Each Prepend adds a pair on the tip side of the wire string.
//
// The zero value is an empty builder.
type Builder struct {
	pairs []string // root first; reversed on output
}

// Prepend adds a segment that follows every segment added so far.
func (b *Builder) Prepend(state string, duration float64) {
	b.pairs = append(b.pairs, state+","+FormatDuration(duration))
}

// Len returns the number of segments.
func (b *Builder) Len() int { return len(b.pairs) }

// String returns the braced SIMMAP string, tip segment first.
func (b *Builder) String() string {
	out := slices.Clone(b.pairs)
	slices.Reverse(out)
	return "{" + strings.Join(out, ":") + "}"
}

// FormatDuration formats a duration in plain decimal notation with the
// fewest digits that round-trip.
func FormatDuration(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}
