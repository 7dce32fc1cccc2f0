package tree

import (
	"math"
	"slices"
	"strconv"
)

// Annotations holds named per-node values in arrays parallel to the nodes of
// a tree. Every array has exactly Len() entries; entries that were never set
// are reported as absent by [Annotations.Number] and [Annotations.Text].
//
// A key is either numeric or text, fixed by the first Set call.
type Annotations struct {
	size    int
	keys    []string
	numeric map[string][]float64
	text    map[string][]string
}

// NewAnnotations returns an empty annotation set for a tree of size nodes.
func NewAnnotations(size int) *Annotations {
	return &Annotations{
		size:    size,
		numeric: make(map[string][]float64),
		text:    make(map[string][]string),
	}
}

// Len returns the array length (the number of tree nodes).
func (a *Annotations) Len() int { return a.size }

// Keys returns the annotation keys in the order they were first set.
func (a *Annotations) Keys() []string { return slices.Clone(a.keys) }

// Has reports whether key has been set on any node.
func (a *Annotations) Has(key string) bool {
	_, n := a.numeric[key]
	_, s := a.text[key]
	return n || s
}

// SetNumber sets a numeric value for node i.
func (a *Annotations) SetNumber(key string, i int, v float64) {
	arr, ok := a.numeric[key]
	if !ok {
		arr = make([]float64, a.size)
		for k := range arr {
			arr[k] = math.NaN()
		}
		a.numeric[key] = arr
		a.keys = append(a.keys, key)
	}
	arr[i] = v
}

// SetText sets a text value for node i.
func (a *Annotations) SetText(key string, i int, v string) {
	arr, ok := a.text[key]
	if !ok {
		arr = make([]string, a.size)
		a.text[key] = arr
		a.keys = append(a.keys, key)
	}
	arr[i] = v
}

// Number returns the numeric value of key at node i.
func (a *Annotations) Number(key string, i int) (float64, bool) {
	arr, ok := a.numeric[key]
	if !ok || math.IsNaN(arr[i]) {
		return 0, false
	}
	return arr[i], true
}

// Text returns the text value of key at node i.
func (a *Annotations) Text(key string, i int) (string, bool) {
	arr, ok := a.text[key]
	if !ok || arr[i] == "" {
		return "", false
	}
	return arr[i], true
}

// Format returns the value of key at node i as a string, and whether it is set.
func (a *Annotations) Format(key string, i int) (string, bool) {
	if v, ok := a.Number(key, i); ok {
		return FormatFloat(v), true
	}
	return a.Text(key, i)
}

// FormatFloat formats v with the shortest representation that round-trips.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
