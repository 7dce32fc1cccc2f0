package tree

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"
)

// Bitset is a fixed-size set of tip positions.
type Bitset []uint64

// NewBitset returns an empty bitset able to hold n positions.
func NewBitset(n int) Bitset {
	return make(Bitset, (n+63)/64)
}

// Set adds position i.
func (b Bitset) Set(i int) { b[i/64] |= 1 << (uint(i) % 64) }

// Has reports whether position i is set.
func (b Bitset) Has(i int) bool { return b[i/64]&(1<<(uint(i)%64)) != 0 }

// Union adds every position of o to b. Both sets must have the same size.
func (b Bitset) Union(o Bitset) {
	for i := range b {
		b[i] |= o[i]
	}
}

// Count returns the number of set positions.
func (b Bitset) Count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

// Key returns a comparable representation of the set.
func (b Bitset) Key() string {
	var sb strings.Builder
	sb.Grow(len(b) * 8)
	var buf [8]byte
	for _, w := range b {
		binary.LittleEndian.PutUint64(buf[:], w)
		sb.Write(buf[:])
	}
	return sb.String()
}

// Clades returns, for every node, the set of tips below it expressed in
// positions of order (taxon name -> position). order must cover every tip.
func (t *Tree) Clades(order map[string]int) ([]Bitset, error) {
	size := len(order)
	sets := make([]Bitset, len(t.nodes))
	pre := t.PreOrder()
	for k := len(pre) - 1; k >= 0; k-- {
		i := pre[k]
		n := t.nodes[i]
		set := NewBitset(size)
		if n.IsTip() {
			pos, ok := order[n.Name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownTaxon, n.Name)
			}
			set.Set(pos)
		} else {
			for _, c := range n.Children {
				set.Union(sets[c])
			}
		}
		sets[i] = set
	}
	return sets, nil
}

// CladeKeys returns a comparable clade key per node for the given taxon
// order. Trees over the same taxa produce equal keys for equal clades.
func (t *Tree) CladeKeys(order map[string]int) ([]string, error) {
	if len(order) != len(t.taxa) {
		return nil, fmt.Errorf("%w: tree has %d taxa, order has %d", ErrUnknownTaxon, len(t.taxa), len(order))
	}
	sets, err := t.Clades(order)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(sets))
	for i, s := range sets {
		keys[i] = s.Key()
	}
	return keys, nil
}

// TaxonOrder returns the tree's own taxon -> tip index map, suitable as the
// shared order when matching other trees against this one.
func (t *Tree) TaxonOrder() map[string]int {
	order := make(map[string]int, len(t.taxa))
	for k, v := range t.taxa {
		order[k] = v
	}
	return order
}
