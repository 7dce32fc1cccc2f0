// Package tree provides the rooted binary tree used both as the fixed
// summary tree and as the per-iteration sampled trees of a tree trace.
//
// # Overview
//
// A [Tree] is an arena of [Node] values addressed by stable integer indices.
// Parent and child relationships are stored as indices into the same arena,
// so a tree can be traversed top-down (pre-order) while annotations are
// written by index without any pointer aliasing.
//
// Index convention: tips come first, numbered in the order they appear in the
// Newick string (0..n-1), followed by the internal nodes in post-order. The
// root is therefore always the last node. Sample logs label their columns
// with index+1 ("7", "end_7", "start_7"), which is why [Tree.Label] exists.
//
// # Clades
//
// Two trees are compared through clades: the set of tips below a node,
// represented as a [Bitset] over a shared taxon order. [Tree.CladeKeys]
// returns a comparable key per node for a given taxon order, which is all
// the clade matcher in package ancestral needs.
//
// # Annotations
//
// Summaries are attached as [Annotations]: named parallel arrays, numeric or
// text, whose length always equals [Tree.NumNodes]. A summarization builds a
// fresh Annotations value and swaps it onto a [Tree.Clone] with
// [Tree.SetAnnotations]; no annotation survives from a previous call.
//
// # Serialization
//
// [Parse] and [ReadAll] read Newick and NEXUS input (including FigTree-style
// [&key=value] comments). [Tree.Newick] and [WriteNEXUS] write annotated
// trees back out, and [MarshalJSON] exports a node-oriented JSON document.
//
// # Concurrency
//
// A Tree is not safe for concurrent mutation. Sampled trees are never mutated
// after parsing and may be shared freely between goroutines.
package tree
