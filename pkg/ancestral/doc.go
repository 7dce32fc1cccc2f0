// Package ancestral summarizes posterior samples of ancestral states onto a
// summary tree.
//
// A sampler logs, for every iteration, the state of each node of the tree it
// was working on. This package projects those samples onto a fixed summary
// tree and reduces them to per-node statistics that are attached to a copy of
// the tree as annotations.
//
// # Matching samples to nodes
//
// When states were sampled on a single fixed tree, node i of the summary tree
// is node i of every sample. With a tree trace, the sampled topology changes
// between iterations and a summary node is located in each sampled tree by its
// clade (the set of tips below it); see [CladeMatcher]. Samples whose tree
// lacks the clade are skipped for that node.
//
// Traces are resolved by label with [TraceLookup]: "<index+1>" or
// "end_<index+1>" for the state at a node, "start_<index+1>" for the state at
// the start of the branch leading to it.
//
// # Summaries
//
// [Summarizer.AncestralStates] computes, per node, the clade posterior and
// either the three most probable states (MAP) or the mean with an
// equal-tailed 95% interval. Reconstructions:
//
//   - marginal: every matching sample counts
//   - conditional: a sample counts only if the parent was in the parent's
//     MAP state in that iteration
//   - joint: a flat per-node tally of the sampled states
//
// With Cladogenetic set, end states and branch start states are tallied and
// selected independently. At the root the start state equals the end state.
//
// [Summarizer.CharacterMap] slices every branch into equal-width windows and
// builds a MAP character history per branch from SIMMAP samples.
//
// [Summarizer.Transitions] lists every state change recorded in the sampled
// character histories; [WriteTransitions] writes them as a tab-delimited table.
//
// # Errors
//
// Configuration problems (unknown or incompatible modes, slice counts below
// one, missing traces that a summary requires) are returned before any node is
// visited. Malformed samples are fatal. A node that ends up with no counted
// samples is reported as NA with a warning rather than failing the run.
package ancestral
