// Package trace provides read-only access to posterior samples: per-node
// state traces and an optional trace of sampled trees.
//
// # Traces
//
// A [StateTrace] is a labelled column of a sampler log: one string per
// iteration. Labels follow the sampler's conventions:
//
//   - "7": the state of node index 6 (anagenetic models)
//   - "end_7", "start_7": the states at the end (tip-ward) and start
//     (root-ward) of node 6's branch (cladogenetic models)
//   - "Iteration": the sampler's generation counter
//
// Values are opaque strings. A value may encode several linked sites
// separated by commas, or a whole SIMMAP character history.
//
// # Burn-in
//
// A [Store] owns the traces and the burn-in. [Store.SetBurnin] and
// [Store.SetBurninFraction] reject values that would leave no samples, and
// [Store.Samples] yields the post-burn-in iteration indices in trace order.
//
// # Reading logs
//
// [ReadLog] parses tab-delimited logs with a header row and [ReadTreeTrace]
// reads the matching tree trace. [Decompress] inflates gzip input detected
// by its magic bytes, so compressed files and uploads are handled alike.
package trace
