// Package pkg provides the libraries behind ancsummary, which summarizes
// posterior samples of ancestral states and stochastic character maps onto
// a summary tree.
//
// # Overview
//
// The pkg directory is organized by stage:
//
//  1. [tree] - rooted binary trees, Newick/NEXUS I/O and node annotations
//  2. [simmap] - SIMMAP character history strings
//  3. [trace] - sampler logs, burn-in and per-node sample lookup
//  4. [ancestral] - state, character map and transition summaries
//  5. [render] - Graphviz drawings of annotated trees
//  6. [pipeline] - orchestration (load → summarize → render)
//  7. [cache], [archive] - result caching and run records
//
// # Architecture
//
// The typical data flow:
//
//	summary tree + state log (+ tree log)
//	         ↓
//	    [trace] package (parse, burn-in, clade lookup)
//	         ↓
//	    [ancestral] package (count states, select MAP or mean)
//	         ↓
//	    [tree] package (annotated Newick/NEXUS)
//	         ↓
//	    [render] package (DOT, SVG, PNG, PDF)
//
// # Quick Start
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Kind:            pipeline.KindStates,
//	    SummaryTreeFile: "map.tree",
//	    StateLogFile:    "states.log",
//	    BurninFraction:  0.25,
//	    Formats:         []string{"nexus", "svg"},
//	})
//
// The [pipeline] package is what the CLI and the HTTP server call; the
// lower packages can be used directly for custom workflows.
package pkg
