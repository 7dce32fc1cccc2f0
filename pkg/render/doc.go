// Package render draws annotated summary trees.
//
// [ToDOT] converts a tree into Graphviz DOT source laid out left to right,
// root first. Each node is filled with a color derived from the state held
// in one annotation key (by default the MAP state), and internal nodes show
// that state with its posterior probability. [RenderSVG] lays the DOT out
// in-process with Graphviz:
//
//	dot := render.ToDOT(t, render.Options{})
//	svg, err := render.RenderSVG(ctx, dot)
//
// [ToPDF] and [ToPNG] convert SVG with the external rsvg-convert tool (from
// librsvg) when it is installed.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for SVG layout.
package render
