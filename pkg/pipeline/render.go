package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/ancsummary/pkg/ancestral"
	"github.com/matzehuels/ancsummary/pkg/render"
	"github.com/matzehuels/ancsummary/pkg/tree"
)

// pngScale doubles PNG resolution relative to the SVG's point size.
const pngScale = 2.0

// document is the JSON artifact: the annotated tree plus the per-node,
// per-branch or per-event statistics behind it.
type document struct {
	Kind        string                      `json:"kind"`
	Tree        json.RawMessage             `json:"tree,omitempty"`
	Nodes       []ancestral.NodeSummary     `json:"nodes,omitempty"`
	Branches    []ancestral.BranchSummary   `json:"branches,omitempty"`
	Transitions []ancestral.TransitionEvent `json:"transitions,omitempty"`
}

// Render generates the requested artifacts from a summarized result.
// Tree formats require res.Tree; tsv requires a transitions result.
func Render(ctx context.Context, res *Result, formats []string, ro render.Options) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(formats))

	var dot string
	var svg []byte
	needSVG := func() error {
		if svg != nil {
			return nil
		}
		if dot == "" {
			dot = render.ToDOT(res.Tree, ro)
		}
		var err error
		svg, err = render.RenderSVG(ctx, dot)
		return err
	}

	for _, format := range formats {
		if TreeFormats[format] && format != FormatJSON && res.Tree == nil {
			return nil, fmt.Errorf("render %s: result has no tree", format)
		}

		var data []byte
		var err error
		switch format {
		case FormatNewick:
			data = []byte(res.Tree.Newick() + "\n")
		case FormatNEXUS:
			var buf bytes.Buffer
			err = tree.WriteNEXUS(&buf, res.Tree, "")
			data = buf.Bytes()
		case FormatJSON:
			data, err = marshalDocument(res)
		case FormatDOT:
			if dot == "" {
				dot = render.ToDOT(res.Tree, ro)
			}
			data = []byte(dot)
		case FormatSVG:
			err = needSVG()
			data = svg
		case FormatPDF:
			if err = needSVG(); err == nil {
				data, err = render.ToPDF(ctx, svg)
			}
		case FormatPNG:
			if err = needSVG(); err == nil {
				data, err = render.ToPNG(ctx, svg, pngScale)
			}
		case FormatTSV:
			var buf bytes.Buffer
			err = ancestral.WriteTransitions(&buf, res.Transitions)
			data = buf.Bytes()
		default:
			return nil, fmt.Errorf("unsupported format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

func marshalDocument(res *Result) ([]byte, error) {
	doc := document{
		Kind:        res.Kind,
		Nodes:       res.Nodes,
		Branches:    res.Branches,
		Transitions: res.Transitions,
	}
	if res.Tree != nil {
		raw, err := tree.MarshalJSON(res.Tree)
		if err != nil {
			return nil, err
		}
		doc.Tree = raw
	}
	return json.MarshalIndent(doc, "", "  ")
}
