package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ancsummary/pkg/pipeline"
	"github.com/matzehuels/ancsummary/pkg/render"
)

// renderFlags holds flags for the render command.
type renderFlags struct {
	output   string
	formats  string
	stateKey string
	detailed bool
	lengths  bool
}

// renderCommand creates the render command for drawing annotated trees.
func (c *CLI) renderCommand() *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render <annotated-tree>",
		Short: "Draw an annotated summary tree",
		Long: `Draw an annotated summary tree produced by "states" or "charmap".

Nodes are colored by their most probable state and sized by its posterior
probability. The tree may be Newick or NEXUS, optionally gzip-compressed.`,
		Example: `  # Render a states summary to SVG
  ancsummary render ase.nex

  # Color by the end state of a cladogenetic summary, as PDF and PNG
  ancsummary render ase.nex --state-key end_state_1 -f pdf,png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file or base path (- for stdout)")
	cmd.Flags().StringVarP(&flags.formats, "format", "f", pipeline.FormatSVG, "output formats: svg, png, pdf, dot, newick, nexus, json")
	cmd.Flags().StringVar(&flags.stateKey, "state-key", "", "annotation used to color nodes")
	cmd.Flags().BoolVar(&flags.detailed, "detailed", false, "include every annotation in node tooltips")
	cmd.Flags().BoolVar(&flags.lengths, "branch-lengths", false, "label edges with branch lengths")
	cmd.RegisterFlagCompletionFunc("format", completeFormats(pipeline.KindStates))

	return cmd
}

func (c *CLI) runRender(ctx context.Context, input string, flags renderFlags) error {
	formats := parseList(flags.formats)
	if len(formats) == 0 {
		return fmt.Errorf("no output format given")
	}
	if err := pipeline.ValidateFormats(pipeline.KindStates, formats); err != nil {
		return err
	}

	data, err := readInput(input)
	if err != nil {
		return err
	}
	t, err := pipeline.ParseTree(data)
	if err != nil {
		return err
	}

	sw := newStopwatch(c.Logger)
	res := &pipeline.Result{Kind: pipeline.KindStates, Tree: t}
	artifacts, err := pipeline.Render(ctx, res, formats, render.Options{
		StateKey:      flags.stateKey,
		Detailed:      flags.detailed,
		BranchLengths: flags.lengths,
	})
	if err != nil {
		return err
	}
	sw.done(fmt.Sprintf("Rendered %d nodes", t.NumNodes()))

	return writeArtifacts(artifactWriteParams{
		artifacts: artifacts,
		formats:   formats,
		input:     input,
		output:    flags.output,
	})
}
