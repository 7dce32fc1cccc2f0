package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/ancsummary/pkg/ancestral"
	"github.com/matzehuels/ancsummary/pkg/pipeline"
)

// summaryFlags holds the flags shared by the summary commands.
type summaryFlags struct {
	treeLog  string
	output   string
	formats  string
	noCache  bool
	table    bool
	progress bool
}

// statesCommand creates the "states" command.
func (c *CLI) statesCommand() *cobra.Command {
	var reconstruction, statistic string
	return c.summaryCommand(pipeline.KindStates, "Summarize sampled ancestral states onto a summary tree",
		`Summarize sampled ancestral states onto a summary tree.

Every node of the summary tree receives its posterior probability and the
three most probable states with their posterior probabilities (MAP), or the
posterior mean with a 95% credible interval (--statistic mean).

With --trees, states sampled on varying trees are matched to summary nodes
by clade; otherwise states are assumed to be sampled on the summary tree.`,
		func(fs *pflag.FlagSet, opts *pipeline.Options) {
			fs.StringVar(&reconstruction, "reconstruction", "", "marginal (default), conditional or joint")
			fs.StringVar(&statistic, "statistic", "", "MAP (default) or mean")
			fs.BoolVar(&opts.Cladogenetic, "cladogenetic", false, "summarize start and end states separately")
			fs.IntVar(&opts.Site, "site", 0, "site of multi-site samples (1-based, 0 = whole sample)")
		},
		func(fs *pflag.FlagSet, opts *pipeline.Options) {
			opts.Reconstruction = ancestral.Reconstruction(reconstruction)
			opts.Statistic = ancestral.Statistic(statistic)
			if !fs.Changed("reconstruction") {
				opts.Reconstruction = c.Config.Summary.Reconstruction
			}
			if !fs.Changed("statistic") {
				opts.Statistic = c.Config.Summary.Statistic
			}
			if !fs.Changed("site") {
				opts.Site = c.Config.Summary.Site
			}
		})
}

// charmapCommand creates the "charmap" command.
func (c *CLI) charmapCommand() *cobra.Command {
	var sliceCount int
	return c.summaryCommand(pipeline.KindCharMap, "Summarize stochastic character maps as MAP branch histories",
		`Summarize stochastic character maps as MAP branch histories.

The root age is cut into --slices windows of equal width. Along every branch
the most common sampled state is kept per window, and the resulting history
is written as a SIMMAP string annotation.`,
		func(fs *pflag.FlagSet, opts *pipeline.Options) {
			fs.IntVar(&sliceCount, "slices", ancestral.DefaultSlices, "number of time slices")
			fs.BoolVar(&opts.Conditional, "conditional", false, "condition each window on the preceding MAP state")
		},
		func(fs *pflag.FlagSet, opts *pipeline.Options) {
			if !fs.Changed("slices") {
				sliceCount = c.Config.Summary.Slices
			}
			opts.Slices = &sliceCount
		})
}

// transitionsCommand creates the "transitions" command.
func (c *CLI) transitionsCommand() *cobra.Command {
	return c.summaryCommand(pipeline.KindTransitions, "Export sampled state transitions as a table",
		`Export every state change in the sampled character histories as a
tab-delimited table: one row per anagenetic change along a branch, one per
cladogenetic change at a node, and one no_change row per unchanged branch.
The state log must contain an Iteration column.`,
		nil, nil)
}

// summaryCommand builds a command for kind with the shared flags. addFlags
// registers kind-specific flags; apply copies their values (or config
// defaults) into the options before the run.
func (c *CLI) summaryCommand(kind, short, long string,
	addFlags func(*pflag.FlagSet, *pipeline.Options),
	apply func(*pflag.FlagSet, *pipeline.Options),
) *cobra.Command {
	var flags summaryFlags
	opts := pipeline.Options{Kind: kind}

	cmd := &cobra.Command{
		Use:   kind + " <summary-tree> <state-log>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			opts.SummaryTreeFile = args[0]
			opts.StateLogFile = args[1]
			opts.TreeLogFile = flags.treeLog
			opts.Formats = parseList(flags.formats)
			c.applySummaryConfig(fs, &opts)
			if apply != nil {
				apply(fs, &opts)
			}
			return c.runSummary(cmd.Context(), opts, flags)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.treeLog, "trees", "", "tree trace the states were sampled on")
	fs.StringVar(&opts.TreeColumn, "tree-column", "", "tree trace column (default: last column)")
	fs.IntVar(&opts.Burnin, "burnin", 0, "number of leading samples to discard")
	fs.Float64Var(&opts.BurninFraction, "burnin-fraction", 0, "fraction of leading samples to discard")
	fs.StringVarP(&flags.output, "output", "o", "", "output file (single format) or base path (multiple)")
	fs.StringVarP(&flags.formats, "format", "f", "", "output format(s), comma-separated")
	fs.StringVar(&opts.StateKey, "state-key", "", "annotation used to color figures")
	fs.BoolVar(&opts.Detailed, "detailed", false, "add all annotations to figure tooltips")
	fs.BoolVar(&opts.BranchLengths, "branch-lengths", false, "label figure edges with branch lengths")
	fs.BoolVar(&flags.noCache, "no-cache", false, "disable caching")
	fs.BoolVar(&opts.Refresh, "refresh", false, "recompute even if a cached result exists")
	fs.BoolVar(&flags.table, "table", false, "print a summary table")
	fs.BoolVar(&flags.progress, "progress", true, "show a progress bar on terminals")
	if addFlags != nil {
		addFlags(fs, &opts)
	}
	_ = cmd.RegisterFlagCompletionFunc("format", completeFormats(kind))

	return cmd
}

// applySummaryConfig fills options the user did not set from the config file.
func (c *CLI) applySummaryConfig(fs *pflag.FlagSet, opts *pipeline.Options) {
	cfg := c.Config.Summary
	if !fs.Changed("burnin") && !fs.Changed("burnin-fraction") {
		opts.Burnin = cfg.Burnin
		opts.BurninFraction = cfg.BurninFraction
	}
	if !fs.Changed("tree-column") {
		opts.TreeColumn = cfg.TreeColumn
	}
}

func (c *CLI) runSummary(ctx context.Context, opts pipeline.Options, flags summaryFlags) error {
	opts.Logger = c.Logger
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close(context.WithoutCancel(ctx))

	sw := newStopwatch(c.Logger)
	var result *pipeline.Result
	title := fmt.Sprintf("Summarizing %s", opts.Kind)
	err = runWithProgress(ctx, title, flags.progress, func(ctx context.Context, progress ancestral.ProgressFunc) error {
		opts.Progress = progress
		var err error
		result, err = runner.Execute(ctx, opts)
		return err
	})
	if err != nil {
		return err
	}
	sw.done(fmt.Sprintf("Summarized %d nodes from %d samples", result.Stats.Nodes, result.Stats.Samples-result.Stats.Burnin))

	printStats(result)
	if flags.table {
		printTable(os.Stdout, result)
	}
	return writeArtifacts(artifactWriteParams{
		artifacts: result.Artifacts,
		formats:   opts.Formats,
		input:     opts.StateLogFile,
		output:    flags.output,
	})
}
