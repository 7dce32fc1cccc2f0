package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ancsummary/pkg/archive"
)

// runsCommand creates the command that browses archived runs.
func (c *CLI) runsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived summary runs",
		Long: `List archived summary runs, newest first.

Runs are archived when [archive] is configured with the "memory" or "mongo"
backend. Use "runs show <id>" to print the details of one run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withArchive(cmd.Context(), func(ctx context.Context, a archive.Archive) error {
				runs, err := a.List(ctx, limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					printInfo("No archived runs")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), runsTable(runs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")

	cmd.AddCommand(c.runsShowCommand())
	return cmd
}

func (c *CLI) runsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withArchive(cmd.Context(), func(ctx context.Context, a archive.Archive) error {
				run, err := a.Get(ctx, args[0])
				if errors.Is(err, archive.ErrNotFound) {
					return fmt.Errorf("run %s not found", args[0])
				}
				if err != nil {
					return err
				}
				printRun(run)
				return nil
			})
		},
	}
}

// withArchive opens the configured archive for the duration of fn.
func (c *CLI) withArchive(ctx context.Context, fn func(context.Context, archive.Archive) error) error {
	if b := c.Config.Archive.Backend; b == "" || b == archive.BackendNone {
		printWarning("No archive configured; set [archive] backend in %s", c.configFileLabel())
		return nil
	}
	a, err := archive.Open(ctx, c.Config.Archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}

func (c *CLI) configFileLabel() string {
	if c.configFile != "" {
		return c.configFile
	}
	if p, err := configPath(); err == nil {
		return p
	}
	return "the config file"
}

func runsTable(runs []archive.Run) string {
	t := newTable("ID", "Kind", "Created", "Samples", "Burn-in", "Nodes")
	for _, r := range runs {
		t.Row(
			r.ID,
			r.Kind,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(r.Samples),
			strconv.Itoa(r.Burnin),
			strconv.Itoa(r.Nodes),
		)
	}
	return t.String()
}

func printRun(r *archive.Run) {
	printKeyValue("ID", r.ID)
	printKeyValue("Kind", r.Kind)
	printKeyValue("Created", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	printKeyValue("Samples", strconv.Itoa(r.Samples))
	printKeyValue("Burn-in", strconv.Itoa(r.Burnin))
	printKeyValue("Nodes", strconv.Itoa(r.Nodes))
	printKeyValue("Input", r.InputHash)
	if r.Version != "" {
		printKeyValue("Version", r.Version)
	}
	keys := make([]string, 0, len(r.Options))
	for k := range r.Options {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		printKeyValue(k, r.Options[k])
	}
	if r.Newick != "" {
		fmt.Println()
		fmt.Println(r.Newick)
	}
}
