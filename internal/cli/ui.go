package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/ancsummary/pkg/ancestral"
	"github.com/matzehuels/ancsummary/pkg/pipeline"
	"github.com/matzehuels/ancsummary/pkg/tree"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)
	styleHeader   = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleNA       = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented detail line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// printStats prints run statistics on a single line.
func printStats(res *pipeline.Result) {
	fmt.Println(statsLine(res))
}

func statsLine(res *pipeline.Result) string {
	parts := []string{
		fmt.Sprintf("%d nodes", res.Stats.Nodes),
		fmt.Sprintf("%d samples", res.Stats.Samples-res.Stats.Burnin),
	}
	if res.Stats.Burnin > 0 {
		parts = append(parts, fmt.Sprintf("burn-in %d", res.Stats.Burnin))
	}
	if len(res.Transitions) > 0 {
		parts = append(parts, fmt.Sprintf("%d transitions", len(res.Transitions)))
	}

	status, statusStyle := iconFresh, styleComputed
	if res.CacheHit {
		status, statusStyle = iconCached, styleCached
	}

	line := "  "
	for i, part := range parts {
		if i > 0 {
			line += StyleDim.Render(" · ")
		}
		line += StyleDim.Render(part)
	}
	return line + StyleDim.Render(" · ") + statusStyle.Render(status)
}

// =============================================================================
// Summary Tables
// =============================================================================

// printTable prints a per-node or per-kind table for res. Cached results
// carry no statistics and print nothing.
func printTable(w io.Writer, res *pipeline.Result) {
	var s string
	switch {
	case len(res.Nodes) > 0:
		s = nodeTable(res.Tree, res.Nodes)
	case len(res.Branches) > 0:
		s = branchTable(res.Tree, res.Branches)
	case len(res.Transitions) > 0:
		s = transitionTable(res.Transitions)
	default:
		return
	}
	fmt.Fprintln(w, s)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// nodeTable lists the MAP states (or mean and interval) of every node.
func nodeTable(t *tree.Tree, nodes []ancestral.NodeSummary) string {
	mean := len(nodes) > 0 && nodes[0].Interval != nil
	headers := []string{"Node", "Taxon", "Posterior", "State 1", "pp", "State 2", "pp", "Other"}
	if mean {
		headers = []string{"Node", "Taxon", "Posterior", "Mean", "Lower 95%", "Upper 95%"}
	}
	tbl := newTable(headers...)
	for _, ns := range nodes {
		row := []string{tree.Label(ns.Index), nodeName(t, ns.Index), formatProb(ns.Posterior)}
		if mean {
			if ns.Interval == nil {
				row = append(row, styleNA.Render(ancestral.NA), "", "")
			} else {
				row = append(row, tree.FormatFloat(ns.Interval.Mean),
					tree.FormatFloat(ns.Interval.Lower), tree.FormatFloat(ns.Interval.Upper))
			}
		} else {
			top := ns.End.Top
			row = append(row, top[0].State, formatProb(top[0].Prob),
				top[1].State, formatProb(top[1].Prob), formatProb(ns.End.Other))
		}
		tbl.Row(row...)
	}
	return tbl.Render()
}

// branchTable lists the MAP history of every branch.
func branchTable(t *tree.Tree, branches []ancestral.BranchSummary) string {
	tbl := newTable("Node", "Taxon", "Posterior", "End", "Changes", "History")
	for _, b := range branches {
		tbl.Row(tree.Label(b.Index), nodeName(t, b.Index), formatProb(b.Posterior),
			b.EndState, strconv.Itoa(strings.Count(b.History, ":")), truncate(b.History, 40))
	}
	return tbl.Render()
}

// transitionTable counts transitions by kind and state pair.
func transitionTable(events []ancestral.TransitionEvent) string {
	type pair struct {
		kind     ancestral.TransitionKind
		from, to string
	}
	counts := map[pair]int{}
	var order []pair
	for _, e := range events {
		if e.Kind == ancestral.NoChange {
			continue
		}
		p := pair{e.Kind, e.StartState, e.EndState}
		if counts[p] == 0 {
			order = append(order, p)
		}
		counts[p]++
	}
	tbl := newTable("Type", "From", "To", "Count")
	for _, p := range order {
		tbl.Row(string(p.kind), p.from, p.to, strconv.Itoa(counts[p]))
	}
	return tbl.Render()
}

func nodeName(t *tree.Tree, i int) string {
	if t == nil {
		return ""
	}
	return t.Node(i).Name
}

func formatProb(p float64) string {
	return strconv.FormatFloat(p, 'f', 3, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
