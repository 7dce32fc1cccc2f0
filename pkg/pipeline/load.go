package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/matzehuels/ancsummary/pkg/cache"
	apperr "github.com/matzehuels/ancsummary/pkg/errors"
	"github.com/matzehuels/ancsummary/pkg/trace"
	"github.com/matzehuels/ancsummary/pkg/tree"
)

// Inputs are the parsed inputs of a run, with burn-in applied.
type Inputs struct {
	Summary *tree.Tree
	Store   *trace.Store

	// Hash identifies the raw input bytes; equal inputs hash equally no
	// matter whether they came from a file or inline.
	Hash string
}

// Load reads and parses the inputs named by opts and applies burn-in.
func Load(ctx context.Context, opts Options) (*Inputs, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	summaryData, err := readInput(opts.SummaryTree, opts.SummaryTreeFile)
	if err != nil {
		return nil, err
	}
	stateData, err := readInput(opts.StateLog, opts.StateLogFile)
	if err != nil {
		return nil, err
	}
	var treeData []byte
	if opts.TreeLog != "" || opts.TreeLogFile != "" {
		if treeData, err = readInput(opts.TreeLog, opts.TreeLogFile); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary, err := ParseTree(summaryData)
	if err != nil {
		return nil, err
	}
	r, err := trace.Decompress(stateData)
	if err != nil {
		return nil, err
	}
	traces, err := trace.ReadLog(r)
	if err != nil {
		return nil, fmt.Errorf("state log: %w", err)
	}
	var trees []*tree.Tree
	if treeData != nil {
		r, err := trace.Decompress(treeData)
		if err != nil {
			return nil, err
		}
		if trees, err = trace.ReadTreeTrace(r, opts.TreeColumn); err != nil {
			return nil, fmt.Errorf("tree log: %w", err)
		}
	}

	store, err := trace.NewStore(traces, trees)
	if err != nil {
		return nil, err
	}
	if opts.BurninFraction > 0 {
		err = store.SetBurninFraction(opts.BurninFraction)
	} else {
		err = store.SetBurnin(opts.Burnin)
	}
	if err != nil {
		return nil, err
	}

	opts.Logger.Debug("loaded inputs",
		"nodes", summary.NumNodes(),
		"traces", len(traces),
		"samples", store.NumSamples(),
		"burnin", store.Burnin(),
		"tree_trace", store.HasTrees())

	return &Inputs{
		Summary: summary,
		Store:   store,
		Hash:    cache.HashAll(summaryData, stateData, treeData),
	}, nil
}

// ParseTree parses an annotated or plain summary tree in Newick or NEXUS
// form, compressed or not. The first tree is used.
func ParseTree(data []byte) (*tree.Tree, error) {
	r, err := trace.Decompress(data)
	if err != nil {
		return nil, err
	}
	trees, err := tree.ReadAll(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidTree, err, "summary tree")
	}
	if len(trees) == 0 {
		return nil, apperr.New(apperr.ErrCodeInvalidTree, "summary tree input holds no tree")
	}
	return trees[0], nil
}

func readInput(inline, path string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.Wrap(apperr.ErrCodeFileNotFound, err, "open %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
