package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/ancsummary/pkg/ancestral"
	"github.com/matzehuels/ancsummary/pkg/archive"
	"github.com/matzehuels/ancsummary/pkg/buildinfo"
	"github.com/matzehuels/ancsummary/pkg/cache"
	"github.com/matzehuels/ancsummary/pkg/observability"
	"github.com/matzehuels/ancsummary/pkg/tree"
)

// Runner encapsulates run execution with caching and archiving.
// Both CLI and API use it to avoid duplicating that logic.
//
// The Runner holds no per-run state; multiple goroutines can safely use the
// same Runner with different options.
type Runner struct {
	Cache   cache.Cache
	Keyer   cache.Keyer
	Archive archive.Archive
	Logger  *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// The archive defaults to archive.Null; set Runner.Archive to keep runs.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:   c,
		Keyer:   keyer,
		Archive: archive.Null{},
		Logger:  logger,
	}
}

// Execute runs load → summarize → render with caching. Artifacts are cached
// under a key derived from the input bytes and the options that shape the
// summary, so a repeated run with identical inputs skips summarization.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	hooks := observability.Pipeline()

	result := &Result{
		RunID:     uuid.NewString(),
		Kind:      opts.Kind,
		Artifacts: make(map[string][]byte),
	}

	// Stage 1: Load
	loadStart := time.Now()
	hooks.OnLoadStart(ctx, opts.Kind)
	in, err := Load(ctx, opts)
	result.Stats.LoadTime = time.Since(loadStart)
	samples := 0
	if in != nil {
		samples = in.Store.NumPostBurnin()
	}
	hooks.OnLoadComplete(ctx, opts.Kind, samples, result.Stats.LoadTime, err)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.InputHash = in.Hash
	result.CacheKey = r.Keyer.SummaryKey(in.Hash, opts.SummaryKeyOpts())
	result.Stats.Samples = in.Store.NumSamples()
	result.Stats.Burnin = in.Store.Burnin()
	result.Stats.Nodes = in.Summary.NumNodes()

	r.Logger.Info("loaded samples",
		"samples", result.Stats.Samples,
		"burnin", result.Stats.Burnin,
		"nodes", result.Stats.Nodes,
		"duration", result.Stats.LoadTime)

	if !opts.Refresh {
		if artifacts, ok := r.cachedArtifacts(ctx, result.CacheKey, opts); ok {
			result.Artifacts = artifacts
			result.CacheHit = true
			result.Tree = treeFromArtifacts(artifacts)
			r.Logger.Info("using cached summary", "key", result.CacheKey)
			return result, nil
		}
	}

	// Stage 2: Summarize
	sumStart := time.Now()
	hooks.OnSummarizeStart(ctx, opts.Kind, result.Stats.Nodes)
	err = r.summarize(ctx, in, opts, result)
	result.Stats.SummarizeTime = time.Since(sumStart)
	hooks.OnSummarizeComplete(ctx, opts.Kind, result.Stats.Nodes, result.Stats.SummarizeTime, err)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	r.Logger.Info("summarized",
		"kind", opts.Kind,
		"duration", result.Stats.SummarizeTime)

	// Stage 3: Render
	renderStart := time.Now()
	hooks.OnRenderStart(ctx, opts.Formats)
	artifacts, err := Render(ctx, result, opts.Formats, opts.RenderOptions())
	result.Stats.RenderTime = time.Since(renderStart)
	hooks.OnRenderComplete(ctx, opts.Formats, result.Stats.RenderTime, err)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	r.storeArtifacts(ctx, result.CacheKey, opts, artifacts)
	r.record(ctx, opts, result)
	return result, nil
}

func (r *Runner) summarize(ctx context.Context, in *Inputs, opts Options, result *Result) error {
	s, err := ancestral.NewSummarizer(in.Summary, in.Store)
	if err != nil {
		return err
	}
	s.Logger = opts.Logger
	s.Progress = opts.Progress

	switch opts.Kind {
	case KindStates:
		res, err := s.AncestralStates(ctx, opts.StateOptions())
		if err != nil {
			return err
		}
		result.Tree, result.Nodes = res.Tree, res.Nodes
	case KindCharMap:
		res, err := s.CharacterMap(ctx, opts.CharacterMapOptions())
		if err != nil {
			return err
		}
		result.Tree, result.Branches = res.Tree, res.Branches
	case KindTransitions:
		events, err := s.Transitions(ctx)
		if err != nil {
			return err
		}
		result.Transitions = events
	}
	return nil
}

// cachedArtifacts returns every requested artifact from the cache, or false
// if any one is missing.
func (r *Runner) cachedArtifacts(ctx context.Context, key string, opts Options) (map[string][]byte, bool) {
	hooks := observability.Cache()
	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		k := r.Keyer.ArtifactKey(key, opts.artifactFormat(format))
		data, hit, err := r.Cache.Get(ctx, k)
		if err != nil {
			r.Logger.Warn("cache read failed", "key", k, "error", err)
		}
		if err != nil || !hit {
			hooks.OnCacheMiss(ctx, format)
			return nil, false
		}
		hooks.OnCacheHit(ctx, format)
		artifacts[format] = data
	}
	return artifacts, true
}

func (r *Runner) storeArtifacts(ctx context.Context, key string, opts Options, artifacts map[string][]byte) {
	hooks := observability.Cache()
	for format, data := range artifacts {
		k := r.Keyer.ArtifactKey(key, opts.artifactFormat(format))
		if err := r.Cache.Set(ctx, k, data, cache.TTLArtifact); err != nil {
			r.Logger.Warn("cache write failed", "key", k, "error", err)
			continue
		}
		hooks.OnCacheSet(ctx, format, len(data))
	}
}

// record archives the run. Failures are logged, not returned: the summary
// itself succeeded.
func (r *Runner) record(ctx context.Context, opts Options, result *Result) {
	if r.Archive == nil {
		return
	}
	run := archive.Run{
		ID:        result.RunID,
		Kind:      result.Kind,
		InputHash: result.InputHash,
		CacheKey:  result.CacheKey,
		Options:   opts.Describe(),
		Samples:   result.Stats.Samples,
		Burnin:    result.Stats.Burnin,
		Nodes:     result.Stats.Nodes,
		Version:   buildinfo.Version,
		CreatedAt: time.Now().UTC(),
	}
	if result.Tree != nil {
		run.Newick = result.Tree.Newick()
	}
	if err := r.Archive.Save(ctx, run); err != nil {
		r.Logger.Warn("archive run failed", "run", run.ID, "error", err)
	}
}

// Close releases the cache and archive connections.
func (r *Runner) Close(ctx context.Context) error {
	var errs []error
	if r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	if r.Archive != nil {
		errs = append(errs, r.Archive.Close(ctx))
	}
	return errors.Join(errs...)
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// treeFromArtifacts recovers the annotated tree from a cached Newick or
// NEXUS artifact.
func treeFromArtifacts(artifacts map[string][]byte) *tree.Tree {
	for _, f := range []string{FormatNewick, FormatNEXUS} {
		if data, ok := artifacts[f]; ok {
			if t, err := ParseTree(data); err == nil {
				return t
			}
		}
	}
	return nil
}
