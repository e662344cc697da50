package refactor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kiransahoo/ddd-refactor/internal/agent"
	"github.com/kiransahoo/ddd-refactor/internal/cache"
	"github.com/kiransahoo/ddd-refactor/internal/chunker"
	"github.com/kiransahoo/ddd-refactor/internal/logging"
	"github.com/kiransahoo/ddd-refactor/internal/merge"
	"github.com/kiransahoo/ddd-refactor/internal/rag"
)

// UnitOutcome is the terminal record for one source unit. Exactly one of
// the terminal shapes holds: clean (no violation), written output (violation
// with OutputPath), Err, or Abandoned at the shutdown deadline.
type UnitOutcome struct {
	Unit        string
	Violation   bool
	CacheHit    bool
	MergeResult merge.Result
	OutputPath  string
	Err         error
	Abandoned   bool
}

// Options configures a Runner. Zero fields fall back to the documented
// defaults; only the validation loop is mandatory.
type Options struct {
	Splitter      *chunker.Splitter
	Context       *rag.Service
	Loop          *agent.Loop
	Cache         cache.Cache
	Merger        *merge.Merger
	BasePrompt    string
	MaxParallel   int
	ChunkParallel int
	OutputDir     string
	// ShutdownTimeout bounds RunAll wall-clock time; unfinished units are
	// reported as abandoned when it elapses.
	ShutdownTimeout time.Duration
}

// Runner processes source units through the full pipeline with a fixed
// worker pool. Units fail independently; a run always terminates.
type Runner struct {
	splitter      *chunker.Splitter
	rag           *rag.Service
	loop          *agent.Loop
	cache         cache.Cache
	merger        *merge.Merger
	basePrompt    string
	maxParallel   int
	chunkParallel int
	outputDir     string
	shutdown      time.Duration
	log           *zap.Logger
}

// NewRunner wires the pipeline stages together.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Loop == nil {
		return nil, fmt.Errorf("runner requires a validation loop")
	}
	if opts.Splitter == nil {
		s, err := chunker.New(300, 0)
		if err != nil {
			return nil, err
		}
		opts.Splitter = s
	}
	if opts.Context == nil {
		opts.Context = rag.New(nil, nil, rag.DefaultConfig())
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNoop()
	}
	if opts.Merger == nil {
		opts.Merger = merge.New(merge.Strategy{})
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 4
	}
	if opts.ChunkParallel <= 0 {
		opts.ChunkParallel = 2
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "refactored"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Minute
	}

	return &Runner{
		splitter:      opts.Splitter,
		rag:           opts.Context,
		loop:          opts.Loop,
		cache:         opts.Cache,
		merger:        opts.Merger,
		basePrompt:    opts.BasePrompt,
		maxParallel:   opts.MaxParallel,
		chunkParallel: opts.ChunkParallel,
		outputDir:     opts.OutputDir,
		shutdown:      opts.ShutdownTimeout,
		log:           logging.Get("refactor"),
	}, nil
}

// RunAll processes every unit through a pool of maxParallel workers and
// returns one outcome per unit, index-aligned with the input. It returns
// when all units finish or the shutdown deadline elapses, whichever is
// first; units still running at the deadline are reported as abandoned.
func (r *Runner) RunAll(ctx context.Context, units []SourceUnit) []UnitOutcome {
	if len(units) == 0 {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, r.shutdown)
	defer cancel()

	r.log.Info("starting run",
		zap.Int("units", len(units)),
		zap.Int("max_parallel", r.maxParallel),
		zap.Duration("shutdown_timeout", r.shutdown))

	// Each worker owns outcomes[i] and publishes completion through done[i];
	// the deadline path below reads an outcome only after its flag is set.
	outcomes := make([]UnitOutcome, len(units))
	done := make([]atomic.Bool, len(units))
	slots := make(chan struct{}, r.maxParallel)
	var wg sync.WaitGroup

	for i := range units {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case slots <- struct{}{}:
				defer func() { <-slots }()
			case <-runCtx.Done():
				return
			}
			r.processUnit(runCtx, units[i], &outcomes[i])
			done[i].Store(true)
		}(i)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-runCtx.Done():
		r.log.Warn("shutdown deadline reached, abandoning unfinished units")
	}

	results := make([]UnitOutcome, len(units))
	for i := range units {
		if done[i].Load() {
			results[i] = outcomes[i]
		} else {
			results[i] = UnitOutcome{Unit: units[i].Rel, Abandoned: true}
		}
	}
	return results
}

// processUnit runs one unit to its terminal outcome. Panics are contained
// here so one unit cannot take down the pool.
func (r *Runner) processUnit(ctx context.Context, unit SourceUnit, out *UnitOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("unit processing panicked",
				zap.String("unit", unit.Rel), zap.Any("panic", rec))
			out.Err = fmt.Errorf("unit processing panicked: %v", rec)
		}
	}()
	out.Unit = unit.Rel

	key := cache.HashString(unit.Text)
	verdict, hit := r.cache.Get(ctx, key)
	if hit {
		out.CacheHit = true
		r.log.Info("cache hit, skipping generation",
			zap.String("unit", unit.Rel), zap.String("key", key[:12]))
	} else {
		verdict = r.judge(ctx, unit)
		r.cache.Put(ctx, key, verdict)
	}

	out.Violation = verdict.Violation
	if !verdict.Violation {
		r.log.Info("no violation", zap.String("unit", unit.Rel))
		return
	}
	r.log.Info("violation detected",
		zap.String("unit", unit.Rel), zap.String("reason", verdict.Reason))

	if strings.TrimSpace(verdict.SuggestedFix) == "" {
		r.log.Warn("violating verdict carries no fix, writing nothing",
			zap.String("unit", unit.Rel))
		return
	}

	// Merge against the content read this run, even when the verdict came
	// from the cache.
	finalText, mergeResult := r.merger.Merge(unit.Text, verdict)
	out.MergeResult = mergeResult

	path, err := writeOutput(r.outputDir, unit.Rel, finalText)
	if err != nil {
		out.Err = err
		return
	}
	out.OutputPath = path
	r.log.Info("wrote refactored unit",
		zap.String("unit", unit.Rel),
		zap.String("output", path),
		zap.Stringer("merge", mergeResult))
}

// judge chunks the unit and fans validation out across chunkParallel
// workers, each writing its verdict into its index slot so aggregation sees
// chunks in emission order.
func (r *Runner) judge(ctx context.Context, unit SourceUnit) agent.FileVerdict {
	chunks := r.splitter.SplitFile(unit.Rel, unit.Text)
	if len(chunks) == 0 {
		return agent.FileVerdict{Unit: unit.Rel}
	}
	r.log.Debug("judging unit",
		zap.String("unit", unit.Rel), zap.Int("chunks", len(chunks)))

	verdicts := make([]agent.ChunkVerdict, len(chunks))
	g := new(errgroup.Group)
	g.SetLimit(r.chunkParallel)
	for i, ch := range chunks {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error("chunk processing panicked",
						zap.String("unit", unit.Rel),
						zap.Int("chunk", ch.Index),
						zap.Any("panic", rec))
					verdicts[i] = agent.ChunkVerdict{
						ChunkIndex: ch.Index,
						Reason:     fmt.Sprintf("chunk processing panicked: %v", rec),
					}
				}
			}()
			domainContext := r.rag.AssembleContext(ctx, ch.Text)
			verdicts[i] = r.loop.Run(ctx, ch, r.basePrompt, domainContext)
			return nil
		})
	}
	// Workers never return errors; every failure mode lands in a verdict.
	_ = g.Wait()

	return agent.Aggregate(unit.Rel, verdicts)
}
