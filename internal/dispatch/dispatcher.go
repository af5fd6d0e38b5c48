// Package dispatch fans the per-tile analysis out over a bounded worker
// pool and gathers the results deterministically.
//
// Every eligible tile is submitted exactly once as part of a single
// batch; the dispatcher blocks until all submitted tiles have completed
// or failed. Workers may finish in any order, so results are indexed by
// tile position and sorted before they are returned; aggregation order
// never depends on completion order.
package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/sunaifei/HistomicsTK/internal/annotations"
	"github.com/sunaifei/HistomicsTK/internal/features"
	"github.com/sunaifei/HistomicsTK/internal/tiling"
)

// TileResult is the output of the per-tile analysis for one tile. The
// annotation count always equals the feature-row count: each detected
// nucleus yields exactly one annotation and one feature row.
type TileResult struct {
	Position    int
	Annotations []annotations.NucleusAnnotation
	Features    *features.Table
}

// TileError reports a failed tile analysis.
type TileError struct {
	Position int
	Err      error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("tile %d analysis failed: %v", e.Position, e.Err)
}

func (e *TileError) Unwrap() error {
	return e.Err
}

// Analyzer is the opaque per-tile analysis function. Implementations
// must be safe for concurrent calls and must not mutate shared state;
// the run configuration and foreground mask they capture are read-only.
type Analyzer interface {
	AnalyzeTile(ctx context.Context, spec tiling.TileSpec) (TileResult, error)
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, spec tiling.TileSpec) (TileResult, error)

// AnalyzeTile calls the wrapped function.
func (f AnalyzerFunc) AnalyzeTile(ctx context.Context, spec tiling.TileSpec) (TileResult, error) {
	return f(ctx, spec)
}

// SkipReport lists tiles skipped in isolation mode, in position order.
type SkipReport struct {
	Positions []int
	Errors    []error
}

// Count returns the number of skipped tiles.
func (r *SkipReport) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Positions)
}

// Dispatcher runs tile analyses on a worker pool.
//
// The zero value is a fail-fast dispatcher with one worker per CPU: the
// first tile failure cancels every still-pending tile and aborts the
// run. With SkipFailed set, failed tiles are recorded in the SkipReport
// and the rest of the batch still completes.
type Dispatcher struct {
	Workers    int
	SkipFailed bool
}

// Run executes the analyzer once per tile spec and returns the results
// sorted by ascending tile position. The pool is acquired at the start
// of the call and fully drained on every exit path.
func (d *Dispatcher) Run(ctx context.Context, specs []tiling.TileSpec, analyzer Analyzer) ([]TileResult, *SkipReport, error) {
	if err := ctx.Err(); err != nil {
		// Cancelled before dispatch: no tile work starts.
		return nil, nil, err
	}
	if len(specs) == 0 {
		return nil, &SkipReport{}, nil
	}

	workers := d.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	if d.SkipFailed {
		return d.runIsolated(ctx, specs, analyzer, workers)
	}
	return d.runFailFast(ctx, specs, analyzer, workers)
}

func (d *Dispatcher) runFailFast(ctx context.Context, specs []tiling.TileSpec, analyzer Analyzer, workers int) ([]TileResult, *SkipReport, error) {
	results := make([]TileResult, len(specs))

	p := pool.New().
		WithMaxGoroutines(workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for i, spec := range specs {
		i, spec := i, spec
		p.Go(func(ctx context.Context) error {
			res, err := analyzer.AnalyzeTile(ctx, spec)
			if err != nil {
				return &TileError{Position: spec.Position, Err: err}
			}
			res.Position = spec.Position
			results[i] = res
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, nil, err
	}

	sortByPosition(results)
	return results, &SkipReport{}, nil
}

func (d *Dispatcher) runIsolated(ctx context.Context, specs []tiling.TileSpec, analyzer Analyzer, workers int) ([]TileResult, *SkipReport, error) {
	var mu sync.Mutex
	results := make([]TileResult, 0, len(specs))
	var failures []*TileError

	p := pool.New().
		WithMaxGoroutines(workers).
		WithContext(ctx)

	for _, spec := range specs {
		spec := spec
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := analyzer.AnalyzeTile(ctx, spec)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, &TileError{Position: spec.Position, Err: err})
				return nil
			}
			res.Position = spec.Position
			results = append(results, res)
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		// Only external cancellation reaches here; tile failures were
		// absorbed into the skip report.
		return nil, nil, err
	}

	sortByPosition(results)

	report := &SkipReport{}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Position < failures[j].Position })
	for _, f := range failures {
		report.Positions = append(report.Positions, f.Position)
		report.Errors = append(report.Errors, f)
	}
	return results, report, nil
}

func sortByPosition(results []TileResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Position < results[j].Position
	})
}
