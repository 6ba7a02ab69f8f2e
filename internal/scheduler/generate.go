package scheduler

import (
	"context"
	"errors"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

// GenerateOptions configure a multi-run generation.
type GenerateOptions struct {
	Alternatives   int
	Runs           int
	BaseSeed       int64
	MaxIterations  int
	Timeout        time.Duration
	Concurrency    int
	DiversityRatio float64
	Progress       func(Progress)
	// OnRun is called from the run's goroutine once it finishes.
	OnRun func(RunStats)
}

// GenerateResult holds the ranked, diversified alternatives and per-run statistics.
type GenerateResult struct {
	Candidates []Candidate
	Runs       []RunStats
	Succeeded  int
}

func (o *GenerateOptions) normalize() {
	if o.Alternatives <= 0 {
		o.Alternatives = 1
	}
	if o.Runs <= 0 {
		o.Runs = 2 * o.Alternatives
		if o.Runs < 4 {
			o.Runs = 4
		}
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.GOMAXPROCS(0)
	}
}

// Generate checks feasibility, runs independent searches with seeds BaseSeed..BaseSeed+Runs-1,
// then scores and diversifies the successful ones. Results depend only on the problem and
// options, never on how runs were interleaved.
func Generate(ctx context.Context, p *Problem, opts GenerateOptions) (*GenerateResult, error) {
	opts.normalize()
	if err := p.CheckFeasibility(); err != nil {
		return nil, err
	}

	results := make([]*Result, opts.Runs)
	errs := make([]error, opts.Runs)

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i := 0; i < opts.Runs; i++ {
		i := i
		g.Go(func() error {
			results[i], errs[i] = Search(ctx, p, Options{
				Seed:          opts.BaseSeed + int64(i),
				MaxIterations: opts.MaxIterations,
				Timeout:       opts.Timeout,
				Progress:      opts.Progress,
			})
			if opts.OnRun != nil && results[i] != nil {
				opts.OnRun(results[i].Stats)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := &GenerateResult{}
	if ctx.Err() != nil {
		for _, res := range results {
			if res != nil {
				out.Runs = append(out.Runs, res.Stats)
			}
		}
		return out, cancelled(ctx)
	}
	var cands []Candidate
	for i, res := range results {
		if res != nil {
			out.Runs = append(out.Runs, res.Stats)
		}
		if errs[i] != nil || res == nil {
			continue
		}
		out.Succeeded++
		cands = append(cands, NewCandidate(p, res.Stats.Seed, res.Assignment))
	}

	if len(cands) == 0 {
		return out, pickFailure(ctx, errs)
	}
	out.Candidates = Diversify(cands, opts.Alternatives, MinDistance(len(p.sessions), opts.DiversityRatio))
	return out, nil
}

func cancelled(ctx context.Context) error {
	return appErrors.Wrap(ctx.Err(), appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, appErrors.ErrCancelled.Message)
}

// pickFailure reports cancellation first, then a proven infeasibility, then exhaustion.
func pickFailure(ctx context.Context, errs []error) error {
	if ctx.Err() != nil {
		return cancelled(ctx)
	}
	var budget error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, appErrors.ErrInfeasibleInput) {
			return err
		}
		if budget == nil {
			budget = err
		}
	}
	if budget != nil {
		return budget
	}
	return appErrors.ErrBudgetExceeded
}
