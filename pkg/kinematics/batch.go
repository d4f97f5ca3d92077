package kinematics

import (
	"context"
	"runtime"

	"github.com/jbeda/geom"
	"golang.org/x/sync/errgroup"
)

// PathSummary counts the outcomes of a batch.
type PathSummary struct {
	Total          int `json:"total"`
	Found          int `json:"found"`
	Unreachable    int `json:"unreachable"`
	OutOfRange     int `json:"out_of_range"`
	BranchMismatch int `json:"branch_mismatch"`
}

func (p *PathSummary) add(o Outcome) {
	p.Total++
	switch o {
	case OK:
		p.Found++
	case Unreachable:
		p.Unreachable++
	case OutOfRange:
		p.OutOfRange++
	case BranchMismatch:
		p.BranchMismatch++
	}
}

// SummarizeInverse counts inverse outcomes.
func SummarizeInverse(results []InverseResult) PathSummary {
	var p PathSummary
	for _, r := range results {
		p.add(r.Outcome)
	}
	return p
}

// SummarizeForward counts forward outcomes.
func SummarizeForward(results []ForwardResult) PathSummary {
	var p PathSummary
	for _, r := range results {
		p.add(r.Outcome)
	}
	return p
}

// InversePath solves every point with up to workers goroutines (GOMAXPROCS
// when workers <= 0). Results keep the input order and all come from one
// configuration snapshot. If ctx is cancelled the partial results are
// returned with ctx's error; unsolved entries are left as zero values.
func (s *Solver) InversePath(ctx context.Context, points []geom.Coord, workers int) ([]InverseResult, error) {
	sn := s.load()
	out := make([]InverseResult, len(points))
	err := fanOut(ctx, len(points), workers, func(i int) {
		out[i] = s.inverseWith(sn, points[i])
	})
	return out, err
}

// ForwardPath is the forward counterpart of InversePath.
func (s *Solver) ForwardPath(ctx context.Context, servos []ServoPair, workers int) ([]ForwardResult, error) {
	sn := s.load()
	out := make([]ForwardResult, len(servos))
	err := fanOut(ctx, len(servos), workers, func(i int) {
		out[i] = s.forwardWith(sn, servos[i].Left, servos[i].Right)
	})
	return out, err
}

// fanOut runs fn(0..n-1) on at most workers goroutines and stops starting
// work once ctx is done.
func fanOut(ctx context.Context, n, workers int, fn func(i int)) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
