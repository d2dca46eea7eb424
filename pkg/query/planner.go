package query

import (
	"context"
	"fmt"

	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/metrics"
)

// Planner orders and executes a set of Applications as a left-deep
// pipeline: at each step it runs the cheapest ready application and
// extends the environment with the variables it binds, repeating until
// every application has run or none of the rest are ready.
type Planner struct {
	Apps []Application
}

// NewPlanner builds a Planner over the given applications. Order has no
// effect on the result, only on tie-breaking among equally-cheap ready
// applications (first-seen wins, per their position in Apps).
func NewPlanner(apps []Application) *Planner {
	return &Planner{Apps: apps}
}

// plan computes a static execution order from the applications' declared
// Schema and Estimate behavior, without running anything: Estimate only
// needs to know which variable names are known, not their values, so the
// order can be fixed once per starting Env and reused for every input
// Answer flowing through it.
func plan(apps []Application, start Env) ([]Application, error) {
	remaining := make([]Application, len(apps))
	copy(remaining, apps)
	env := start
	order := make([]Application, 0, len(apps))

	for len(remaining) > 0 {
		bestIdx := -1
		var bestCost Cost
		for i, app := range remaining {
			cost, ready := app.Estimate(env)
			if !ready {
				continue
			}
			if bestIdx == -1 || cost < bestCost {
				bestIdx = i
				bestCost = cost
			}
		}
		if bestIdx == -1 {
			return order, fmt.Errorf("dialog: query: %d application(s) cannot be satisfied: %w", len(remaining), dialogerr.ErrConstraintViolation)
		}
		chosen := remaining[bestIdx]
		order = append(order, chosen)
		env = env.With(chosen.Schema().Vars...)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return order, nil
}

// Evaluate runs the planned pipeline starting from in, streaming every
// completed Answer (or a terminal error) until the plan is exhausted or
// ctx is cancelled.
func (p *Planner) Evaluate(ctx context.Context, in Answer) <-chan AnswerOrError {
	out := make(chan AnswerOrError)

	go func() {
		defer close(out)

		timer := metrics.NewTimer()
		outcome := "ok"
		defer func() { timer.ObserveDurationVec(metrics.QueryEvaluationDuration, outcome) }()
		defer func() { metrics.QueryEvaluationsTotal.WithLabelValues(outcome).Inc() }()

		order, err := plan(p.Apps, NewEnv(in))
		if err != nil {
			outcome = "error"
			emit(ctx, out, AnswerOrError{Err: err})
			return
		}

		inner := make(chan AnswerOrError)
		go func() {
			defer close(inner)
			runPipeline(ctx, order, in, inner)
		}()
		for item := range inner {
			if item.Err != nil {
				outcome = "error"
			} else {
				metrics.QueryAnswersEmittedTotal.Inc()
			}
			if !emit(ctx, out, item) {
				return
			}
		}
	}()

	return out
}

// runPipeline streams in through apps depth-first: each application's
// output Answers are fed into the rest of the pipeline in turn, forming a
// nested-loop join. This is the single cooperative goroutine the planner
// runs on; each Application.Evaluate call may spawn its own goroutine for
// its own stage, but the join itself never runs concurrently with itself.
func runPipeline(ctx context.Context, apps []Application, in Answer, out chan<- AnswerOrError) {
	if len(apps) == 0 {
		emit(ctx, out, AnswerOrError{Answer: in})
		return
	}
	head, rest := apps[0], apps[1:]
	results := head.Evaluate(ctx, in)
	for item := range results {
		if item.Err != nil {
			if !emit(ctx, out, item) {
				return
			}
			continue
		}
		runPipeline(ctx, rest, item.Answer, out)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
