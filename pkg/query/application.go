package query

import "context"

// Application is one runnable operator in a query plan. FactApplication,
// ConstraintApplication, FormulaApplication and RuleApplication are the
// four implementations the kernel composes.
type Application interface {
	// Schema lists the variable names this application may newly bind.
	Schema() Schema

	// Estimate reports whether the application can run given the
	// variables already known in env, and if so, its cost. A lower cost
	// runs first; the planner never needs to compare costs across
	// applications that aren't simultaneously ready.
	Estimate(env Env) (Cost, bool)

	// Evaluate runs the application against one input Answer, streaming
	// every extension it produces. The channel is closed when the
	// application is exhausted or ctx is cancelled.
	Evaluate(ctx context.Context, in Answer) <-chan AnswerOrError
}
