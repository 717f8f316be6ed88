// Package expression evaluates the boolean conditions gating workflow steps.
// Expressions are data, not code: they run inside a sandboxed evaluator with
// no side effects, over the run's accumulated step outputs.
package expression

import "context"

// Engine evaluates an expression against a data environment.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
