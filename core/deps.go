package core

import (
	"context"

	"pkt.systems/replee/schema"
)

// Surface is the terminal-like output the console draws on.
type Surface interface {
	Write(text string) error
	WriteLine(text string) error
	MoveCursor(deltaColumns int) error
	ClearLine() error
}

// ScreenClearer is implemented by surfaces that can wipe everything drawn so
// far and home the cursor.
type ScreenClearer interface {
	ClearScreen() error
}

// Evaluator evaluates one request. Implementations may block; the caller
// bounds each call with the context.
type Evaluator interface {
	Evaluate(ctx context.Context, req schema.Request) (schema.Response, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, req schema.Request) (schema.Response, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, req schema.Request) (schema.Response, error) {
	return f(ctx, req)
}
