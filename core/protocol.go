package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/replee/schema"
)

// DefaultCallTimeout bounds a single evaluator call.
const DefaultCallTimeout = 30 * time.Second

// Result is the outcome of one evaluator call.
type Result struct {
	Request  schema.Request
	Response schema.Response
	Err      error
}

// Client is the call boundary in front of an Evaluator. Every call returns,
// either with a validated response or a classified *EvalError, even when the
// evaluator panics or ignores its context.
type Client struct {
	evaluator Evaluator
	timeout   time.Duration
}

// NewClient wraps evaluator. A non-positive timeout disables the deadline.
func NewClient(evaluator Evaluator, timeout time.Duration) *Client {
	return &Client{evaluator: evaluator, timeout: timeout}
}

// Call sends req and waits for the response.
func (c *Client) Call(ctx context.Context, req schema.Request) (schema.Response, error) {
	log := pslog.Ctx(ctx).With("mode", req.Mode)
	if c == nil || c.evaluator == nil {
		return schema.Response{}, NewEvalError(EvalErrorUnavailable, "evaluate", errors.New("no evaluator configured"))
	}
	if err := req.Validate(); err != nil {
		return schema.Response{}, NewEvalError(EvalErrorMalformed, "evaluate", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	log.Debug("evaluator request", "input_len", len(req.Input), "indent", req.Indent)
	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("evaluator panic", "panic", r)
				done <- Result{Request: req, Err: NewEvalError(EvalErrorInternal, "evaluate", fmt.Errorf("panic: %v", r))}
			}
		}()
		resp, err := c.evaluator.Evaluate(ctx, req)
		done <- Result{Request: req, Response: resp, Err: err}
	}()

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Result{Request: req, Err: ctx.Err()}
	}
	if res.Err != nil {
		err := ClassifyEvalError("evaluate", res.Err)
		log.Warn("evaluator call failed", "err", err, "kind", EvalErrorKindOf(err), "elapsed", time.Since(start))
		return schema.Response{}, err
	}
	if err := res.Response.Validate(); err != nil {
		log.Warn("evaluator response rejected", "err", err)
		return schema.Response{}, NewEvalError(EvalErrorMalformed, "evaluate", err)
	}
	log.Debug("evaluator response", "response_mode", res.Response.Mode, "is_err", res.Response.IsErr, "indent", res.Response.Indent, "elapsed", time.Since(start))
	return res.Response, nil
}

// Start runs Call on its own goroutine and hands the result to deliver.
func (c *Client) Start(ctx context.Context, req schema.Request, deliver func(Result)) {
	go func() {
		resp, err := c.Call(ctx, req)
		deliver(Result{Request: req, Response: resp, Err: err})
	}()
}
