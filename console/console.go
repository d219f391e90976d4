package console

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/replee/core"
	"pkt.systems/replee/schema"
)

// HistoryRecorder persists submitted commands.
type HistoryRecorder interface {
	Record(ctx context.Context, command string) error
}

// Options configures a console.
type Options struct {
	Session  core.SessionConfig
	Theme    schema.ThemeName
	History  []string
	Recorder HistoryRecorder
	Timeout  time.Duration
}

// Console drives a session from a byte stream of terminal input and draws on
// an ANSI terminal.
type Console struct {
	in       io.Reader
	surface  core.Surface
	client   *core.Client
	session  *core.Session
	recorder HistoryRecorder

	results    chan core.Result
	cancelCall context.CancelFunc
}

// New builds a console reading keys from in and drawing on out.
func New(in io.Reader, out io.Writer, evaluator core.Evaluator, opts Options) *Console {
	theme := themeForName(opts.Theme)
	cfg := opts.Session
	if cfg.Palette == (core.Palette{}) {
		cfg.Palette = theme.palette()
	}
	if cfg.Prompt == "" {
		cfg.Prompt = core.DefaultPrompt
	}
	if cfg.ContinuationPrompt == "" {
		cfg.ContinuationPrompt = core.DefaultContinuationPrompt
	}
	cfg.Prompt = theme.prompt(cfg.Prompt)
	cfg.ContinuationPrompt = theme.prompt(cfg.ContinuationPrompt)
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = core.DefaultCallTimeout
	}
	return &Console{
		in:       in,
		surface:  newScreen(out),
		client:   core.NewClient(evaluator, timeout),
		session:  core.NewSession(cfg, core.NewHistoryLedger(opts.History)),
		recorder: opts.Recorder,
		results:  make(chan core.Result, 1),
	}
}

// Session exposes the underlying state machine.
func (c *Console) Session() *core.Session {
	return c.session
}

// Run processes keys until the input ends, the user exits with ctrl+d on an
// empty line, or ctx is canceled. A call still pending when the input ends
// is allowed to finish first.
func (c *Console) Run(ctx context.Context) error {
	log := pslog.Ctx(ctx)
	keys := make(chan schema.KeyEvent, 64)
	go readKeys(c.in, keys)

	if err := core.Apply(c.surface, c.session.Redraw()); err != nil {
		return err
	}
	log.Debug("console started")
	defer c.cancelPending()

	for {
		select {
		case <-ctx.Done():
			_ = c.surface.WriteLine("")
			log.Debug("console stopped", "reason", "context done")
			return nil
		case ev, ok := <-keys:
			if !ok {
				keys = nil
				if !c.session.Pending() {
					_ = c.surface.WriteLine("")
					log.Debug("console stopped", "reason", "input closed")
					return nil
				}
				continue
			}
			done, err := c.handleKey(ctx, ev)
			if err != nil {
				return err
			}
			if done {
				log.Debug("console stopped", "reason", "user exit")
				return nil
			}
		case res := <-c.results:
			c.cancelPending()
			if err := c.apply(ctx, c.session.Deliver(res)); err != nil {
				return err
			}
			if keys == nil && !c.session.Pending() {
				_ = c.surface.WriteLine("")
				log.Debug("console stopped", "reason", "input closed")
				return nil
			}
		}
	}
}

func (c *Console) handleKey(ctx context.Context, ev schema.KeyEvent) (bool, error) {
	log := pslog.Ctx(ctx)
	switch {
	case ev.IsCtrl('c'):
		if c.session.Pending() {
			log.Debug("console interrupt", "pending", true)
			c.cancelPending()
			return false, nil
		}
		if c.session.Text() == "" && c.session.State() != core.StateAwaitingContinuation {
			_ = c.surface.WriteLine("")
			return true, nil
		}
		return false, c.apply(ctx, c.session.Abandon())
	case ev.IsCtrl('d'):
		if !c.session.Pending() && c.session.Text() == "" {
			_ = c.surface.WriteLine("")
			return true, nil
		}
	}
	if c.session.Pending() {
		log.Trace("console key dropped", "key", ev.Code.String())
		return false, nil
	}
	log.Trace("console key", "key", ev.Code.String(), "mods", int(ev.Mods))
	return false, c.apply(ctx, c.session.HandleKey(ev))
}

func (c *Console) apply(ctx context.Context, step core.Step) error {
	for _, command := range step.Recorded {
		if c.recorder == nil {
			break
		}
		if err := c.recorder.Record(ctx, command); err != nil {
			pslog.Ctx(ctx).Warn("history record failed", "err", err)
		}
	}
	if err := core.Apply(c.surface, step.Ops); err != nil {
		return err
	}
	if step.Request != nil {
		c.startCall(ctx, *step.Request)
	}
	return nil
}

func (c *Console) startCall(ctx context.Context, req schema.Request) {
	callCtx, cancel := context.WithCancel(ctx)
	c.cancelCall = cancel
	c.client.Start(callCtx, req, func(res core.Result) {
		select {
		case c.results <- res:
		case <-ctx.Done():
		}
	})
}

func (c *Console) cancelPending() {
	if c.cancelCall != nil {
		c.cancelCall()
		c.cancelCall = nil
	}
}

// RunLines feeds newline-separated input through the session one line at a
// time, waiting for each evaluation before sending the next line. It is the
// non-interactive counterpart of Run for piped input.
func (c *Console) RunLines(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		for _, r := range line {
			if err := c.apply(ctx, c.session.HandleKey(schema.KeyEvent{Code: schema.KeyRune, Rune: r})); err != nil {
				return err
			}
		}
		step := c.session.HandleKey(schema.KeyEvent{Code: schema.KeyEnter})
		if err := c.drive(ctx, step); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if c.session.State() == core.StateAwaitingContinuation {
		if err := c.drive(ctx, c.session.HandleKey(schema.KeyEvent{Code: schema.KeyEnter})); err != nil {
			return err
		}
		if c.session.State() == core.StateAwaitingContinuation {
			if err := c.drive(ctx, c.session.HandleKey(schema.KeyEvent{Code: schema.KeyEnter})); err != nil {
				return err
			}
		}
	}
	return c.surface.WriteLine("")
}

// drive applies step and synchronously resolves any requests it spawns.
func (c *Console) drive(ctx context.Context, step core.Step) error {
	for {
		req := step.Request
		step.Request = nil
		if err := c.apply(ctx, step); err != nil {
			return err
		}
		if req == nil {
			return nil
		}
		resp, err := c.client.Call(ctx, *req)
		step = c.session.Deliver(core.Result{Request: *req, Response: resp, Err: err})
	}
}
