package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"pkt.systems/replee/schema"
)

// State is the session state.
type State int

const (
	// StateAwaitingCommand expects a fresh top-level input.
	StateAwaitingCommand State = iota
	// StateAwaitingContinuation collects more lines of an incomplete input.
	StateAwaitingContinuation
	// StateIdle is the window after a complete result and before the next
	// key. It handles input exactly like StateAwaitingCommand, so Session
	// never enters it and always reports StateAwaitingCommand instead.
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateAwaitingCommand:
		return "awaiting_command"
	case StateAwaitingContinuation:
		return "awaiting_continuation"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

const (
	DefaultPrompt             = "replee > "
	DefaultContinuationPrompt = "     ... "
	DefaultMaxResets          = 1

	// ClearCommand typed alone at the command prompt wipes the screen
	// instead of going to the evaluator.
	ClearCommand = "clear"
)

// KeyClass is the dispatch class of a key event.
type KeyClass int

const (
	KeyClassIgnored KeyClass = iota
	KeyClassSubmit
	KeyClassHistoryPrevious
	KeyClassHistoryNext
	KeyClassDeleteBackward
	KeyClassDeleteForward
	KeyClassMoveLeft
	KeyClassMoveRight
	KeyClassMoveStart
	KeyClassMoveEnd
	KeyClassInsert
)

// Classify maps a key event to its dispatch class. Keys held with alt,
// altgraph, ctrl or meta are never dispatched.
func Classify(ev schema.KeyEvent) KeyClass {
	if ev.HasCommandModifier() {
		return KeyClassIgnored
	}
	switch ev.Code {
	case schema.KeyEnter:
		return KeyClassSubmit
	case schema.KeyUp:
		return KeyClassHistoryPrevious
	case schema.KeyDown:
		return KeyClassHistoryNext
	case schema.KeyBackspace:
		return KeyClassDeleteBackward
	case schema.KeyDelete:
		return KeyClassDeleteForward
	case schema.KeyLeft:
		return KeyClassMoveLeft
	case schema.KeyRight:
		return KeyClassMoveRight
	case schema.KeyHome:
		return KeyClassMoveStart
	case schema.KeyEnd:
		return KeyClassMoveEnd
	case schema.KeyRune:
		if unicode.IsPrint(ev.Rune) {
			return KeyClassInsert
		}
	}
	return KeyClassIgnored
}

// SessionConfig configures labels, colors and the restart bound.
type SessionConfig struct {
	Prompt             string
	ContinuationPrompt string
	Palette            Palette
	// MaxResets bounds how often one input is resubmitted after the
	// evaluator answers with a start response. Negative disables retries.
	MaxResets int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.ContinuationPrompt == "" {
		c.ContinuationPrompt = DefaultContinuationPrompt
	}
	if c.Palette == (Palette{}) {
		c.Palette = DefaultPalette
	}
	if c.MaxResets == 0 {
		c.MaxResets = DefaultMaxResets
	}
	if c.MaxResets < 0 {
		c.MaxResets = 0
	}
	return c
}

// Step is what the caller must do after feeding the session an event:
// draw Ops, send Request when set, and persist Recorded history entries.
type Step struct {
	Ops      []RenderOp
	Request  *schema.Request
	Recorded []string
}

// Session is the editing and protocol state machine for one console. It is
// not safe for concurrent use; a single loop owns it.
type Session struct {
	cfg     SessionConfig
	buffer  EditBuffer
	history *HistoryLedger
	state   State

	pending  bool
	inflight schema.Request
	resets   int

	// source is the input the evaluator reported as incomplete.
	source string
	indent int
}

// NewSession returns a session in StateAwaitingCommand. history may be nil.
func NewSession(cfg SessionConfig, history *HistoryLedger) *Session {
	if history == nil {
		history = NewHistoryLedger(nil)
	}
	return &Session{
		cfg:     cfg.withDefaults(),
		history: history,
		state:   StateAwaitingCommand,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	return s.state
}

// Pending reports whether an evaluator call is outstanding.
func (s *Session) Pending() bool {
	return s.pending
}

// Text returns the edit buffer contents.
func (s *Session) Text() string {
	return s.buffer.Text()
}

// Cursor returns the cursor position in runes.
func (s *Session) Cursor() int {
	return s.buffer.Cursor()
}

// History returns the ledger the session navigates and appends to.
func (s *Session) History() *HistoryLedger {
	return s.history
}

// Redraw returns the ops for the prompt line.
func (s *Session) Redraw() []RenderOp {
	return RenderPrompt(s.label(), s.buffer.Text(), s.buffer.Cursor())
}

// HandleKey dispatches one key event. Keys are dropped while a call is
// pending.
func (s *Session) HandleKey(ev schema.KeyEvent) Step {
	if s.pending {
		return Step{}
	}
	class := Classify(ev)
	switch class {
	case KeyClassIgnored:
		return Step{}
	case KeyClassSubmit:
		return s.submit()
	case KeyClassHistoryPrevious:
		if s.hasCommittedLines() {
			return Step{}
		}
		if entry, ok := s.history.Previous(); ok {
			s.buffer.SetText(entry)
		}
	case KeyClassHistoryNext:
		if s.hasCommittedLines() {
			return Step{}
		}
		if entry, ok := s.history.Next(); ok {
			s.buffer.SetText(entry)
		}
	case KeyClassDeleteBackward:
		// Only the current row can be redrawn; never join it with the row above.
		if s.buffer.AtLineStart() {
			return Step{}
		}
		s.buffer.DeleteBackward()
	case KeyClassDeleteForward:
		if s.buffer.AtLineEnd() {
			return Step{}
		}
		s.buffer.DeleteForward()
	case KeyClassMoveLeft:
		if s.buffer.AtLineStart() {
			return Step{}
		}
		s.buffer.MoveLeft()
	case KeyClassMoveRight:
		if s.buffer.AtLineEnd() {
			return Step{}
		}
		s.buffer.MoveRight()
	case KeyClassMoveStart:
		s.buffer.MoveStart()
	case KeyClassMoveEnd:
		s.buffer.MoveEnd()
	case KeyClassInsert:
		s.buffer.InsertRune(ev.Rune)
	}
	return Step{Ops: s.Redraw()}
}

// Abandon drops the current input, including a pending continuation block,
// and shows a fresh prompt. It does nothing while a call is pending.
func (s *Session) Abandon() Step {
	if s.pending {
		return Step{}
	}
	line, _ := s.buffer.CurrentLine()
	ops := RenderCommit(s.label(), line+"^C")
	s.reset()
	ops = append(ops, s.Redraw()...)
	return Step{Ops: ops}
}

// Deliver applies the result of the outstanding call. Results that arrive
// when no call is pending are ignored.
func (s *Session) Deliver(res Result) Step {
	if !s.pending {
		return Step{}
	}
	s.pending = false
	if res.Err != nil {
		return s.fail(res.Err)
	}
	resp := res.Response
	switch resp.Mode {
	case schema.ModeStart:
		return s.restart(resp)
	case schema.ModeContinuation:
		var ops []RenderOp
		ops = append(ops, RenderOutput(resp.Output, resp.IsErr, s.cfg.Palette)...)
		s.source = s.inflight.Input
		s.indent = resp.Indent
		s.state = StateAwaitingContinuation
		s.buffer.SetText(strings.Repeat(" ", max(resp.Indent, 0)))
		ops = append(ops, s.Redraw()...)
		return Step{Ops: ops}
	case schema.ModeComplete:
		ops := RenderOutput(resp.Output, resp.IsErr, s.cfg.Palette)
		s.reset()
		ops = append(ops, s.Redraw()...)
		return Step{Ops: ops}
	default:
		return s.fail(NewEvalError(EvalErrorMalformed, "evaluate", fmt.Errorf("%w %q", schema.ErrUnknownMode, resp.Mode)))
	}
}

func (s *Session) submit() Step {
	if s.state == StateAwaitingContinuation {
		if !s.terminatesBlock() {
			line, col := s.buffer.CurrentLine()
			ops := RenderCommit(s.label(), string([]rune(line)[:col]))
			s.buffer.AppendNewlineAtCursor()
			ops = append(ops, s.Redraw()...)
			return Step{Ops: ops}
		}
		block := strings.TrimRightFunc(s.buffer.Text(), unicode.IsSpace)
		input := s.source
		if block != "" {
			input += "\n" + block
		}
		ops := RenderCommit(s.label(), "")
		s.history.Append(input)
		s.resets = 0
		req := schema.Request{Mode: schema.ModeContinuation, Input: input, Indent: s.indent}
		return s.send(req, ops, []string{input})
	}

	text := s.buffer.Text()
	line, _ := s.buffer.CurrentLine()
	ops := RenderCommit(s.label(), line)
	if strings.TrimSpace(text) == "" {
		s.reset()
		ops = append(ops, s.Redraw()...)
		return Step{Ops: ops}
	}
	if strings.TrimSpace(text) == ClearCommand {
		s.reset()
		ops = append(RenderClearScreen(), s.Redraw()...)
		return Step{Ops: ops}
	}
	s.history.Append(text)
	s.resets = 0
	req := schema.Request{Mode: schema.ModeStart, Input: text}
	return s.send(req, ops, []string{text})
}

// hasCommittedLines reports whether rows of the continuation block have
// already been written above the prompt row.
func (s *Session) hasCommittedLines() bool {
	return s.state == StateAwaitingContinuation && s.buffer.HasLineBreak()
}

// terminatesBlock reports whether Enter ends the continuation block: the
// buffer already spans several lines and the cursor sits at the end of a
// blank last line.
func (s *Session) terminatesBlock() bool {
	if !s.buffer.HasLineBreak() || s.buffer.Cursor() != s.buffer.Len() {
		return false
	}
	line, _ := s.buffer.CurrentLine()
	return strings.TrimSpace(line) == ""
}

func (s *Session) send(req schema.Request, ops []RenderOp, recorded []string) Step {
	s.pending = true
	s.inflight = req
	return Step{Ops: ops, Request: &req, Recorded: recorded}
}

func (s *Session) restart(resp schema.Response) Step {
	ops := RenderOutput(resp.Output, resp.IsErr, s.cfg.Palette)
	if s.resets >= s.cfg.MaxResets {
		step := s.fail(NewEvalError(EvalErrorResetLoop, "evaluate", errors.New("evaluator requested too many restarts")))
		step.Ops = append(ops, step.Ops...)
		return step
	}
	s.resets++
	line := s.inflight.Input
	var recorded []string
	if last, ok := s.history.Last(); !ok || last != line {
		s.history.Append(line)
		recorded = append(recorded, line)
	}
	s.history.Rewind()
	s.source = ""
	s.indent = 0
	s.state = StateAwaitingCommand
	req := schema.Request{Mode: schema.ModeStart, Input: line}
	return s.send(req, ops, recorded)
}

func (s *Session) fail(err error) Step {
	ops := RenderOutput(ErrorHint(err), true, s.cfg.Palette)
	s.reset()
	ops = append(ops, s.Redraw()...)
	return Step{Ops: ops}
}

func (s *Session) reset() {
	s.buffer.Clear()
	s.history.Rewind()
	s.state = StateAwaitingCommand
	s.source = ""
	s.indent = 0
	s.inflight = schema.Request{}
}

func (s *Session) label() string {
	if s.state == StateAwaitingContinuation || !s.buffer.OnFirstLine() {
		return s.cfg.ContinuationPrompt
	}
	return s.cfg.Prompt
}
