package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pkt.systems/replee/schema"
)

func typeText(t *testing.T, s *Session, text string) {
	t.Helper()
	for _, r := range text {
		s.HandleKey(schema.KeyEvent{Code: schema.KeyRune, Rune: r})
	}
}

func enter(s *Session) Step {
	return s.HandleKey(schema.KeyEvent{Code: schema.KeyEnter})
}

func opsText(ops []RenderOp) string {
	var b strings.Builder
	for _, op := range ops {
		switch op.Kind {
		case OpWrite:
			b.WriteString(op.Text)
		case OpWriteLine:
			b.WriteString(op.Text + "\n")
		}
	}
	return b.String()
}

func TestSessionSubmitSendsStartRequest(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "2 + 2")
	step := enter(s)
	if step.Request == nil {
		t.Fatalf("expected request on submit")
	}
	want := schema.Request{Mode: schema.ModeStart, Input: "2 + 2"}
	if diff := cmp.Diff(want, *step.Request); diff != "" {
		t.Fatalf("unexpected request (-want +got):\n%s", diff)
	}
	if !s.Pending() {
		t.Fatalf("expected pending after submit")
	}
	if diff := cmp.Diff([]string{"2 + 2"}, step.Recorded); diff != "" {
		t.Fatalf("unexpected recorded history (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"2 + 2"}, s.History().Entries()); diff != "" {
		t.Fatalf("unexpected ledger (-want +got):\n%s", diff)
	}
}

func TestSessionCompleteRendersOutputAndClears(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "2 + 2")
	step := enter(s)
	step = s.Deliver(Result{Request: *step.Request, Response: schema.Response{Mode: schema.ModeComplete, Output: "4"}})

	want := []RenderOp{
		{Kind: OpWrite, Text: DefaultPalette.Output},
		{Kind: OpWriteLine, Text: "4"},
		{Kind: OpWrite, Text: DefaultPalette.Reset},
		{Kind: OpClearLine},
		{Kind: OpWrite, Text: DefaultPrompt},
	}
	if diff := cmp.Diff(want, step.Ops); diff != "" {
		t.Fatalf("unexpected ops (-want +got):\n%s", diff)
	}
	if s.Text() != "" || s.Cursor() != 0 {
		t.Fatalf("expected cleared buffer, got %q cursor %d", s.Text(), s.Cursor())
	}
	if s.State() != StateAwaitingCommand || s.Pending() {
		t.Fatalf("expected awaiting command and not pending, got %s pending=%v", s.State(), s.Pending())
	}
}

func TestSessionCompleteErrorUsesErrorColor(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "nope()")
	enter(s)
	step := s.Deliver(Result{Response: schema.Response{Mode: schema.ModeComplete, Output: "ReferenceError: nope is not defined", IsErr: true}})
	if step.Ops[0].Text != DefaultPalette.Error {
		t.Fatalf("expected error color first, got %+v", step.Ops[0])
	}
	if s.State() != StateAwaitingCommand {
		t.Fatalf("expected awaiting command, got %s", s.State())
	}
}

func TestSessionContinuationSeedsIndent(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "1 + (")
	enter(s)
	s.Deliver(Result{Response: schema.Response{Mode: schema.ModeContinuation, Indent: 4}})
	if s.Text() != "    " || s.Cursor() != 4 {
		t.Fatalf("expected four spaces cursor 4, got %q cursor %d", s.Text(), s.Cursor())
	}
	if s.State() != StateAwaitingContinuation {
		t.Fatalf("expected awaiting continuation, got %s", s.State())
	}

	step := enter(s)
	if step.Request != nil {
		t.Fatalf("expected no evaluator call on continuation newline, got %+v", step.Request)
	}
	if s.Text() != "    \n" {
		t.Fatalf("expected newline appended, got %q", s.Text())
	}
	if s.State() != StateAwaitingContinuation {
		t.Fatalf("expected state unchanged, got %s", s.State())
	}
}

func TestSessionContinuationBlockTerminatesOnBlankLine(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "1 + (")
	enter(s)
	s.Deliver(Result{Response: schema.Response{Mode: schema.ModeContinuation, Indent: 2}})
	typeText(t, s, "2)")
	if step := enter(s); step.Request != nil {
		t.Fatalf("expected local newline first")
	}
	step := enter(s)
	if step.Request == nil {
		t.Fatalf("expected blank line to send the block")
	}
	want := schema.Request{Mode: schema.ModeContinuation, Input: "1 + (\n  2)", Indent: 2}
	if diff := cmp.Diff(want, *step.Request); diff != "" {
		t.Fatalf("unexpected request (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1 + (\n  2)"}, step.Recorded); diff != "" {
		t.Fatalf("unexpected recorded (-want +got):\n%s", diff)
	}

	s.Deliver(Result{Response: schema.Response{Mode: schema.ModeComplete, Output: "3"}})
	if s.State() != StateAwaitingCommand || s.Text() != "" {
		t.Fatalf("expected fresh prompt, got %s %q", s.State(), s.Text())
	}
}

func TestSessionContinuationStillIncompleteKeepsSource(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "{")
	enter(s)
	s.Deliver(Result{Response: schema.Response{Mode: schema.ModeContinuation, Indent: 2}})
	typeText(t, s, "{")
	enter(s)
	step := enter(s)
	s.Deliver(Result{Request: *step.Request, Response: schema.Response{Mode: schema.ModeContinuation, Indent: 4}})
	typeText(t, s, "}}")
	enter(s)
	step = enter(s)
	if step.Request == nil || step.Request.Input != "{\n  {\n    }}" {
		t.Fatalf("expected accumulated source, got %+v", step.Request)
	}
}

func TestSessionEditingStaysOnContinuationRow(t *testing.T) {
	s := NewSession(SessionConfig{}, NewHistoryLedger([]string{"older"}))
	typeText(t, s, "f(")
	enter(s)
	s.Deliver(Result{Response: schema.Response{Mode: schema.ModeContinuation, Indent: 2}})
	typeText(t, s, "1,")
	enter(s)
	if s.Text() != "  1,\n" || s.Cursor() != 5 {
		t.Fatalf("expected committed row and empty row, got %q cursor %d", s.Text(), s.Cursor())
	}

	for _, code := range []schema.KeyCode{schema.KeyBackspace, schema.KeyLeft, schema.KeyUp, schema.KeyDown} {
		step := s.HandleKey(schema.KeyEvent{Code: code})
		if len(step.Ops) != 0 {
			t.Fatalf("key %v: expected no redraw, got %+v", code, step.Ops)
		}
		if s.Text() != "  1,\n" || s.Cursor() != 5 {
			t.Fatalf("key %v: expected committed row untouched, got %q cursor %d", code, s.Text(), s.Cursor())
		}
	}

	typeText(t, s, "2")
	s.HandleKey(schema.KeyEvent{Code: schema.KeyBackspace})
	if s.Text() != "  1,\n" {
		t.Fatalf("expected backspace inside the row to work, got %q", s.Text())
	}
}

func TestSessionRecalledBlockEditsLastRowOnly(t *testing.T) {
	s := NewSession(SessionConfig{}, NewHistoryLedger([]string{"f(\n  1)"}))
	s.HandleKey(schema.KeyEvent{Code: schema.KeyUp})
	s.HandleKey(schema.KeyEvent{Code: schema.KeyHome})
	if s.Cursor() != 3 {
		t.Fatalf("expected cursor at start of last row, got %d", s.Cursor())
	}
	s.HandleKey(schema.KeyEvent{Code: schema.KeyLeft})
	s.HandleKey(schema.KeyEvent{Code: schema.KeyBackspace})
	if s.Text() != "f(\n  1)" || s.Cursor() != 3 {
		t.Fatalf("expected recalled entry untouched, got %q cursor %d", s.Text(), s.Cursor())
	}
}

func TestSessionContinuationBlockGetsFreshRestartBudget(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "f(")
	enter(s)
	step := s.Deliver(Result{Response: schema.Response{Mode: schema.ModeStart}})
	if step.Request == nil {
		t.Fatalf("expected first line to be resubmitted")
	}
	s.Deliver(Result{Response: schema.Response{Mode: schema.ModeContinuation, Indent: 2}})
	typeText(t, s, "1)")
	enter(s)
	step = enter(s)
	if step.Request == nil || step.Request.Mode != schema.ModeContinuation {
		t.Fatalf("expected block request, got %+v", step.Request)
	}

	step = s.Deliver(Result{Response: schema.Response{Mode: schema.ModeStart}})
	want := schema.Request{Mode: schema.ModeStart, Input: "f(\n  1)"}
	if step.Request == nil || *step.Request != want {
		t.Fatalf("expected block to be resubmitted, got %+v (%q)", step.Request, opsText(step.Ops))
	}
}

func TestSessionClearCommandWipesScreen(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, " clear ")
	step := enter(s)
	if step.Request != nil || len(step.Recorded) != 0 {
		t.Fatalf("expected clear to stay local, got %+v", step)
	}
	if len(step.Ops) == 0 || step.Ops[0].Kind != OpClearScreen {
		t.Fatalf("expected clear screen op first, got %+v", step.Ops)
	}
	if s.Text() != "" || s.History().Len() != 0 {
		t.Fatalf("expected empty buffer and no history, got %q %v", s.Text(), s.History().Entries())
	}

	// Inside a continuation block the word is ordinary input.
	typeText(t, s, "{")
	enter(s)
	s.Deliver(Result{Response: schema.Response{Mode: schema.ModeContinuation}})
	typeText(t, s, "clear")
	if step := enter(s); len(step.Ops) > 0 && step.Ops[0].Kind == OpClearScreen {
		t.Fatalf("expected clear to be kept as block text")
	}
}

func TestSessionKeysDroppedWhilePending(t *testing.T) {
	s := NewSession(SessionConfig{}, NewHistoryLedger([]string{"old"}))
	typeText(t, s, "slow()")
	enter(s)
	entries := s.History().Entries()
	position := s.History().Position()

	keys := []schema.KeyEvent{
		{Code: schema.KeyRune, Rune: 'x'},
		{Code: schema.KeyEnter},
		{Code: schema.KeyBackspace},
		{Code: schema.KeyUp},
		{Code: schema.KeyDown},
		{Code: schema.KeyLeft},
		{Code: schema.KeyRight},
	}
	for _, key := range keys {
		step := s.HandleKey(key)
		if step.Request != nil || len(step.Ops) != 0 || len(step.Recorded) != 0 {
			t.Fatalf("expected %s to be dropped, got %+v", key.Code, step)
		}
	}
	if s.Text() != "slow()" {
		t.Fatalf("expected buffer unchanged, got %q", s.Text())
	}
	if diff := cmp.Diff(entries, s.History().Entries()); diff != "" {
		t.Fatalf("history changed while pending (-want +got):\n%s", diff)
	}
	if s.History().Position() != position || s.State() != StateAwaitingCommand {
		t.Fatalf("expected position and state unchanged")
	}
	if step := s.Abandon(); len(step.Ops) != 0 {
		t.Fatalf("expected abandon to be refused while pending")
	}
}

func TestSessionModifiedKeysIgnored(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	for _, mod := range []schema.Modifiers{schema.ModAlt, schema.ModAltGraph, schema.ModCtrl, schema.ModMeta} {
		step := s.HandleKey(schema.KeyEvent{Code: schema.KeyRune, Rune: 'a', Mods: mod})
		if len(step.Ops) != 0 {
			t.Fatalf("expected modifier %d to be ignored", mod)
		}
		if step := s.HandleKey(schema.KeyEvent{Code: schema.KeyEnter, Mods: mod}); step.Request != nil {
			t.Fatalf("expected modified enter to be ignored")
		}
	}
	s.HandleKey(schema.KeyEvent{Code: schema.KeyRune, Rune: 'A', Mods: schema.ModShift})
	s.HandleKey(schema.KeyEvent{Code: schema.KeyTab})
	if s.Text() != "A" {
		t.Fatalf("expected only shifted rune inserted, got %q", s.Text())
	}
}

func TestSessionHistoryNavigationReplacesBuffer(t *testing.T) {
	s := NewSession(SessionConfig{}, NewHistoryLedger([]string{"a", "b"}))
	typeText(t, s, "draft")
	s.HandleKey(schema.KeyEvent{Code: schema.KeyUp})
	if s.Text() != "b" {
		t.Fatalf("expected b, got %q", s.Text())
	}
	s.HandleKey(schema.KeyEvent{Code: schema.KeyUp})
	s.HandleKey(schema.KeyEvent{Code: schema.KeyUp})
	if s.Text() != "a" {
		t.Fatalf("expected a at earliest entry, got %q", s.Text())
	}
	s.HandleKey(schema.KeyEvent{Code: schema.KeyDown})
	s.HandleKey(schema.KeyEvent{Code: schema.KeyDown})
	if s.Text() != "b" || s.Cursor() != 1 {
		t.Fatalf("expected sticky newest entry b, got %q cursor %d", s.Text(), s.Cursor())
	}
}

func TestSessionBlankSubmitSendsNothing(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "   ")
	step := enter(s)
	if step.Request != nil || s.Pending() {
		t.Fatalf("expected blank submit to stay local")
	}
	if s.Text() != "" || s.History().Len() != 0 {
		t.Fatalf("expected cleared buffer and untouched history")
	}
}

func TestSessionStartResponseResubmitsOnce(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "x = 1")
	enter(s)
	step := s.Deliver(Result{Response: schema.Response{Mode: schema.ModeStart}})
	if step.Request == nil || *step.Request != (schema.Request{Mode: schema.ModeStart, Input: "x = 1"}) {
		t.Fatalf("expected the same line to be resubmitted, got %+v", step.Request)
	}
	if len(step.Recorded) != 0 || s.History().Len() != 1 {
		t.Fatalf("expected no duplicate history entry, got %v", s.History().Entries())
	}
	if !s.Pending() {
		t.Fatalf("expected resubmission to be pending")
	}

	step = s.Deliver(Result{Response: schema.Response{Mode: schema.ModeStart}})
	if step.Request != nil {
		t.Fatalf("expected restart loop to be bounded")
	}
	if !strings.Contains(opsText(step.Ops), "restarting") {
		t.Fatalf("expected restart error line, got %q", opsText(step.Ops))
	}
	if s.Pending() || s.State() != StateAwaitingCommand || s.Text() != "" {
		t.Fatalf("expected recovered session")
	}
}

func TestSessionStartResponseRecordsMissingEntry(t *testing.T) {
	s := NewSession(SessionConfig{MaxResets: 2}, nil)
	typeText(t, s, "a")
	enter(s)
	s.History().Append("other")
	step := s.Deliver(Result{Response: schema.Response{Mode: schema.ModeStart}})
	if diff := cmp.Diff([]string{"a"}, step.Recorded); diff != "" {
		t.Fatalf("unexpected recorded (-want +got):\n%s", diff)
	}
	if s.History().Position() != s.History().Len() {
		t.Fatalf("expected history rewound")
	}
}

func TestSessionTransportFailureRecovers(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "1 + (")
	enter(s)
	s.Deliver(Result{Response: schema.Response{Mode: schema.ModeContinuation, Indent: 2}})
	enter(s)
	enter(s)
	if !s.Pending() {
		t.Fatalf("expected pending continuation request")
	}
	step := s.Deliver(Result{Err: NewEvalError(EvalErrorUnavailable, "evaluate", errors.New("connection refused"))})
	if s.Pending() {
		t.Fatalf("expected pending flag cleared")
	}
	if s.State() != StateAwaitingCommand || s.Text() != "" {
		t.Fatalf("expected awaiting command with empty buffer, got %s %q", s.State(), s.Text())
	}
	if step.Ops[0].Text != DefaultPalette.Error || !strings.Contains(opsText(step.Ops), "connection refused") {
		t.Fatalf("expected visible error line, got %+v", step.Ops)
	}
}

func TestSessionUnknownModeIsMalformed(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "1")
	enter(s)
	step := s.Deliver(Result{Response: schema.Response{Mode: "later"}})
	if !strings.Contains(opsText(step.Ops), "malformed") {
		t.Fatalf("expected malformed error, got %q", opsText(step.Ops))
	}
	if s.Pending() {
		t.Fatalf("expected pending cleared")
	}
}

func TestSessionDeliverWithoutPendingIsIgnored(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "abc")
	step := s.Deliver(Result{Response: schema.Response{Mode: schema.ModeComplete, Output: "late"}})
	if len(step.Ops) != 0 || s.Text() != "abc" {
		t.Fatalf("expected stale result to be ignored")
	}
}

func TestSessionAbandonLeavesContinuation(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "(")
	enter(s)
	s.Deliver(Result{Response: schema.Response{Mode: schema.ModeContinuation, Indent: 2}})
	s.Abandon()
	if s.State() != StateAwaitingCommand || s.Text() != "" {
		t.Fatalf("expected abandon to reset session")
	}
}

func TestSessionWithClientRoundTrip(t *testing.T) {
	eval := EvaluatorFunc(func(ctx context.Context, req schema.Request) (schema.Response, error) {
		return schema.Response{Mode: schema.ModeComplete, Output: strings.ToUpper(req.Input)}, nil
	})
	client := NewClient(eval, 0)
	s := NewSession(SessionConfig{}, nil)
	typeText(t, s, "hi")
	step := enter(s)
	resp, err := client.Call(context.Background(), *step.Request)
	step = s.Deliver(Result{Request: *step.Request, Response: resp, Err: err})
	if !strings.Contains(opsText(step.Ops), "HI\n") {
		t.Fatalf("expected evaluator output, got %q", opsText(step.Ops))
	}
}
