package core

import "testing"

func TestEditBufferTypingAppendsInOrder(t *testing.T) {
	b := &EditBuffer{}
	typed := "let x = [1, 2]; // ok ✓"
	for _, r := range typed {
		b.InsertRune(r)
	}
	if b.Text() != typed {
		t.Fatalf("expected %q, got %q", typed, b.Text())
	}
	if b.Cursor() != len([]rune(typed)) {
		t.Fatalf("expected cursor %d, got %d", len([]rune(typed)), b.Cursor())
	}
}

func TestEditBufferBackspaceAtStartIsNoop(t *testing.T) {
	b := NewEditBuffer("abc")
	b.MoveStart()
	b.DeleteBackward()
	if b.Text() != "abc" || b.Cursor() != 0 {
		t.Fatalf("expected unchanged buffer, got %q cursor %d", b.Text(), b.Cursor())
	}
	empty := &EditBuffer{}
	empty.DeleteBackward()
	if empty.Text() != "" || empty.Cursor() != 0 {
		t.Fatalf("expected empty buffer to stay empty")
	}
}

func TestEditBufferCursorClamps(t *testing.T) {
	b := NewEditBuffer("ab")
	b.MoveRight()
	if b.Cursor() != 2 {
		t.Fatalf("expected cursor clamped at 2, got %d", b.Cursor())
	}
	b.MoveLeft()
	b.MoveLeft()
	b.MoveLeft()
	if b.Cursor() != 0 {
		t.Fatalf("expected cursor clamped at 0, got %d", b.Cursor())
	}
}

func TestEditBufferInsertInMiddle(t *testing.T) {
	b := NewEditBuffer("ac")
	b.MoveLeft()
	b.InsertRune('b')
	if b.Text() != "abc" || b.Cursor() != 2 {
		t.Fatalf("expected abc cursor 2, got %q cursor %d", b.Text(), b.Cursor())
	}
	b.Insert("xy")
	if b.Text() != "abxyc" || b.Cursor() != 4 {
		t.Fatalf("expected abxyc cursor 4, got %q cursor %d", b.Text(), b.Cursor())
	}
	b.DeleteForward()
	if b.Text() != "abxy" {
		t.Fatalf("expected delete forward to drop c, got %q", b.Text())
	}
	b.DeleteForward()
	if b.Text() != "abxy" {
		t.Fatalf("expected delete forward at end to be a no-op, got %q", b.Text())
	}
}

func TestEditBufferSetText(t *testing.T) {
	b := NewEditBuffer("old")
	b.SetText("    ")
	if b.Text() != "    " || b.Cursor() != 4 {
		t.Fatalf("expected four spaces cursor 4, got %q cursor %d", b.Text(), b.Cursor())
	}
	b.SetText("")
	if !b.Empty() || b.Cursor() != 0 {
		t.Fatalf("expected cleared buffer")
	}
}

func TestEditBufferNewlineAndCurrentLine(t *testing.T) {
	b := NewEditBuffer("    ")
	b.AppendNewlineAtCursor()
	if b.Text() != "    \n" || b.Cursor() != 5 {
		t.Fatalf("expected newline appended, got %q cursor %d", b.Text(), b.Cursor())
	}
	if !b.HasLineBreak() || b.OnFirstLine() {
		t.Fatalf("expected cursor on second line")
	}
	b.Insert("x)")
	line, col := b.CurrentLine()
	if line != "x)" || col != 2 {
		t.Fatalf("expected current line x) col 2, got %q col %d", line, col)
	}
	b.MoveStart()
	if b.Cursor() != 5 {
		t.Fatalf("expected home to stop at line start, got %d", b.Cursor())
	}
	b.MoveLeft()
	b.MoveStart()
	if b.Cursor() != 0 {
		t.Fatalf("expected home on first line to reach 0, got %d", b.Cursor())
	}
	b.MoveEnd()
	if b.Cursor() != 4 {
		t.Fatalf("expected end to stop before line break, got %d", b.Cursor())
	}
}
