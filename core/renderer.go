package core

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// RenderOpKind names a surface operation.
type RenderOpKind int

const (
	OpClearLine RenderOpKind = iota
	OpWrite
	OpWriteLine
	OpMoveCursor
	OpClearScreen
)

func (k RenderOpKind) String() string {
	switch k {
	case OpClearLine:
		return "clear_line"
	case OpWrite:
		return "write"
	case OpWriteLine:
		return "write_line"
	case OpMoveCursor:
		return "move_cursor"
	case OpClearScreen:
		return "clear_screen"
	default:
		return "unknown"
	}
}

// RenderOp is one surface operation. Text is used by writes, Delta by cursor
// moves (negative moves left).
type RenderOp struct {
	Kind  RenderOpKind
	Text  string
	Delta int
}

// Palette holds the escape sequences used to tag evaluator output.
type Palette struct {
	Error  string
	Output string
	Reset  string
}

// DefaultPalette uses basic ANSI colors: red for errors, bright black for
// results.
var DefaultPalette = Palette{
	Error:  "\x1b[31m",
	Output: "\x1b[90m",
	Reset:  "\x1b[0m",
}

// RenderPrompt redraws the physical line holding the cursor and puts the
// cursor back at its column. Earlier lines of a multi-line buffer are
// already on screen and are left alone.
func RenderPrompt(label, text string, cursor int) []RenderOp {
	runes := []rune(text)
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(runes) {
		cursor = len(runes)
	}
	start := 0
	for i := cursor - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			start = i + 1
			break
		}
	}
	end := len(runes)
	for i := cursor; i < len(runes); i++ {
		if runes[i] == '\n' {
			end = i
			break
		}
	}
	line := string(runes[start:end])
	tail := string(runes[cursor:end])
	ops := []RenderOp{
		{Kind: OpClearLine},
		{Kind: OpWrite, Text: label + line},
	}
	if width := runewidth.StringWidth(tail); width > 0 {
		ops = append(ops, RenderOp{Kind: OpMoveCursor, Delta: -width})
	}
	return ops
}

// RenderCommit finalizes the visible line so following output starts below it.
func RenderCommit(label, line string) []RenderOp {
	return []RenderOp{
		{Kind: OpClearLine},
		{Kind: OpWriteLine, Text: label + line},
	}
}

// RenderClearScreen wipes the surface. Surfaces that cannot clear fall back
// to clearing the current line.
func RenderClearScreen() []RenderOp {
	return []RenderOp{{Kind: OpClearScreen}}
}

// RenderOutput writes each non-empty line of output wrapped in the error or
// output color. It returns nil when there is nothing to show.
func RenderOutput(output string, isErr bool, palette Palette) []RenderOp {
	lines := outputLines(output)
	if len(lines) == 0 {
		return nil
	}
	color := palette.Output
	if isErr {
		color = palette.Error
	}
	ops := make([]RenderOp, 0, len(lines)+2)
	ops = append(ops, RenderOp{Kind: OpWrite, Text: color})
	for _, line := range lines {
		ops = append(ops, RenderOp{Kind: OpWriteLine, Text: line})
	}
	ops = append(ops, RenderOp{Kind: OpWrite, Text: palette.Reset})
	return ops
}

func outputLines(output string) []string {
	if output == "" {
		return nil
	}
	raw := strings.Split(output, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Apply replays ops on the surface, stopping at the first error.
func Apply(surface Surface, ops []RenderOp) error {
	for _, op := range ops {
		var err error
		switch op.Kind {
		case OpClearLine:
			err = surface.ClearLine()
		case OpClearScreen:
			if clearer, ok := surface.(ScreenClearer); ok {
				err = clearer.ClearScreen()
			} else {
				err = surface.ClearLine()
			}
		case OpWrite:
			if op.Text == "" {
				continue
			}
			err = surface.Write(op.Text)
		case OpWriteLine:
			err = surface.WriteLine(op.Text)
		case OpMoveCursor:
			if op.Delta == 0 {
				continue
			}
			err = surface.MoveCursor(op.Delta)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
