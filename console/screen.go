package console

import (
	"fmt"
	"io"
)

// screen is an ANSI terminal surface. Lines end in CRLF so output stays
// aligned when the terminal is in raw mode.
type screen struct {
	out io.Writer
}

func newScreen(out io.Writer) *screen {
	return &screen{out: out}
}

func (s *screen) Write(text string) error {
	_, err := io.WriteString(s.out, text)
	return err
}

func (s *screen) WriteLine(text string) error {
	_, err := io.WriteString(s.out, text+"\r\n")
	return err
}

func (s *screen) MoveCursor(delta int) error {
	var err error
	switch {
	case delta < 0:
		_, err = fmt.Fprintf(s.out, "\x1b[%dD", -delta)
	case delta > 0:
		_, err = fmt.Fprintf(s.out, "\x1b[%dC", delta)
	}
	return err
}

func (s *screen) ClearScreen() error {
	_, err := io.WriteString(s.out, "\x1b[H\x1b[2J")
	return err
}

func (s *screen) ClearLine() error {
	_, err := io.WriteString(s.out, "\r\x1b[K")
	return err
}
