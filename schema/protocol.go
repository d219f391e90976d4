package schema

import "fmt"

// Mode is the protocol mode carried by requests and responses.
type Mode string

const (
	// ModeStart begins a fresh logical input. As a response it asks the
	// client to resubmit the line from scratch.
	ModeStart Mode = "start"
	// ModeContinuation marks input that spans more than one physical line.
	// As a response it means the evaluator needs more input.
	ModeContinuation Mode = "continuation"
	// ModeComplete reports that the input was evaluated.
	ModeComplete Mode = "complete"
)

// Request is sent from the console to the evaluator.
type Request struct {
	Mode   Mode   `json:"mode"`
	Input  string `json:"input"`
	Indent int    `json:"indent"`
}

// Response is returned by the evaluator.
type Response struct {
	Mode   Mode   `json:"mode"`
	Output string `json:"output"`
	Indent int    `json:"indent"`
	IsErr  bool   `json:"isErr"`
}

// Validate checks that the request carries a sendable mode.
func (r Request) Validate() error {
	switch r.Mode {
	case ModeStart, ModeContinuation:
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidRequest, ErrUnknownMode, r.Mode)
	}
	if r.Indent < 0 {
		return fmt.Errorf("%w: negative indent %d", ErrInvalidRequest, r.Indent)
	}
	return nil
}

// Validate checks that the response can be interpreted by the console.
func (r Response) Validate() error {
	switch r.Mode {
	case ModeStart, ModeContinuation, ModeComplete:
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidResponse, ErrUnknownMode, r.Mode)
	}
	if r.Indent < 0 {
		return fmt.Errorf("%w: negative indent %d", ErrInvalidResponse, r.Indent)
	}
	return nil
}
