// Package jsvm evaluates JavaScript input with an embedded goja runtime.
package jsvm

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"pkt.systems/pslog"
	"pkt.systems/replee/schema"
)

// DefaultIndentWidth is the number of spaces per unclosed bracket.
const DefaultIndentWidth = 2

const incompleteMarker = "Unexpected end of input"

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithIndentWidth sets the spaces suggested per nesting level.
func WithIndentWidth(width int) Option {
	return func(e *Evaluator) {
		if width > 0 {
			e.indentWidth = width
		}
	}
}

// WithGlobals defines values in every runtime the evaluator builds.
func WithGlobals(globals map[string]any) Option {
	return func(e *Evaluator) {
		for k, v := range globals {
			e.globals[k] = v
		}
	}
}

// Evaluator implements core.Evaluator on a goja runtime. Evaluations are
// serialized. An interrupted evaluation leaves the runtime stale; the next
// request rebuilds it and answers with a start response so the client
// resubmits against the fresh runtime.
type Evaluator struct {
	mu          sync.Mutex
	vm          *goja.Runtime
	out         *strings.Builder
	stale       bool
	indentWidth int
	globals     map[string]any
}

// New builds an evaluator with a fresh runtime.
func New(opts ...Option) (*Evaluator, error) {
	e := &Evaluator{
		indentWidth: DefaultIndentWidth,
		globals:     map[string]any{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.rebuild(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Evaluator) rebuild() error {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	out := &strings.Builder{}
	if err := installConsole(vm, out); err != nil {
		return err
	}
	for name, value := range e.globals {
		if err := vm.Set(name, value); err != nil {
			return err
		}
	}
	e.vm = vm
	e.out = out
	e.stale = false
	return nil
}

// Reset discards all runtime state.
func (e *Evaluator) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuild()
}

// Evaluate runs req.Input. The input of a continuation request is the whole
// accumulated source.
func (e *Evaluator) Evaluate(ctx context.Context, req schema.Request) (schema.Response, error) {
	if err := req.Validate(); err != nil {
		return schema.Response{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	log := pslog.Ctx(ctx)

	if e.stale {
		if err := e.rebuild(); err != nil {
			return schema.Response{}, err
		}
		log.Info("jsvm runtime rebuilt")
		return schema.Response{Mode: schema.ModeStart}, nil
	}
	if strings.TrimSpace(req.Input) == "" {
		return schema.Response{Mode: schema.ModeComplete, Indent: req.Indent}, nil
	}
	if err := ctx.Err(); err != nil {
		return schema.Response{}, err
	}

	vm := e.vm
	e.out.Reset()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	value, err := vm.RunString(req.Input)
	if !stop() {
		e.stale = true
	}
	logs := e.out.String()

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			e.stale = true
			log.Warn("jsvm evaluation interrupted", "err", err)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return schema.Response{}, ctxErr
			}
			return schema.Response{}, err
		}
		if isIncomplete(err) {
			log.Trace("jsvm input incomplete", "input_len", len(req.Input))
			return schema.Response{
				Mode:   schema.ModeContinuation,
				Output: logs,
				Indent: IndentFor(req.Input, e.indentWidth),
			}, nil
		}
		return schema.Response{
			Mode:   schema.ModeComplete,
			Output: joinOutput(logs, errorText(err)),
			IsErr:  true,
		}, nil
	}
	return schema.Response{
		Mode:   schema.ModeComplete,
		Output: joinOutput(logs, valueText(value)),
	}, nil
}

func isIncomplete(err error) bool {
	var exception *goja.Exception
	if errors.As(err, &exception) && exception.Value() != nil {
		if strings.Contains(exception.Value().String(), incompleteMarker) {
			return true
		}
	}
	return strings.Contains(err.Error(), incompleteMarker)
}

func errorText(err error) string {
	var exception *goja.Exception
	if errors.As(err, &exception) && exception.Value() != nil {
		return exception.Value().String()
	}
	return err.Error()
}

func valueText(value goja.Value) string {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return ""
	}
	return value.String()
}

func joinOutput(logs, result string) string {
	logs = strings.TrimRight(logs, "\n")
	switch {
	case logs == "":
		return result
	case result == "":
		return logs
	default:
		return logs + "\n" + result
	}
}

func installConsole(vm *goja.Runtime, out *strings.Builder) error {
	write := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		out.WriteString(strings.Join(parts, " "))
		out.WriteByte('\n')
		return goja.Undefined()
	}
	console := vm.NewObject()
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(name, write); err != nil {
			return err
		}
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}
	return vm.Set("print", write)
}

// IndentFor suggests the indent for the next line of src: width spaces per
// bracket left open, and at least one level.
func IndentFor(src string, width int) int {
	if width <= 0 {
		width = DefaultIndentWidth
	}
	depth := 0
	var quote rune
	escaped := false
	lineComment := false
	blockComment := false
	runes := []rune(src)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case lineComment:
			if r == '\n' {
				lineComment = false
			}
			continue
		case blockComment:
			if r == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				blockComment = false
				i++
			}
			continue
		case quote != 0:
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == quote {
				quote = 0
			}
			continue
		}
		switch r {
		case '\'', '"', '`':
			quote = r
		case '/':
			if i+1 < len(runes) && runes[i+1] == '/' {
				lineComment = true
				i++
			} else if i+1 < len(runes) && runes[i+1] == '*' {
				blockComment = true
				i++
			}
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			if depth > 0 {
				depth--
			}
		}
	}
	if depth < 1 {
		depth = 1
	}
	return depth * width
}
