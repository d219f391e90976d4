package evalrpc

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"pkt.systems/replee/schema"
)

const (
	fieldMode   = "mode"
	fieldInput  = "input"
	fieldOutput = "output"
	fieldIndent = "indent"
	fieldIsErr  = "isErr"
)

func requestToStruct(req schema.Request) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldMode:   string(req.Mode),
		fieldInput:  req.Input,
		fieldIndent: req.Indent,
	})
}

func requestFromStruct(in *structpb.Struct) (schema.Request, error) {
	fields := in.GetFields()
	mode, err := modeField(fields)
	if err != nil {
		return schema.Request{}, err
	}
	indent, err := intField(fields, fieldIndent)
	if err != nil {
		return schema.Request{}, err
	}
	req := schema.Request{
		Mode:   mode,
		Input:  fields[fieldInput].GetStringValue(),
		Indent: indent,
	}
	return req, req.Validate()
}

func responseToStruct(resp schema.Response) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldMode:   string(resp.Mode),
		fieldOutput: resp.Output,
		fieldIndent: resp.Indent,
		fieldIsErr:  resp.IsErr,
	})
}

func responseFromStruct(out *structpb.Struct) (schema.Response, error) {
	fields := out.GetFields()
	mode, err := modeField(fields)
	if err != nil {
		return schema.Response{}, err
	}
	indent, err := intField(fields, fieldIndent)
	if err != nil {
		return schema.Response{}, err
	}
	resp := schema.Response{
		Mode:   mode,
		Output: fields[fieldOutput].GetStringValue(),
		Indent: indent,
		IsErr:  fields[fieldIsErr].GetBoolValue(),
	}
	return resp, resp.Validate()
}

func modeField(fields map[string]*structpb.Value) (schema.Mode, error) {
	value, ok := fields[fieldMode]
	if !ok {
		return "", fmt.Errorf("missing %s", fieldMode)
	}
	raw, ok := value.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%s must be a string", fieldMode)
	}
	return schema.ParseMode(raw.StringValue)
}

func intField(fields map[string]*structpb.Value, name string) (int, error) {
	value, ok := fields[name]
	if !ok {
		return 0, nil
	}
	raw, ok := value.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	n := raw.NumberValue
	if n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return int(n), nil
}
