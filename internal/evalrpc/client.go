package evalrpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"pkt.systems/pslog"
	"pkt.systems/replee/core"
	"pkt.systems/replee/schema"
)

// Client implements core.Evaluator over gRPC.
type Client struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// Dial creates a client for the evaluator at address. The connection is
// established lazily on the first call.
func Dial(ctx context.Context, address string) (*Client, error) {
	network, addr, err := splitAddress(address)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dialer := func(ctx context.Context, target string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, target)
	}
	conn, err := grpc.NewClient(
		"passthrough:///"+addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
	)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Close closes the underlying gRPC connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Evaluate sends req to the remote evaluator.
func (c *Client) Evaluate(ctx context.Context, req schema.Request) (schema.Response, error) {
	if c.conn == nil {
		return schema.Response{}, core.NewEvalError(core.EvalErrorUnavailable, "evaluate", errors.New("evaluator client not initialized"))
	}
	log := pslog.Ctx(ctx)
	in, err := requestToStruct(req)
	if err != nil {
		return schema.Response{}, core.NewEvalError(core.EvalErrorMalformed, "evaluate", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, evaluateMethod, in, out); err != nil {
		logGRPCError(log, "evaluator grpc call failed", err)
		return schema.Response{}, wrapEvalError("evaluate", err)
	}
	resp, err := responseFromStruct(out)
	if err != nil {
		return schema.Response{}, core.NewEvalError(core.EvalErrorMalformed, "evaluate", err)
	}
	log.Trace("evaluator grpc response", "response_mode", resp.Mode, "is_err", resp.IsErr)
	return resp, nil
}

// Ping checks the health of the evaluator service.
func (c *Client) Ping(ctx context.Context) error {
	if c.health == nil {
		return errors.New("evaluator client not initialized")
	}
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return wrapEvalError("ping", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return core.NewEvalError(core.EvalErrorUnavailable, "ping", fmt.Errorf("evaluator status %s", resp.GetStatus()))
	}
	return nil
}

func logGRPCError(log pslog.Logger, msg string, err error) {
	if log == nil || err == nil {
		return
	}
	if st, ok := status.FromError(err); ok {
		log.Warn(msg, "err", err, "code", st.Code().String(), "message", st.Message())
		return
	}
	log.Warn(msg, "err", err)
}

func wrapEvalError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *core.EvalError
	if errors.As(err, &existing) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return core.NewEvalError(core.EvalErrorCanceled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewEvalError(core.EvalErrorTimeout, op, err)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable:
			return core.NewEvalError(core.EvalErrorUnavailable, op, err)
		case codes.DeadlineExceeded:
			return core.NewEvalError(core.EvalErrorTimeout, op, err)
		case codes.Canceled:
			return core.NewEvalError(core.EvalErrorCanceled, op, err)
		case codes.InvalidArgument:
			return core.NewEvalError(core.EvalErrorMalformed, op, err)
		case codes.Internal:
			return core.NewEvalError(core.EvalErrorInternal, op, err)
		default:
			return core.NewEvalError(core.EvalErrorUnknown, op, err)
		}
	}
	return core.NewEvalError(core.EvalErrorUnknown, op, err)
}
