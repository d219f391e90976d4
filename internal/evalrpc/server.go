package evalrpc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"pkt.systems/pslog"
	"pkt.systems/replee/core"
	"pkt.systems/replee/schema"
)

// Config configures the evaluator server.
type Config struct {
	// Address is a unix socket path (optionally unix:// prefixed) or a TCP
	// host:port.
	Address string
}

// Server exposes a core.Evaluator over gRPC.
type Server struct {
	cfg       Config
	evaluator core.Evaluator
	logger    pslog.Logger
}

// NewServer constructs a server for evaluator.
func NewServer(cfg Config, evaluator core.Evaluator) *Server {
	return &Server{cfg: cfg, evaluator: evaluator}
}

// ListenAndServe listens on the configured address and serves until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	network, addr, err := splitAddress(s.cfg.Address)
	if err != nil {
		return err
	}
	if network == "unix" {
		if err := os.MkdirAll(filepath.Dir(addr), 0o755); err != nil {
			return err
		}
		_ = os.Remove(addr)
	}
	listener, err := net.Listen(network, addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.evaluator == nil {
		return errors.New("evaluator is required")
	}
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(s.logInterceptor))
	grpcServer.RegisterService(&serviceDesc, s)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("evaluator grpc listening", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		s.logger.Info("evaluator grpc stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// Evaluate implements the Evaluate RPC.
func (s *Server) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := requestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := s.evaluator.Evaluate(ctx, req)
	if err != nil {
		return nil, statusFromError(err)
	}
	out, err := responseToStruct(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	log := s.log(ctx).With("method", info.FullMethod)
	ctx = pslog.ContextWithLogger(ctx, log)
	log.Trace("evaluator grpc request")
	resp, err := handler(ctx, req)
	if err != nil {
		logGRPCError(log, "evaluator grpc request failed", err)
		return resp, err
	}
	log.Debug("evaluator grpc request done", "elapsed", time.Since(start))
	return resp, nil
}

func (s *Server) log(ctx context.Context) pslog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return pslog.Ctx(ctx)
}

func statusFromError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, schema.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
