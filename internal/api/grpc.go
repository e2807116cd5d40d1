package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"siglab/internal/backtest"
	"siglab/internal/strategy"
)

// BacktestServiceName is the fully qualified gRPC service name.
const BacktestServiceName = "siglab.Backtest"

const (
	runMethod            = "/" + BacktestServiceName + "/Run"
	listStrategiesMethod = "/" + BacktestServiceName + "/ListStrategies"
)

// BacktestServiceServer is the server API for the siglab.Backtest service.
// Requests and responses carry the JSON shapes of the HTTP API as
// structpb.Struct messages.
type BacktestServiceServer interface {
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListStrategies(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterBacktestServiceServer registers srv on s.
func RegisterBacktestServiceServer(s grpc.ServiceRegistrar, srv BacktestServiceServer) {
	s.RegisterService(&backtestServiceDesc, srv)
}

var backtestServiceDesc = grpc.ServiceDesc{
	ServiceName: BacktestServiceName,
	HandlerType: (*BacktestServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
		{MethodName: "ListStrategies", Handler: listStrategiesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "siglab/backtest",
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestServiceServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: runMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestServiceServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listStrategiesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestServiceServer).ListStrategies(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listStrategiesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestServiceServer).ListStrategies(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ---------------------------------------------------------------------------
// Server implementation
// ---------------------------------------------------------------------------

// BacktestService implements BacktestServiceServer on top of a Runner.
type BacktestService struct {
	runner *backtest.Runner
	log    *slog.Logger
}

var _ BacktestServiceServer = (*BacktestService)(nil)

// NewBacktestService creates a BacktestService backed by runner.
func NewBacktestService(runner *backtest.Runner, log *slog.Logger) *BacktestService {
	if log == nil {
		log = slog.Default()
	}
	return &BacktestService{runner: runner, log: log}
}

// RegisterGRPC registers the service on the given gRPC server instance.
func (s *BacktestService) RegisterGRPC(gs *grpc.Server) {
	RegisterBacktestServiceServer(gs, s)
}

// Run decodes a BacktestRequest from in and runs it.
func (s *BacktestService) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body BacktestRequest
	if err := fromStruct(in, &body); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}
	if body.Symbol == "" {
		return nil, status.Error(codes.InvalidArgument, "symbol required")
	}
	req, err := body.toRequest()
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid date: %v", err)
	}
	rep, err := s.runner.Run(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	out, err := toStruct(toBacktestResponse(rep))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

// ListStrategies returns the registered strategy kinds and defaults.
func (s *BacktestService) ListStrategies(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := toStruct(StrategiesResponse{
		Strategies: s.runner.Registry().List(),
		Defaults:   strategy.DefaultParams(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

func grpcError(err error) error {
	switch statusFor(err) {
	case http.StatusBadRequest:
		return status.Error(codes.InvalidArgument, err.Error())
	case http.StatusNotFound:
		return status.Error(codes.NotFound, err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes s into v through its JSON encoding.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// GRPCClient calls the siglab.Backtest service.
type GRPCClient struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn // nil when built from an existing connection
}

// DialGRPC connects to the service at addr without transport security.
func DialGRPC(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &GRPCClient{cc: conn, conn: conn}, nil
}

// NewGRPCClient wraps an existing connection.
func NewGRPCClient(cc grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{cc: cc}
}

// Close closes the connection opened by DialGRPC.
func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Run runs a backtest on the server.
func (c *GRPCClient) Run(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, runMethod, in, out); err != nil {
		return nil, err
	}
	var resp BacktestResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}

// ListStrategies returns the strategies the server supports.
func (c *GRPCClient) ListStrategies(ctx context.Context) (*StrategiesResponse, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listStrategiesMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	var resp StrategiesResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}
