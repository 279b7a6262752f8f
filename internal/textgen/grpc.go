package textgen

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region constants
// GenerateMethod is the full gRPC method name of the remote generator.
// Requests and replies are google.protobuf.Struct messages.
const GenerateMethod = "/ideaforge.textgen.v1.TextGeneration/Generate"

// #endregion constants

// #region client-struct
// GRPCService wraps a gRPC connection to a remote text-generation backend.
type GRPCService struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewGRPCService connects to the generation backend at addr.
func NewGRPCService(addr string) (*GRPCService, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCService{conn: conn, cc: conn}, nil
}

// NewGRPCServiceWithConn creates a GRPCService over an injected connection.
// Used for testing without a real server.
func NewGRPCServiceWithConn(cc grpc.ClientConnInterface) *GRPCService {
	return &GRPCService{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if this service owns one.
func (g *GRPCService) Close() error {
	if g.conn == nil {
		return nil
	}
	return g.conn.Close()
}

// #endregion close

// #region generate
// Generate sends {role, input, constraints} and reads {output, ok}.
func (g *GRPCService) Generate(ctx context.Context, req Request) (Response, error) {
	input, err := normalize(req.Input)
	if err != nil {
		return Response{}, err
	}
	constraints, err := normalize(req.Constraints)
	if err != nil {
		return Response{}, err
	}
	msg, err := structpb.NewStruct(map[string]any{
		"role":        string(req.Role),
		"input":       input,
		"constraints": constraints,
	})
	if err != nil {
		return Response{}, fmt.Errorf("generate request: %w", err)
	}

	reply := &structpb.Struct{}
	if err := g.cc.Invoke(ctx, GenerateMethod, msg, reply); err != nil {
		return Response{}, fmt.Errorf("generate rpc: %w", err)
	}

	fields := reply.GetFields()
	return Response{
		Output: fields["output"].GetStringValue(),
		OK:     fields["ok"].GetBoolValue(),
	}, nil
}

// #endregion generate
