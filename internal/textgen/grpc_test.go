package textgen

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region mock
type fakeConn struct {
	method string
	sent   *structpb.Struct
	reply  map[string]any
	err    error
}

func (f *fakeConn) Invoke(_ context.Context, method string, args any, reply any, _ ...grpc.CallOption) error {
	f.method = method
	f.sent = args.(*structpb.Struct)
	if f.err != nil {
		return f.err
	}
	r, err := structpb.NewStruct(f.reply)
	if err != nil {
		return err
	}
	proto.Merge(reply.(*structpb.Struct), r)
	return nil
}

func (f *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("not supported")
}

// #endregion mock

// #region generate-tests
func TestGRPCGenerate_Success(t *testing.T) {
	conn := &fakeConn{reply: map[string]any{"output": `{"tone":"bleak"}`, "ok": true}}
	svc := NewGRPCServiceWithConn(conn)

	resp, err := svc.Generate(context.Background(), Request{
		Role:        RoleGenreVibe,
		Input:       map[string]any{"genre": "Cyberpunk", "themes": []string{"memory", "debt"}, "count": 3},
		Constraints: map[string]any{"themes": "2-5"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.OK || resp.Output != `{"tone":"bleak"}` {
		t.Errorf("unexpected response: %+v", resp)
	}
	if conn.method != GenerateMethod {
		t.Errorf("method: got %q", conn.method)
	}
	fields := conn.sent.GetFields()
	if fields["role"].GetStringValue() != "genre_vibe" {
		t.Errorf("role: got %q", fields["role"].GetStringValue())
	}
	input := fields["input"].GetStructValue().GetFields()
	if input["genre"].GetStringValue() != "Cyberpunk" {
		t.Errorf("genre: got %v", input["genre"])
	}
	if n := len(input["themes"].GetListValue().GetValues()); n != 2 {
		t.Errorf("themes: got %d values", n)
	}
	if input["count"].GetNumberValue() != 3 {
		t.Errorf("count: got %v", input["count"])
	}
}

func TestGRPCGenerate_NotOK(t *testing.T) {
	svc := NewGRPCServiceWithConn(&fakeConn{reply: map[string]any{"ok": false}})
	resp, err := svc.Generate(context.Background(), Request{Role: RoleCritic})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.OK {
		t.Error("expected OK=false")
	}
}

func TestGRPCGenerate_Error(t *testing.T) {
	svc := NewGRPCServiceWithConn(&fakeConn{err: errors.New("unavailable")})
	_, err := svc.Generate(context.Background(), Request{Role: RoleCritic})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGRPCClose_NoConn(t *testing.T) {
	svc := NewGRPCServiceWithConn(&fakeConn{})
	if err := svc.Close(); err != nil {
		t.Errorf("Close on injected conn: %v", err)
	}
}

func TestNewGRPCService_LazyDial(t *testing.T) {
	svc, err := NewGRPCService("localhost:0")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer svc.Close()
}

// #endregion generate-tests
