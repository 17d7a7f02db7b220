package codec

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/gurkebaui/sun/internal/memory"
	"github.com/gurkebaui/sun/internal/modulation"
	"github.com/gurkebaui/sun/internal/perception"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region methods
// Service is the fully qualified name of the cognition sidecar service.
// Every message on the wire is a google.protobuf.Struct, so the sidecar can
// be written in any language without shared generated code.
const Service = "sun.cognition.v1.Cognition"

const (
	MethodGenerate     = "/" + Service + "/Generate"
	MethodAddMemory    = "/" + Service + "/AddMemory"
	MethodQueryMemory  = "/" + Service + "/QueryMemory"
	MethodLatestMemory = "/" + Service + "/LatestMemory"
	MethodCountMemory  = "/" + Service + "/CountMemory"
	MethodPerceive     = "/" + Service + "/Perceive"
)

// #endregion methods

// #region client-struct
// invoker is satisfied by *grpc.ClientConn.
type invoker interface {
	Invoke(ctx context.Context, method string, args any, reply any, opts ...grpc.CallOption) error
}

// Client wraps the gRPC connection to the cognition sidecar. It serves as
// the agent's inference backend, memory store and perception source.
type Client struct {
	conn   *grpc.ClientConn
	inv    invoker
	closed atomic.Bool
}

// #endregion client-struct

// #region constructor
// NewClient connects to the sidecar at addr. The connection is lazy; the
// first RPC dials.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, inv: conn}, nil
}

// NewClientWithInvoker creates a Client over an injected transport.
// Used for testing without a real gRPC connection.
func NewClientWithInvoker(inv invoker) *Client {
	return &Client{inv: inv}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.closed.Swap(true) || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

func (c *Client) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	if c.closed.Load() {
		return nil, memory.ErrClosed
	}
	in, err := toStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := &structpb.Struct{}
	if err := c.inv.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// toStruct encodes req as a Struct. structpb only takes []any and
// map[string]any for nested values, so typed slices and maps in metadata are
// flattened through JSON first.
func toStruct(req map[string]any) (*structpb.Struct, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var plain map[string]any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, err
	}
	return structpb.NewStruct(plain)
}

// #region generate
// Generate runs one completion with the mood-derived hyperparameters. The
// sidecar receives skip rate and attention gain alongside temperature.
func (c *Client) Generate(ctx context.Context, prompt string, p modulation.Params) (string, error) {
	resp, err := c.call(ctx, MethodGenerate, map[string]any{
		"prompt":         prompt,
		"temperature":    modulation.ClampTemperature(p.Temperature),
		"skip_rate":      p.SkipRate,
		"attention_gain": p.AttentionGain,
	})
	if err != nil {
		return "", fmt.Errorf("generate rpc: %w", err)
	}
	return resp.GetFields()["text"].GetStringValue(), nil
}

// Name identifies the backend in logs.
func (c *Client) Name() string { return "sidecar" }

// #endregion generate

// #region memory
// Add stores a memory in the sidecar's store.
func (c *Client) Add(ctx context.Context, text string, metadata map[string]any) error {
	req := map[string]any{"text": text}
	if metadata != nil {
		req["metadata"] = metadata
	}
	if _, err := c.call(ctx, MethodAddMemory, req); err != nil {
		return fmt.Errorf("add memory rpc: %w", err)
	}
	return nil
}

// Query asks the sidecar for the k most relevant memories.
func (c *Client) Query(ctx context.Context, text string, k int) ([]memory.Record, error) {
	resp, err := c.call(ctx, MethodQueryMemory, map[string]any{"text": text, "k": k})
	if err != nil {
		return nil, fmt.Errorf("query memory rpc: %w", err)
	}
	return decodeRecords(resp), nil
}

// Latest returns the k newest memories, oldest first.
func (c *Client) Latest(ctx context.Context, k int) ([]memory.Record, error) {
	resp, err := c.call(ctx, MethodLatestMemory, map[string]any{"k": k})
	if err != nil {
		return nil, fmt.Errorf("latest memory rpc: %w", err)
	}
	return decodeRecords(resp), nil
}

// Count returns the number of memories in the sidecar's store.
func (c *Client) Count(ctx context.Context) (int, error) {
	resp, err := c.call(ctx, MethodCountMemory, map[string]any{})
	if err != nil {
		return 0, fmt.Errorf("count memory rpc: %w", err)
	}
	return int(resp.GetFields()["count"].GetNumberValue()), nil
}

func decodeRecords(resp *structpb.Struct) []memory.Record {
	values := resp.GetFields()["results"].GetListValue().GetValues()
	records := make([]memory.Record, 0, len(values))
	for _, v := range values {
		f := v.GetStructValue().GetFields()
		rec := memory.Record{
			ID:    f["id"].GetStringValue(),
			Text:  f["text"].GetStringValue(),
			Score: f["score"].GetNumberValue(),
		}
		if m := f["metadata"].GetStructValue(); m != nil {
			rec.Metadata = m.AsMap()
		}
		if ts := f["created_at"].GetStringValue(); ts != "" {
			rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		}
		records = append(records, rec)
	}
	return records
}

// #endregion memory

// #region perceive
// Perceive fetches one sensory report from the sidecar.
func (c *Client) Perceive(ctx context.Context) (perception.Report, error) {
	resp, err := c.call(ctx, MethodPerceive, map[string]any{})
	if err != nil {
		return perception.Report{}, fmt.Errorf("perceive rpc: %w", err)
	}
	f := resp.GetFields()
	return perception.Report{
		Vision: f["vision"].GetStringValue(),
		Sound:  f["sound"].GetStringValue(),
		Speech: f["speech"].GetStringValue(),
	}, nil
}

// #endregion perceive
