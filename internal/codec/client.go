package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/profile"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/wire"
)

// #region invoker
// invoker is the slice of grpc.ClientConn the client needs. Tests inject a
// fake; production passes the real connection.
type invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}
// #endregion invoker

// #region client
// Client speaks to an external codec service over gRPC. It satisfies Codec,
// so a ledger cannot tell it apart from the in-process IntervalCodec.
type Client struct {
	conn *grpc.ClientConn
	rpc  invoker
}

// NewClient connects to the codec service at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, rpc: conn}, nil
}

// NewClientWithInvoker creates a Client with an injected transport.
// Used for testing without a real gRPC connection.
func NewClientWithInvoker(rpc invoker) *Client {
	return &Client{rpc: rpc}
}

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion client

// #region encode
// Encode sends the profile to the remote codec.
func (c *Client) Encode(ctx context.Context, p profile.Profile, timeWindow float64) ([]byte, error) {
	var resp EncodeResponse
	err := c.rpc.Invoke(ctx, encodeMethod, &EncodeRequest{Profile: p, TimeWindow: timeWindow}, &resp, wire.CallOption())
	if err != nil {
		return nil, fmt.Errorf("encode rpc: %w", err)
	}
	return resp.Scan, nil
}
// #endregion encode

// #region decode
// Decode reinterprets a scan via the remote codec.
func (c *Client) Decode(ctx context.Context, scan []byte, timeWindow float64) (profile.Ranges, error) {
	var resp DecodeResponse
	err := c.rpc.Invoke(ctx, decodeMethod, &DecodeRequest{Scan: scan, TimeWindow: timeWindow}, &resp, wire.CallOption())
	if err != nil {
		return profile.Ranges{}, fmt.Errorf("decode rpc: %w", err)
	}
	return resp.Ranges, nil
}
// #endregion decode
