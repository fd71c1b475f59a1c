package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/block"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/wire"
)

// #region client
// Client is a remote peer reached over gRPC. It implements consensus.Peer.
type Client struct {
	id   string
	conn *grpc.ClientConn
}

// Dial connects to the peer at addr. An empty id falls back to the address
// so delivery reports stay attributable.
func Dial(id, addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	if id == "" {
		id = addr
	}
	return &Client{id: id, conn: conn}, nil
}

// NewClientWithConn wraps an existing connection. Used by tests.
func NewClientWithConn(id string, conn *grpc.ClientConn) *Client {
	return &Client{id: id, conn: conn}
}

// ID returns the peer's identity.
func (c *Client) ID() string { return c.id }

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
// #endregion client

// #region peer-calls
// ReceiveBlock delivers one block to the remote node.
func (c *Client) ReceiveBlock(ctx context.Context, b *block.Block) (bool, error) {
	var resp ReceiveBlockResponse
	err := c.conn.Invoke(ctx, receiveBlockMethod, &ReceiveBlockRequest{Block: b}, &resp, wire.CallOption())
	if err != nil {
		return false, fmt.Errorf("receive block rpc to %s: %w", c.id, err)
	}
	return resp.Accepted, nil
}

// GetRecentBlocks pulls the remote node's most recent blocks.
func (c *Client) GetRecentBlocks(ctx context.Context, limit int) ([]*block.Block, error) {
	var resp RecentBlocksResponse
	err := c.conn.Invoke(ctx, recentBlocksMethod, &RecentBlocksRequest{Limit: limit}, &resp, wire.CallOption())
	if err != nil {
		return nil, fmt.Errorf("recent blocks rpc to %s: %w", c.id, err)
	}
	return resp.Blocks, nil
}
// #endregion peer-calls
