package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/block"
)

// #region messages
// ReceiveBlockRequest delivers one block to a peer.
type ReceiveBlockRequest struct {
	Block *block.Block `json:"block"`
}

// ReceiveBlockResponse reports whether the peer accepted the block.
// false means the peer parked it as pending, not that delivery failed.
type ReceiveBlockResponse struct {
	Accepted bool `json:"accepted"`
}

// RecentBlocksRequest asks a peer for its most recent blocks.
type RecentBlocksRequest struct {
	Limit int `json:"limit"`
}

// RecentBlocksResponse carries the peer's blocks, most recent first.
type RecentBlocksResponse struct {
	Blocks []*block.Block `json:"blocks"`
}
// #endregion messages

// #region service-desc
const (
	serviceName        = "agentledger.Peer"
	receiveBlockMethod = "/agentledger.Peer/ReceiveBlock"
	recentBlocksMethod = "/agentledger.Peer/GetRecentBlocks"
)

// peerService is the server-side contract behind the ServiceDesc.
type peerService interface {
	ReceiveBlock(context.Context, *ReceiveBlockRequest) (*ReceiveBlockResponse, error)
	GetRecentBlocks(context.Context, *RecentBlocksRequest) (*RecentBlocksResponse, error)
}

// serviceDesc registers the peer service by hand. Messages travel as the
// JSON content-subtype from internal/wire, so no generated bindings are
// involved; this table is the whole wire contract.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*peerService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReceiveBlock", Handler: receiveBlockHandler},
		{MethodName: "GetRecentBlocks", Handler: recentBlocksHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agentledger/peer",
}

func receiveBlockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReceiveBlockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(peerService).ReceiveBlock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: receiveBlockMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(peerService).ReceiveBlock(ctx, req.(*ReceiveBlockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func recentBlocksHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RecentBlocksRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(peerService).GetRecentBlocks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: recentBlocksMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(peerService).GetRecentBlocks(ctx, req.(*RecentBlocksRequest))
	}
	return interceptor(ctx, in, info, handler)
}
// #endregion service-desc
