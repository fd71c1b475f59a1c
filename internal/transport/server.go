package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/consensus"
)

// #region server
// Server exposes a consensus node to remote peers.
type Server struct {
	node *consensus.Node
}

// NewServer wraps a node for registration on a grpc.Server.
func NewServer(n *consensus.Node) *Server {
	return &Server{node: n}
}

// Register attaches the peer service to g.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}
// #endregion server

// #region receive-block
// ReceiveBlock feeds a delivered block into the node. Blocks whose content
// does not match their hash never reach validation.
func (s *Server) ReceiveBlock(_ context.Context, req *ReceiveBlockRequest) (*ReceiveBlockResponse, error) {
	if req.Block == nil {
		return nil, status.Error(codes.InvalidArgument, "missing block")
	}
	if !req.Block.Verify() {
		return nil, status.Errorf(codes.InvalidArgument, "block %s fails hash verification", req.Block.Hash)
	}
	return &ReceiveBlockResponse{Accepted: s.node.ReceiveBlock(req.Block)}, nil
}
// #endregion receive-block

// #region recent-blocks
// GetRecentBlocks serves a sync request from the node's ledger.
func (s *Server) GetRecentBlocks(_ context.Context, req *RecentBlocksRequest) (*RecentBlocksResponse, error) {
	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return &RecentBlocksResponse{Blocks: s.node.GetRecentBlocks(limit)}, nil
}
// #endregion recent-blocks
