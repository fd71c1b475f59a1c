package consensus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/block"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/ledger"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/profile"
)

// #region peer
// Peer is a remote node as seen from here. Implementations live in
// internal/transport; tests and single-process meshes use LocalPeer.
type Peer interface {
	ID() string
	ReceiveBlock(ctx context.Context, b *block.Block) (bool, error)
	GetRecentBlocks(ctx context.Context, limit int) ([]*block.Block, error)
}
// #endregion peer

// #region node
// Node validates and replicates blocks on top of a Ledger. All index
// mutation for remote blocks flows through ReceiveBlock; peer I/O never
// runs while node or ledger locks are held.
type Node struct {
	id     string
	ledger *ledger.Ledger

	// OnDecision, when set, observes every validation verdict. Used to
	// feed the acceptance provenance log. Called outside all locks.
	OnDecision func(Verdict)

	mu      sync.Mutex
	timeout time.Duration
	peers   []Peer
	pending map[string]*block.Block
	waiting map[string][]string // awaited hash -> hashes of pending blocks
}

// NewNode wraps a ledger in a consensus node. An empty id gets a random one.
func NewNode(id string, l *ledger.Ledger) *Node {
	if id == "" {
		id = uuid.New().String()
	}
	return &Node{
		id:      id,
		ledger:  l,
		timeout: 5 * time.Second,
		pending: make(map[string]*block.Block),
		waiting: make(map[string][]string),
	}
}

// ID returns the node's identity.
func (n *Node) ID() string { return n.id }

// Ledger returns the node's underlying ledger.
func (n *Node) Ledger() *ledger.Ledger { return n.ledger }

// SetPeerTimeout overrides the per-peer call timeout.
func (n *Node) SetPeerTimeout(d time.Duration) {
	n.mu.Lock()
	n.timeout = d
	n.mu.Unlock()
}

func (n *Node) peerTimeout() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.timeout
}
// #endregion node

// #region add-peer
// AddPeer registers a peer once; duplicates by ID and the node itself are
// ignored.
func (n *Node) AddPeer(p Peer) {
	if p.ID() == n.id {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.peers {
		if existing.ID() == p.ID() {
			return
		}
	}
	n.peers = append(n.peers, p)
}

// peerSnapshot returns a stable copy of the peer set for one fan-out.
func (n *Node) peerSnapshot() []Peer {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Peer, len(n.peers))
	copy(out, n.peers)
	return out
}
// #endregion add-peer

// #region receive
// ReceiveBlock validates an incoming block and either indexes it or parks
// it in the pending set. Accepting a block re-validates every pending block
// that was waiting on it, recursively, so out-of-order arrival heals as
// soon as the gap closes. Re-delivery of a known block returns true and
// changes nothing.
func (n *Node) ReceiveBlock(b *block.Block) bool {
	n.mu.Lock()
	accepted, verdicts := n.receiveLocked(b)
	n.mu.Unlock()

	if n.OnDecision != nil {
		for _, v := range verdicts {
			n.OnDecision(v)
		}
	}
	return accepted
}

func (n *Node) receiveLocked(b *block.Block) (bool, []Verdict) {
	v := n.ValidateBlock(b)

	switch v.Decision {
	case DecisionDuplicate:
		delete(n.pending, b.Hash)
		return true, []Verdict{v}

	case DecisionAccept:
		if err := n.ledger.Insert(b); err != nil {
			v.Decision = DecisionPending
			v.Reason = fmt.Sprintf("insert failed: %v", err)
			n.park(b, v)
			return false, []Verdict{v}
		}
		delete(n.pending, b.Hash)
		verdicts := append([]Verdict{v}, n.resolveWaitingLocked(b.Hash)...)
		return true, verdicts

	default:
		n.park(b, v)
		return false, []Verdict{v}
	}
}

// park holds a block in the pending set, indexed by each hash it waits on.
// A block already pending is not re-registered.
func (n *Node) park(b *block.Block, v Verdict) {
	if _, ok := n.pending[b.Hash]; ok {
		return
	}
	n.pending[b.Hash] = b
	for _, missing := range v.Missing {
		n.waiting[missing] = append(n.waiting[missing], b.Hash)
	}
}

// resolveWaitingLocked re-validates pending blocks waiting on newly indexed
// hashes. Acceptance cascades: each newly accepted block wakes its own
// waiters. Entries whose block left the pending set are skipped.
func (n *Node) resolveWaitingLocked(acceptedHash string) []Verdict {
	var verdicts []Verdict
	queue := []string{acceptedHash}

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]

		waiters := n.waiting[h]
		delete(n.waiting, h)

		for _, pendingHash := range waiters {
			b, ok := n.pending[pendingHash]
			if !ok {
				continue
			}
			v := n.ValidateBlock(b)
			if v.Decision != DecisionAccept {
				// Still blocked on some other hash; its remaining
				// registrations are intact.
				continue
			}
			if err := n.ledger.Insert(b); err != nil {
				v.Decision = DecisionPending
				v.Reason = fmt.Sprintf("insert failed: %v", err)
				verdicts = append(verdicts, v)
				continue
			}
			delete(n.pending, pendingHash)
			verdicts = append(verdicts, v)
			queue = append(queue, pendingHash)
		}
	}
	return verdicts
}

// PendingBlocks returns a snapshot of blocks held for re-validation.
func (n *Node) PendingBlocks() []*block.Block {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*block.Block, 0, len(n.pending))
	for _, b := range n.pending {
		out = append(out, b)
	}
	return out
}
// #endregion receive

// #region propose
// ProposeBlock appends locally and fans the block out to all peers. The
// hash is returned regardless of delivery outcomes. No pending sweep runs
// here: a freshly built block has a hash nothing can be waiting on yet.
func (n *Node) ProposeBlock(ctx context.Context, agentID string, snap profile.Snapshot, timeWindow float64, dependencies []string, metadata map[string]string) (string, []Delivery, error) {
	hash, err := n.ledger.AppendBlock(ctx, agentID, snap, timeWindow, dependencies, metadata)
	if err != nil {
		return "", nil, err
	}
	b, err := n.ledger.GetBlock(hash)
	if err != nil {
		return "", nil, err
	}
	return hash, n.BroadcastBlock(ctx, b), nil
}
// #endregion propose

// #region broadcast
// Delivery is the outcome of sending one block to one peer.
type Delivery struct {
	PeerID   string
	Accepted bool
	Err      error
}

// BroadcastBlock sends the block to every peer known at call time. Sends
// are independent: each gets its own timeout and its failure is attributed
// to that peer alone.
func (n *Node) BroadcastBlock(ctx context.Context, b *block.Block) []Delivery {
	peers := n.peerSnapshot()
	timeout := n.peerTimeout()
	results := make([]Delivery, len(peers))

	var wg sync.WaitGroup
	for i, p := range peers {
		wg.Add(1)
		go func(i int, p Peer) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			accepted, err := p.ReceiveBlock(callCtx, b)
			results[i] = Delivery{PeerID: p.ID(), Accepted: accepted, Err: err}
		}(i, p)
	}
	wg.Wait()
	return results
}
// #endregion broadcast

// #region sync
// SyncResult is the outcome of pulling recent blocks from one peer.
type SyncResult struct {
	PeerID   string
	Received int
	Accepted int
	Err      error
}

// syncFetchLimit caps how many recent blocks one sync pulls from a peer.
const syncFetchLimit = 100

// SyncWithPeers pulls each peer's recent blocks through ReceiveBlock. A
// failing peer is reported and skipped; blocks already known locally are
// no-ops.
func (n *Node) SyncWithPeers(ctx context.Context) []SyncResult {
	peers := n.peerSnapshot()
	timeout := n.peerTimeout()
	results := make([]SyncResult, 0, len(peers))

	for _, p := range peers {
		res := SyncResult{PeerID: p.ID()}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		blocks, err := p.GetRecentBlocks(callCtx, syncFetchLimit)
		cancel()
		if err != nil {
			res.Err = fmt.Errorf("fetch from %s: %w", p.ID(), err)
			results = append(results, res)
			continue
		}

		res.Received = len(blocks)
		for _, b := range blocks {
			if n.ReceiveBlock(b) {
				res.Accepted++
			}
		}
		results = append(results, res)
	}
	return results
}

// GetRecentBlocks serves a peer's sync request from the local ledger.
func (n *Node) GetRecentBlocks(limit int) []*block.Block {
	return n.ledger.RecentBlocks(limit)
}
// #endregion sync

// #region local-peer
// LocalPeer exposes a Node as a Peer for single-process meshes and tests.
type LocalPeer struct {
	Node *Node
}

func (p LocalPeer) ID() string { return p.Node.ID() }

func (p LocalPeer) ReceiveBlock(_ context.Context, b *block.Block) (bool, error) {
	return p.Node.ReceiveBlock(b), nil
}

func (p LocalPeer) GetRecentBlocks(_ context.Context, limit int) ([]*block.Block, error) {
	return p.Node.GetRecentBlocks(limit), nil
}
// #endregion local-peer
