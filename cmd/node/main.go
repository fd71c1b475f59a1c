package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/codec"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/consensus"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/graph"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/ledger"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/logging"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/profile"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/store"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/transport"
)

// #region main
func main() {
	dbPath := envOr("LEDGER_DB", "agent_ledger.db")
	nodeID := envOr("NODE_ID", "")
	listenAddr := envOr("NODE_ADDR", ":50060")
	peerList := envOr("NODE_PEERS", "")
	codecAddr := envOr("CODEC_ADDR", "")
	syncEvery := durationOr("SYNC_INTERVAL", 30*time.Second)
	timeWindow := floatOr("TIME_WINDOW", 1.0)

	// Open the durable block log and its side tables.
	st, err := store.NewStore(dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	if err := logging.EnsureSchema(st.DB()); err != nil {
		log.Fatalf("failed to prepare acceptance log: %v", err)
	}
	edges, err := graph.NewEdgeStore(st.DB())
	if err != nil {
		log.Fatalf("failed to prepare entanglement graph: %v", err)
	}

	// Codec: remote service when configured, in-process intervals otherwise.
	var c codec.Codec
	if codecAddr != "" {
		client, err := codec.NewClient(codecAddr)
		if err != nil {
			log.Fatalf("failed to connect to codec service at %s: %v", codecAddr, err)
		}
		defer client.Close()
		c = client
	} else {
		c = codec.NewIntervalCodec()
	}

	led := ledger.New(c, ledger.MultiJournal{st, edges})

	// Replay the log into the in-memory indexes.
	loaded, err := st.LoadBlocks()
	if err != nil {
		log.Fatalf("failed to load block log: %v", err)
	}
	for _, hash := range loaded.Rejected {
		log.Printf("rejected corrupt block %s from log", hash)
	}
	if err := led.Restore(loaded.Blocks); err != nil {
		log.Fatalf("failed to restore ledger: %v", err)
	}

	node := consensus.NewNode(nodeID, led)
	node.OnDecision = func(v consensus.Verdict) {
		err := logging.LogAcceptance(st.DB(), logging.AcceptanceEntry{
			NodeID:    node.ID(),
			BlockHash: v.BlockHash,
			AgentID:   v.AgentID,
			Decision:  string(v.Decision),
			Reason:    v.Reason,
			Missing:   v.Missing,
		})
		if err != nil {
			log.Printf("logging error: %v", err)
		}
	}

	for _, entry := range parsePeers(peerList) {
		peer, err := transport.Dial(entry.id, entry.addr)
		if err != nil {
			log.Printf("failed to dial peer %s: %v", entry.addr, err)
			continue
		}
		defer peer.Close()
		node.AddPeer(peer)
	}

	// Serve the peer RPC.
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", listenAddr, err)
	}
	srv := grpc.NewServer()
	transport.NewServer(node).Register(srv)
	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()
	defer srv.GracefulStop()

	// Periodic anti-entropy pull from all peers.
	stopSync := make(chan struct{})
	go func() {
		ticker := time.NewTicker(syncEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, res := range node.SyncWithPeers(context.Background()) {
					if res.Err != nil {
						log.Printf("sync %s: %v", res.PeerID, res.Err)
						continue
					}
					if res.Accepted > 0 {
						log.Printf("sync %s: accepted %d of %d", res.PeerID, res.Accepted, res.Received)
					}
				}
			case <-stopSync:
				return
			}
		}
	}()
	defer close(stopSync)

	fmt.Printf("Ledger node %s ready.\n", node.ID())
	fmt.Printf("  DB: %s | Listen: %s | Blocks: %d\n", dbPath, listenAddr, led.Len())
	fmt.Println("Commands: propose <agent> <skills,comma> <accuracy> <iterations> [dep-hash ...]")
	fmt.Println("          state <agent> | history <agent> | sync | quit")

	runShell(node, timeWindow)
}
// #endregion main

// #region shell
func runShell(node *consensus.Node, timeWindow float64) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return
		case "propose":
			runPropose(node, timeWindow, fields[1:])
		case "state":
			runState(node, timeWindow, fields[1:])
		case "history":
			runHistory(node, fields[1:])
		case "sync":
			for _, res := range node.SyncWithPeers(context.Background()) {
				if res.Err != nil {
					fmt.Printf("  %s: %v\n", res.PeerID, res.Err)
					continue
				}
				fmt.Printf("  %s: accepted %d of %d\n", res.PeerID, res.Accepted, res.Received)
			}
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func runPropose(node *consensus.Node, timeWindow float64, args []string) {
	if len(args) < 4 {
		fmt.Println("usage: propose <agent> <skills,comma> <accuracy> <iterations> [dep-hash ...]")
		return
	}
	accuracy, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		fmt.Printf("bad accuracy %q: %v\n", args[2], err)
		return
	}
	iterations, err := strconv.Atoi(args[3])
	if err != nil {
		fmt.Printf("bad iterations %q: %v\n", args[3], err)
		return
	}

	snap := profile.Snapshot{
		Skills:             strings.Split(args[1], ","),
		AverageAccuracy:    accuracy,
		LearningIterations: iterations,
		Dependencies:       args[4:],
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	hash, deliveries, err := node.ProposeBlock(ctx, args[0], snap, timeWindow, args[4:], nil)
	cancel()
	if err != nil {
		log.Printf("propose error: %v", err)
		return
	}

	fmt.Printf("appended %s\n", hash)
	for _, d := range deliveries {
		switch {
		case d.Err != nil:
			fmt.Printf("  -> %s: %v\n", d.PeerID, d.Err)
		case d.Accepted:
			fmt.Printf("  -> %s: accepted\n", d.PeerID)
		default:
			fmt.Printf("  -> %s: pending\n", d.PeerID)
		}
	}
}

func runState(node *consensus.Node, timeWindow float64, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: state <agent>")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	rec, err := node.Ledger().GetState(ctx, args[0], timeWindow, "")
	cancel()
	if err != nil {
		fmt.Printf("state error: %v\n", err)
		return
	}
	fmt.Printf("agent %s @ %s\n", rec.AgentID, rec.Timestamp.Format(time.RFC3339))
	fmt.Printf("  skills=%d accuracy=%.2f iterations=%d needs_training=%v\n",
		rec.SkillCount, rec.AverageAccuracy, rec.LearningIterations, rec.NeedsTraining)
}

func runHistory(node *consensus.Node, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: history <agent>")
		return
	}
	chain := node.Ledger().GetHistory(args[0], 20)
	if len(chain) == 0 {
		fmt.Println("no blocks")
		return
	}
	for _, b := range chain {
		fmt.Printf("  %s  %s  deps=%d\n", b.Hash[:12], b.Timestamp.Format(time.RFC3339), len(b.Dependencies))
	}
}
// #endregion shell

// #region helpers
type peerEntry struct {
	id   string
	addr string
}

// parsePeers splits NODE_PEERS entries of the form "id=host:port" or
// "host:port", comma separated.
func parsePeers(s string) []peerEntry {
	var out []peerEntry
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, addr, ok := strings.Cut(part, "="); ok {
			out = append(out, peerEntry{id: id, addr: addr})
		} else {
			out = append(out, peerEntry{addr: part})
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("ignoring bad %s=%q", key, v)
	}
	return fallback
}

func floatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("ignoring bad %s=%q", key, v)
	}
	return fallback
}
// #endregion helpers
