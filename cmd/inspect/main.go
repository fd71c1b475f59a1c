package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/block"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/graph"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/logging"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to agent_ledger.db")
	agent := flag.String("agent", "", "show one agent's chain")
	blockHash := flag.String("block", "", "show single block detail")
	last := flag.Int("last", 20, "show N most recent entries")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/agent_ledger.db [--agent id] [--block hash] [--last N] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	edges, err := graph.NewEdgeStore(st.DB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open graph: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *blockHash != "":
		err = runBlockMode(st, edges, *blockHash, *jsonOut)
	case *agent != "":
		err = runAgentMode(st, edges, *agent, *last, *jsonOut)
	default:
		err = runOverviewMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region overview-mode

type overviewOutput struct {
	Agents []string        `json:"agents"`
	Recent []acceptanceRow `json:"recent_acceptance"`
}

type acceptanceRow struct {
	NodeID    string   `json:"node_id"`
	BlockHash string   `json:"block_hash"`
	AgentID   string   `json:"agent_id"`
	Decision  string   `json:"decision"`
	Reason    string   `json:"reason,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	CreatedAt string   `json:"created_at"`
}

func runOverviewMode(st *store.Store, last int, jsonOut bool) error {
	agents, err := st.AgentIDs()
	if err != nil {
		return err
	}
	entries, err := logging.RecentEntries(st.DB(), last)
	if err != nil {
		return err
	}

	rows := make([]acceptanceRow, len(entries))
	for i, e := range entries {
		rows[i] = acceptanceRow{
			NodeID:    e.NodeID,
			BlockHash: e.BlockHash,
			AgentID:   e.AgentID,
			Decision:  e.Decision,
			Reason:    e.Reason,
			Missing:   e.Missing,
			CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(overviewOutput{Agents: agents, Recent: rows})
	}

	fmt.Printf("Agents: %s\n\n", strings.Join(agents, ", "))
	fmt.Printf("%-12s  %-12s  %-10s  %-20s  %s\n",
		"Block", "Agent", "Decision", "Time", "Reason")
	fmt.Printf("%-12s+-%-12s+-%-10s+-%-20s+-%s\n",
		"------------", "------------", "----------", "--------------------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %-12s  %-10s  %-20s  %s\n",
			shortID(r.BlockHash), r.AgentID, r.Decision, r.CreatedAt, r.Reason)
	}
	return nil
}

// #endregion overview-mode

// #region agent-mode

type agentOutput struct {
	AgentID   string     `json:"agent_id"`
	Blocks    []blockRow `json:"blocks"`
	Entangled []string   `json:"entangled_agents,omitempty"`
}

type blockRow struct {
	Hash         string   `json:"hash"`
	Timestamp    string   `json:"timestamp"`
	PrevHash     string   `json:"prev_hash,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	ScanBytes    int      `json:"scan_bytes"`
}

func runAgentMode(st *store.Store, edges *graph.EdgeStore, agentID string, last int, jsonOut bool) error {
	blocks, err := st.BlocksByAgent(agentID, last)
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		fmt.Fprintf(os.Stderr, "no blocks for agent %s\n", agentID)
		return nil
	}
	entangled, err := edges.EntangledAgents(agentID)
	if err != nil {
		return err
	}

	rows := make([]blockRow, len(blocks))
	for i, b := range blocks {
		rows[i] = blockRow{
			Hash:         b.Hash,
			Timestamp:    b.Timestamp.Format("2006-01-02T15:04:05Z"),
			PrevHash:     b.PrevHash,
			Dependencies: b.Dependencies,
			ScanBytes:    len(b.Scan),
		}
	}

	if jsonOut {
		return printJSON(agentOutput{AgentID: agentID, Blocks: rows, Entangled: entangled})
	}

	fmt.Printf("%-12s  %-12s  %-20s  %4s  %s\n",
		"Block", "Prev", "Time", "Deps", "Scan")
	fmt.Printf("%-12s+-%-12s+-%-20s+-%4s+-%s\n",
		"------------", "------------", "--------------------", "----", "--------")
	for _, r := range rows {
		fmt.Printf("%-12s  %-12s  %-20s  %4d  %d bytes\n",
			shortID(r.Hash), shortID(r.PrevHash), r.Timestamp, len(r.Dependencies), r.ScanBytes)
	}
	if len(entangled) > 0 {
		fmt.Printf("\nEntangled with: %s\n", strings.Join(entangled, ", "))
	}
	return nil
}

// #endregion agent-mode

// #region block-mode

type blockOutput struct {
	blockRow
	AgentID    string            `json:"agent_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Verified   bool              `json:"verified"`
	Dependents []string          `json:"dependents,omitempty"`
}

func runBlockMode(st *store.Store, edges *graph.EdgeStore, hash string, jsonOut bool) error {
	b, err := findBlock(st, hash)
	if err != nil {
		return err
	}

	dependents, err := edges.DependentsOf(b.Hash)
	if err != nil {
		return err
	}

	out := blockOutput{
		blockRow: blockRow{
			Hash:         b.Hash,
			Timestamp:    b.Timestamp.Format("2006-01-02T15:04:05Z"),
			PrevHash:     b.PrevHash,
			Dependencies: b.Dependencies,
			ScanBytes:    len(b.Scan),
		},
		AgentID:  b.AgentID,
		Metadata: b.Metadata,
		Verified: b.Verify(),
	}
	for _, e := range dependents {
		out.Dependents = append(out.Dependents, e.BlockHash)
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Block:     %s\n", out.Hash)
	fmt.Printf("Agent:     %s\n", out.AgentID)
	fmt.Printf("Time:      %s\n", out.Timestamp)
	fmt.Printf("Prev:      %s\n", orNone(out.PrevHash))
	fmt.Printf("Verified:  %v\n", out.Verified)
	fmt.Printf("Scan:      %d bytes\n", out.ScanBytes)
	if len(out.Dependencies) > 0 {
		fmt.Printf("Depends on:\n")
		for _, d := range out.Dependencies {
			fmt.Printf("  %s\n", d)
		}
	}
	if len(out.Dependents) > 0 {
		fmt.Printf("Depended on by:\n")
		for _, d := range out.Dependents {
			fmt.Printf("  %s\n", d)
		}
	}
	for k, v := range out.Metadata {
		fmt.Printf("Meta:      %s=%s\n", k, v)
	}
	return nil
}

// findBlock resolves a full or prefix hash against the block log.
func findBlock(st *store.Store, hash string) (*block.Block, error) {
	loaded, err := st.LoadBlocks()
	if err != nil {
		return nil, err
	}
	var match *block.Block
	for _, b := range loaded.Blocks {
		if b.Hash == hash {
			return b, nil
		}
		if strings.HasPrefix(b.Hash, hash) {
			if match != nil {
				return nil, fmt.Errorf("hash prefix %s is ambiguous", hash)
			}
			match = b
		}
	}
	if match == nil {
		return nil, fmt.Errorf("block %s not found", hash)
	}
	return match, nil
}

// #endregion block-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// #endregion output
