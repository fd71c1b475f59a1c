package graph

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/block"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS entanglement_edges (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    block_hash  TEXT NOT NULL,
    dep_hash    TEXT NOT NULL,
    agent_id    TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    UNIQUE(block_hash, dep_hash)
);
CREATE INDEX IF NOT EXISTS idx_edges_block ON entanglement_edges(block_hash);
CREATE INDEX IF NOT EXISTS idx_edges_dep ON entanglement_edges(dep_hash);
`
// #endregion schema

// #region types
// Edge links a block to one of its declared dependencies.
type Edge struct {
	ID        int64
	BlockHash string
	DepHash   string
	AgentID   string
	CreatedAt time.Time
}

// EdgeStore persists cross-agent dependency edges. It shares the node's
// SQLite database so edges can join against the block log.
type EdgeStore struct {
	db *sql.DB
}
// #endregion types

// #region constructor
// NewEdgeStore creates the edge table and returns a store.
func NewEdgeStore(db *sql.DB) (*EdgeStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("graph schema: %w", err)
	}
	return &EdgeStore{db: db}, nil
}
// #endregion constructor

// #region append
// AppendBlock records one edge per dependency of an accepted block.
// Re-recording a block is a no-op. Implements ledger.Journal.
func (g *EdgeStore) AppendBlock(b *block.Block) error {
	if len(b.Dependencies) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, dep := range b.Dependencies {
		_, err := g.db.Exec(
			`INSERT OR IGNORE INTO entanglement_edges (block_hash, dep_hash, agent_id, created_at)
			 VALUES (?, ?, ?, ?)`,
			b.Hash, dep, b.AgentID, now,
		)
		if err != nil {
			return fmt.Errorf("record edge %s -> %s: %w", b.Hash, dep, err)
		}
	}
	return nil
}
// #endregion append

// #region queries
// DependenciesOf returns the edges leaving a block.
func (g *EdgeStore) DependenciesOf(blockHash string) ([]Edge, error) {
	return g.queryEdges(`SELECT id, block_hash, dep_hash, agent_id, created_at
		 FROM entanglement_edges WHERE block_hash = ? ORDER BY id`, blockHash)
}

// DependentsOf returns the edges pointing at a block: who depends on it.
func (g *EdgeStore) DependentsOf(depHash string) ([]Edge, error) {
	return g.queryEdges(`SELECT id, block_hash, dep_hash, agent_id, created_at
		 FROM entanglement_edges WHERE dep_hash = ? ORDER BY id`, depHash)
}

// EntangledAgents returns the distinct agents whose blocks the given
// agent's blocks depend on, resolved through the block log.
func (g *EdgeStore) EntangledAgents(agentID string) ([]string, error) {
	rows, err := g.db.Query(
		`SELECT DISTINCT b.agent_id
		 FROM entanglement_edges e
		 JOIN blocks b ON b.hash = e.dep_hash
		 WHERE e.agent_id = ? AND b.agent_id != ?
		 ORDER BY b.agent_id`,
		agentID, agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("entangled agents of %s: %w", agentID, err)
	}
	defer rows.Close()

	var agents []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, id)
	}
	return agents, rows.Err()
}

func (g *EdgeStore) queryEdges(query string, arg any) ([]Edge, error) {
	rows, err := g.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var createdAt string
		if err := rows.Scan(&e.ID, &e.BlockHash, &e.DepHash, &e.AgentID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
// #endregion queries
