package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/block"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	hash          TEXT NOT NULL UNIQUE,
	agent_id      TEXT NOT NULL,
	scan          BLOB NOT NULL,
	timestamp     TEXT NOT NULL,
	prev_hash     TEXT,
	dependencies  TEXT,
	metadata      TEXT
);
CREATE INDEX IF NOT EXISTS idx_blocks_agent ON blocks(agent_id);
CREATE INDEX IF NOT EXISTS idx_blocks_timestamp ON blocks(timestamp);
`
// #endregion schema

// #region store-struct
// Store is the append-only durable log of accepted blocks. Rows are only
// ever inserted; seq records acceptance order for replay.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages
// (e.g. logging, graph).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion constructor

// #region append
// AppendBlock writes one accepted block. Re-appending a known hash is a
// no-op, so replays and idempotent re-acceptance never duplicate rows.
// Implements ledger.Journal.
func (s *Store) AppendBlock(b *block.Block) error {
	depsJSON, err := marshalOrNil(b.Dependencies)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}
	metaJSON, err := marshalOrNil(b.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO blocks (hash, agent_id, scan, timestamp, prev_hash, dependencies, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Hash, b.AgentID, b.Scan, b.Timestamp.UTC().Format(time.RFC3339Nano),
		nullIfEmpty(b.PrevHash), depsJSON, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("insert block %s: %w", b.Hash, err)
	}
	return nil
}
// #endregion append

// #region load
// LoadResult is the outcome of replaying the log.
type LoadResult struct {
	Blocks []*block.Block
	// Rejected lists the stored hashes of rows whose content no longer
	// matches their hash (truncated or tampered records).
	Rejected []string
}

// LoadBlocks replays the log in acceptance order, recomputing every hash.
// Corrupt rows are rejected, not returned.
func (s *Store) LoadBlocks() (LoadResult, error) {
	rows, err := s.db.Query(
		`SELECT hash, agent_id, scan, timestamp, prev_hash, dependencies, metadata
		 FROM blocks ORDER BY seq`,
	)
	if err != nil {
		return LoadResult{}, fmt.Errorf("load blocks: %w", err)
	}
	defer rows.Close()

	var res LoadResult
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return LoadResult{}, err
		}
		if !b.Verify() {
			res.Rejected = append(res.Rejected, b.Hash)
			continue
		}
		res.Blocks = append(res.Blocks, b)
	}
	return res, rows.Err()
}

// BlocksByAgent returns the agent's blocks in acceptance order, newest
// last, capped at limit.
func (s *Store) BlocksByAgent(agentID string, limit int) ([]*block.Block, error) {
	rows, err := s.db.Query(
		`SELECT hash, agent_id, scan, timestamp, prev_hash, dependencies, metadata
		 FROM blocks WHERE agent_id = ?
		 ORDER BY seq DESC LIMIT ?`,
		agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("blocks for %s: %w", agentID, err)
	}
	defer rows.Close()

	var blocks []*block.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	// seq DESC above, so reverse back to acceptance order.
	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}
	return blocks, rows.Err()
}

// AgentIDs returns every agent with at least one logged block.
func (s *Store) AgentIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT agent_id FROM blocks ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("agent ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
// #endregion load

// #region helpers
func scanBlock(rows *sql.Rows) (*block.Block, error) {
	var b block.Block
	var tsStr string
	var prevHash, depsJSON, metaJSON sql.NullString

	if err := rows.Scan(&b.Hash, &b.AgentID, &b.Scan, &tsStr, &prevHash, &depsJSON, &metaJSON); err != nil {
		return nil, fmt.Errorf("scan block row: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp of %s: %w", b.Hash, err)
	}
	b.Timestamp = ts

	if prevHash.Valid {
		b.PrevHash = prevHash.String
	}
	if depsJSON.Valid {
		if err := json.Unmarshal([]byte(depsJSON.String), &b.Dependencies); err != nil {
			return nil, fmt.Errorf("unmarshal dependencies of %s: %w", b.Hash, err)
		}
	}
	if metaJSON.Valid {
		if err := json.Unmarshal([]byte(metaJSON.String), &b.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata of %s: %w", b.Hash, err)
		}
	}
	return &b, nil
}

func marshalOrNil(v any) (any, error) {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(val) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
