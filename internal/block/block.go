package block

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"time"
)

// #region block
// Block is one agent state snapshot in the ledger, content-addressed by Hash.
// A block is immutable once accepted; every field participates in the hash.
type Block struct {
	AgentID      string            `json:"agent_id"`
	Scan         []byte            `json:"scan"`
	Timestamp    time.Time         `json:"timestamp"`
	PrevHash     string            `json:"prev_hash,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Hash         string            `json:"hash"`
}
// #endregion block

// #region constructor
// New builds a block and seals it with its content hash.
// PrevHash is empty for an agent's first block.
func New(agentID string, scan []byte, ts time.Time, prevHash string, dependencies []string, metadata map[string]string) *Block {
	b := &Block{
		AgentID:      agentID,
		Scan:         scan,
		Timestamp:    ts,
		PrevHash:     prevHash,
		Dependencies: dependencies,
		Metadata:     metadata,
	}
	b.Hash = b.ComputeHash()
	return b
}
// #endregion constructor

// #region hash
// ComputeHash returns the hex SHA-256 of the block's canonical encoding.
// The encoding length-prefixes every field so adjacent fields cannot
// collide, count-prefixes the dependency and metadata sections so entries
// of one section cannot be reinterpreted as the other, and writes metadata
// keys in sorted order so the hash does not depend on map iteration order.
func (b *Block) ComputeHash() string {
	h := sha256.New()

	writeUint := func(n uint64) {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], n)
		h.Write(buf[:])
	}
	writeField := func(data []byte) {
		writeUint(uint64(len(data)))
		h.Write(data)
	}

	writeField([]byte(b.AgentID))
	writeField(b.Scan)
	writeUint(uint64(b.Timestamp.UnixNano()))
	writeField([]byte(b.PrevHash))

	writeUint(uint64(len(b.Dependencies)))
	for _, dep := range b.Dependencies {
		writeField([]byte(dep))
	}

	keys := make([]string, 0, len(b.Metadata))
	for k := range b.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeUint(uint64(len(keys)))
	for _, k := range keys {
		writeField([]byte(k))
		writeField([]byte(b.Metadata[k]))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether the stored hash matches the block content.
func (b *Block) Verify() bool {
	return b.Hash == b.ComputeHash()
}
// #endregion hash
