package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// Identity generates content-addressed workflow and execution identifiers
// and a per-instance monotonic nonce (spec.md §3, C1). It is owned by the
// Engine instance rather than kept as a package-level global, per spec.md
// §9's note on scoped registries.
type Identity struct {
	counter atomic.Uint64
}

// NewIdentity returns a fresh Identity with its nonce counter at zero.
func NewIdentity() *Identity {
	return &Identity{}
}

// nextNonce mixes a per-instance monotonic counter with a random UUID so
// identifiers stay unique across process restarts without requiring the
// counter itself to be durable.
func (id *Identity) nextNonce() uint64 {
	n := id.counter.Add(1)
	u := uuid.New()
	mixed := binary.BigEndian.Uint64(u[:8]) ^ n
	return mixed
}

// WorkflowID computes hash(name, creator, timestamp, nonce).
func (id *Identity) WorkflowID(name string, creator models.Principal, ts time.Time) models.ID {
	return hashID("workflow", name, creator[:], ts, id.nextNonce())
}

// ExecutionID computes hash(workflow_id, initiator, timestamp, nonce).
func (id *Identity) ExecutionID(workflowID models.ID, initiator models.Principal, ts time.Time) models.ID {
	return hashID("execution", string(workflowID), initiator[:], ts, id.nextNonce())
}

func hashID(domain, a string, b []byte, ts time.Time, nonce uint64) models.ID {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0})
	h.Write([]byte(a))
	h.Write([]byte{0})
	h.Write(b)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(ts.UnixNano()))
	h.Write(tsBuf[:])
	var nonceBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	h.Write(nonceBuf[:])
	return models.ID(hex.EncodeToString(h.Sum(nil)))
}
