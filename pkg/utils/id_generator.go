package utils

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator generates unique identifiers for ledger records.
// Transaction IDs use monotonic ULIDs so ids for one process sort in
// creation order; review case ids are plain UUIDs.
type IDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// TransactionID generates a transaction id.
// Format: tx_01ARZ3NDEKTSV4RRFFQ69G5FAV
func (g *IDGenerator) TransactionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return "tx_" + id.String()
}

// ReviewID generates an id for a manual review case.
func (g *IDGenerator) ReviewID() string {
	return "rev_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
