package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers that look random but are derived from a
// seed, so a test can build "nondeterministic" payloads and still know
// exactly which values to expect.
//
// Thread-safety: IDGenerator is safe for concurrent use.
type IDGenerator struct {
	mu   sync.Mutex
	seed uuid.UUID
	seq  int
}

// NewIDGenerator creates a generator for seed. Two generators with the
// same seed yield the same sequence; different seeds yield different ones.
func NewIDGenerator(seed string) *IDGenerator {
	return &IDGenerator{seed: uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed))}
}

// UUID returns the next UUID of the sequence.
func (g *IDGenerator) UUID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return uuid.NewSHA1(g.seed, []byte(fmt.Sprint(g.seq))).String()
}

// Prefixed returns the next identifier as prefix followed by twelve hex
// digits, e.g. req-3f2a9c01b7d4.
func (g *IDGenerator) Prefixed(prefix string) string {
	id := g.UUID()
	return prefix + id[len(id)-12:]
}
