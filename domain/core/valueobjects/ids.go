package valueobjects

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ProvisionalPrefix namespaces ids minted locally for optimistic entities.
// Durable ids issued by the API never start with it.
const ProvisionalPrefix = "tmp_"

// IDGenerator mints provisional ids. Suffixes are monotonic ULIDs so two
// ids minted in the same millisecond still sort and never repeat.
type IDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewIDGenerator creates a generator backed by crypto/rand
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Provisional returns a new provisional id for the given entity kind,
// e.g. "tmp_link_01J9Z...".
func (g *IDGenerator) Provisional(kind string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
	return ProvisionalPrefix + kind + "_" + strings.ToLower(id.String())
}

// IsProvisional reports whether id was minted locally
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}

// NewRecordID returns a random id for locally owned records (history
// entries, conflicts, notifications).
func NewRecordID() string {
	return uuid.New().String()
}
