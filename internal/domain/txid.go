package domain

import (
	"math/rand"
	"sync"
	"time"
)

const txidRandomBits = 22

// TxIDGenerator produces unique, time-ordered transaction identifiers for
// orders and positions: epoch millis in the high 42 bits, random entropy in
// the low 22. The layout keeps IDs sortable by creation time and stays valid
// until the millis overflow the high bits (around year 2109).
type TxIDGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewTxIDGenerator creates a generator with its own entropy source
func NewTxIDGenerator() *TxIDGenerator {
	return &TxIDGenerator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

// NewDeterministicTxIDGenerator creates a generator with a fixed seed and
// clock, for tests.
func NewDeterministicTxIDGenerator(seed int64, now func() time.Time) *TxIDGenerator {
	return &TxIDGenerator{
		rnd: rand.New(rand.NewSource(seed)),
		now: now,
	}
}

// Next returns a new transaction id
func (g *TxIDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	millis := g.now().UnixMilli()
	entropy := g.rnd.Int63() & (1<<txidRandomBits - 1)
	return millis<<txidRandomBits | entropy
}

// TxIDTime extracts the creation timestamp embedded in a transaction id
func TxIDTime(id int64) time.Time {
	return time.UnixMilli(id >> txidRandomBits)
}
