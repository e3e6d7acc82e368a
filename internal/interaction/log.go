// Package interaction keeps the process-lifetime record of answered
// queries, used for auditing and evaluation of the retrieval pipeline.
package interaction

import (
	"sync"
	"time"
)

// defaultCapacity bounds the in-memory log. Old entries are evicted once
// the cap is reached; durable history goes through the storage flush.
const defaultCapacity = 1000

// Interaction is one question/answer/context triple. RetrievedContexts and
// Contexts are duplicate views of the same document texts, kept for
// backward-compatible field naming in exports.
type Interaction struct {
	ID                string    `json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	Question          string    `json:"question"`
	Answer            string    `json:"answer"`
	RetrievedContexts []string  `json:"retrieved_contexts"`
	Contexts          []string  `json:"contexts"`
}

// Log is an append-only, bounded, concurrency-safe interaction record.
// Appends never fail; when the capacity is reached the oldest entries are
// dropped.
type Log struct {
	mu       sync.Mutex
	capacity int
	entries  []Interaction
}

// NewLog creates a Log holding at most capacity entries. capacity <= 0
// means the default (1000).
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{capacity: capacity}
}

// Record appends an interaction, stamping CreatedAt with the current time
// when unset so a later flush keeps the answer-time timestamp. Entry fields
// are never interleaved across concurrent writers; ordering between writers
// is not significant.
func (l *Log) Record(i Interaction) {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, i)
	if len(l.entries) > l.capacity {
		// Shift instead of reslicing so the backing array does not pin
		// evicted entries.
		n := copy(l.entries, l.entries[len(l.entries)-l.capacity:])
		l.entries = l.entries[:n]
	}
}

// All returns a snapshot of the log in append order.
func (l *Log) All() []Interaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Interaction, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the current number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
