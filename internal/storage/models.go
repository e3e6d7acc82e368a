package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction is a persisted question/answer/context triple, flushed from
// the in-memory interaction log. The two context columns are duplicate
// views of the same document texts, kept for backward-compatible naming.
type Interaction struct {
	ID                string
	CreatedAt         time.Time
	Question          string
	Answer            string
	RetrievedContexts []string
	Contexts          []string
}
