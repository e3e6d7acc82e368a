package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultTopK is the retrieval fan-out used when a caller does not ask for
// an explicit count.
const DefaultTopK = 5

// ErrIndexNotReady signals that no corpus has been indexed yet. Callers
// surface it as a user-facing message instead of a raw lookup failure.
var ErrIndexNotReady = errors.New("index not ready: no corpus has been indexed yet")

// Retriever is the read-side adapter over the vector index. The store
// handle is bound only after a corpus has been built; until then every
// Search reports ErrIndexNotReady. Bind and Search are safe for concurrent
// use, so searches racing an index build see either the old handle or the
// fully built new one, never a partial structure.
type Retriever struct {
	embedder *Embedder

	mu    sync.RWMutex
	store VectorStore
}

// NewRetriever creates a Retriever with no index bound.
func NewRetriever(embedder *Embedder) *Retriever {
	return &Retriever{embedder: embedder}
}

// Bind publishes a fully built store as the active index.
func (r *Retriever) Bind(store VectorStore) {
	r.mu.Lock()
	r.store = store
	r.mu.Unlock()
}

// Unbind withdraws the active index. Searches report ErrIndexNotReady until
// the next Bind. Rebuilds unbind before mutating the store so no query ever
// reads a partially built index.
func (r *Retriever) Unbind() {
	r.mu.Lock()
	r.store = nil
	r.mu.Unlock()
}

// Ready reports whether an index is bound.
func (r *Retriever) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store != nil
}

// Search embeds the query and returns the top-K most similar documents in
// the store's similarity order. k <= 0 means DefaultTopK. The result length
// is min(k, corpus size).
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Document, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	r.mu.RLock()
	store := r.store
	r.mu.RUnlock()
	if store == nil {
		return nil, ErrIndexNotReady
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scored, err := store.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	docs := make([]Document, len(scored))
	for i, s := range scored {
		docs[i] = Document{Text: s.Text, Metadata: s.Metadata}
	}
	return docs, nil
}
