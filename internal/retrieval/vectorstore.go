package retrieval

import "time"

// Document is an immutable unit of retrievable content: the indexed text
// plus its metadata mapping (source file, activity id, optional reference).
type Document struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Record is a row in the vector store.
type Record struct {
	ID        string
	Source    string
	Text      string
	Metadata  map[string]string
	Embedding []float32
	CreatedAt time.Time
}

// ScoredRecord is a Record with its similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}

// VectorStore is the interface for vector storage and similarity search.
// The default implementation uses SQLite with brute-force cosine similarity,
// which is comfortable at this corpus size (hundreds of shift windows plus
// reference documents).
type VectorStore interface {
	// Insert adds records to the store.
	Insert(records []Record) error

	// Search returns the top-K most similar records, highest score first.
	// Ties keep insertion order.
	Search(vector []float32, topK int) ([]ScoredRecord, error)

	// Count returns the number of stored records.
	Count() (int, error)

	// ExportAll returns every record, in insertion order.
	ExportAll() ([]Record, error)

	// Delete removes a record by ID.
	Delete(id string) error
}
