package retrieval

import (
	"container/heap"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Compile-time check that SQLiteStore implements VectorStore.
var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore provides vector storage and brute-force cosine similarity
// search backed by SQLite. Embeddings are stored as little-endian float32
// BLOBs in the document_vectors table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an existing *sql.DB for vector operations.
// The document_vectors table must already exist (created via migrations).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert adds records to the document_vectors table in one transaction.
func (s *SQLiteStore) Insert(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO document_vectors (id, source, text, metadata, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshalling metadata for %s: %w", r.ID, err)
		}
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		blob := encodeFloat32s(r.Embedding)
		if _, err := stmt.Exec(r.ID, r.Source, r.Text, string(meta), blob, createdAt.Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// idScore holds id, insertion position, and score during the scan phase.
// Full record details are fetched only for top-K winners.
type idScore struct {
	rowid int64
	ID    string
	Score float32
}

// Search performs brute-force cosine similarity search over all vectors,
// returning the top-K most similar records, highest score first. Equal
// scores keep insertion order.
func (s *SQLiteStore) Search(vector []float32, topK int) ([]ScoredRecord, error) {
	if topK <= 0 {
		return nil, nil
	}

	// Phase 1: scan only rowid + id + embedding to find top-K candidates.
	rows, err := s.db.Query(`SELECT rowid, id, embedding FROM document_vectors`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var rowid int64
		var id string
		var blob []byte
		if err := rows.Scan(&rowid, &id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := cosine(vector, buf, queryNorm)
		cand := idScore{rowid: rowid, ID: id, Score: score}
		if h.Len() < topK {
			heap.Push(h, cand)
		} else if betterThan(cand, (*h)[0]) {
			(*h)[0] = cand
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	winners := make([]idScore, h.Len())
	copy(winners, *h)
	sort.Slice(winners, func(i, j int) bool { return betterThan(winners[i], winners[j]) })

	// Phase 2: fetch full records only for the winners.
	byID, err := s.fetchByIDs(idsOf(winners))
	if err != nil {
		return nil, err
	}

	results := make([]ScoredRecord, 0, len(winners))
	for _, w := range winners {
		rec, ok := byID[w.ID]
		if !ok {
			return nil, fmt.Errorf("record %s vanished between scan and fetch", w.ID)
		}
		results = append(results, ScoredRecord{Record: rec, Score: w.Score})
	}
	return results, nil
}

// betterThan orders candidates by descending score, then by insertion order.
func betterThan(a, b idScore) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.rowid < b.rowid
}

func idsOf(winners []idScore) []string {
	ids := make([]string, len(winners))
	for i, w := range winners {
		ids[i] = w.ID
	}
	return ids
}

func (s *SQLiteStore) fetchByIDs(ids []string) (map[string]Record, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id, source, text, metadata, embedding, created_at
		FROM document_vectors WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K records: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Record, len(ids))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		byID[rec.ID] = rec
	}
	return byID, rows.Err()
}

// Count returns the number of records in the document_vectors table.
func (s *SQLiteStore) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM document_vectors").Scan(&count)
	return count, err
}

// ExportAll returns every record in insertion order.
func (s *SQLiteStore) ExportAll() ([]Record, error) {
	rows, err := s.db.Query(`SELECT id, source, text, metadata, embedding, created_at
		FROM document_vectors ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes a record by ID.
func (s *SQLiteStore) Delete(id string) error {
	_, err := s.db.Exec("DELETE FROM document_vectors WHERE id = ?", id)
	return err
}

// Clear removes every record. Index rebuilds call this before re-inserting
// so stale documents never survive a re-index.
func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM document_vectors")
	return err
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var r Record
	var blob []byte
	var meta, createdAt string
	if err := rows.Scan(&r.ID, &r.Source, &r.Text, &meta, &blob, &createdAt); err != nil {
		return Record{}, fmt.Errorf("scanning record: %w", err)
	}
	embedding, err := decodeFloat32s(blob)
	if err != nil {
		return Record{}, fmt.Errorf("decoding embedding for %s: %w", r.ID, err)
	}
	r.Embedding = embedding
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return Record{}, fmt.Errorf("parsing metadata for %s: %w", r.ID, err)
		}
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("parsing created_at for %s: %w", r.ID, err)
	}
	r.CreatedAt = t
	return r, nil
}

// idScoreHeap is a min-heap keeping the worst candidate at the root so it
// can be evicted when a better one arrives.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int            { return len(h) }
func (h idScoreHeap) Less(i, j int) bool  { return betterThan(h[j], h[i]) }
func (h idScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x any)         { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// cosine computes the cosine similarity between the query vector and a
// candidate, given the query's precomputed norm. Mismatched dimensions or a
// zero candidate norm score 0.
func cosine(query, candidate []float32, queryNorm float32) float32 {
	if len(query) != len(candidate) {
		return 0
	}
	var dot, candNormSq float32
	for i := range query {
		dot += query[i] * candidate[i]
		candNormSq += candidate[i] * candidate[i]
	}
	if candNormSq == 0 {
		return 0
	}
	return dot / (queryNorm * float32(math.Sqrt(float64(candNormSq))))
}

func norm(v []float32) float32 {
	var sum float32
	for _, f := range v {
		sum += f * f
	}
	return float32(math.Sqrt(float64(sum)))
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := 0; i < n; i++ {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}
