// Package ingest builds the retrieval corpus: windowed sensor artifacts and
// PDF reference material are embedded and inserted into the vector store.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/agrolab/hydrochat/internal/retrieval"
)

// DocumentEmbedder generates embeddings for batches of text.
type DocumentEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Builder turns extracted artifacts and reference PDFs into vector records.
type Builder struct {
	embedder DocumentEmbedder
	store    retrieval.VectorStore
	logger   *slog.Logger
}

// NewBuilder creates a Builder inserting into the given store.
func NewBuilder(embedder DocumentEmbedder, store retrieval.VectorStore) *Builder {
	return &Builder{embedder: embedder, store: store, logger: slog.Default()}
}

var activityPattern = regexp.MustCompile(`activity_(\d+)`)

// BuildFromArtifacts indexes every windowed JSON artifact in dir: each
// file's records are combined into a single text block, embedded, and
// inserted with the artifact name as source metadata. When embeddingsDir is
// non-empty, the raw vectors are also written there as
// {artifact}_embeddings.json for offline inspection.
//
// Files that fail to parse are skipped with a warning; a malformed artifact
// never fails the whole build.
func (b *Builder) BuildFromArtifacts(ctx context.Context, dir, embeddingsDir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("listing artifacts: %w", err)
	}

	var texts []string
	var sources []string
	for _, path := range paths {
		if strings.HasSuffix(path, "_embeddings.json") {
			continue
		}
		text, err := combineArtifact(path)
		if err != nil {
			b.logger.Warn("skipping unreadable artifact", "path", path, "error", err)
			continue
		}
		if text == "" {
			continue
		}
		texts = append(texts, text)
		sources = append(sources, filepath.Base(path))
	}
	if len(texts) == 0 {
		return 0, nil
	}

	vecs, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding artifacts: %w", err)
	}

	if embeddingsDir != "" {
		if err := writeEmbeddingArtifacts(embeddingsDir, sources, vecs); err != nil {
			return 0, err
		}
	}

	records := make([]retrieval.Record, len(texts))
	for i := range texts {
		records[i] = retrieval.Record{
			ID:        uuid.New().String(),
			Source:    sources[i],
			Text:      texts[i],
			Metadata:  artifactMetadata(sources[i]),
			Embedding: vecs[i],
			CreatedAt: time.Now().UTC(),
		}
	}
	if err := b.store.Insert(records); err != nil {
		return 0, fmt.Errorf("inserting artifact vectors: %w", err)
	}

	b.logger.Info("artifacts indexed", "dir", dir, "documents", len(records))
	return len(records), nil
}

// BuildFromPDFs indexes every PDF in dir as one document per file, with the
// file name doubling as the citation reference. Unreadable PDFs are skipped
// with a warning.
func (b *Builder) BuildFromPDFs(ctx context.Context, dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return 0, fmt.Errorf("listing pdfs: %w", err)
	}

	var texts []string
	var sources []string
	for _, path := range paths {
		text, err := extractPDFText(path)
		if err != nil {
			b.logger.Warn("skipping unreadable pdf", "path", path, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		texts = append(texts, text)
		sources = append(sources, filepath.Base(path))
	}
	if len(texts) == 0 {
		return 0, nil
	}

	vecs, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding pdfs: %w", err)
	}

	records := make([]retrieval.Record, len(texts))
	for i := range texts {
		name := sources[i]
		records[i] = retrieval.Record{
			ID:     uuid.New().String(),
			Source: name,
			Text:   texts[i],
			Metadata: map[string]string{
				"source":    name,
				"reference": strings.TrimSuffix(name, filepath.Ext(name)),
			},
			Embedding: vecs[i],
			CreatedAt: time.Now().UTC(),
		}
	}
	if err := b.store.Insert(records); err != nil {
		return 0, fmt.Errorf("inserting pdf vectors: %w", err)
	}

	b.logger.Info("reference pdfs indexed", "dir", dir, "documents", len(records))
	return len(records), nil
}

// combineArtifact renders an artifact's records as one text block: one line
// per record, fields as "key: value" pairs in the artifact's own order.
func combineArtifact(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var records []*orderedmap.OrderedMap[string, string]
	if err := json.Unmarshal(data, &records); err != nil {
		return "", fmt.Errorf("parsing artifact: %w", err)
	}

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		var fields []string
		for pair := rec.Oldest(); pair != nil; pair = pair.Next() {
			fields = append(fields, pair.Key+": "+pair.Value)
		}
		lines = append(lines, strings.Join(fields, " "))
	}
	return strings.Join(lines, "\n"), nil
}

func artifactMetadata(source string) map[string]string {
	meta := map[string]string{"source": source}
	if m := activityPattern.FindStringSubmatch(source); m != nil {
		meta["activity_id"] = m[1]
	}
	return meta
}

func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeEmbeddingArtifacts(dir string, sources []string, vecs [][]float32) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating embeddings directory: %w", err)
	}
	for i, source := range sources {
		name := strings.TrimSuffix(source, ".json") + "_embeddings.json"
		data, err := json.MarshalIndent([][]float32{vecs[i]}, "", "    ")
		if err != nil {
			return fmt.Errorf("marshalling embeddings for %s: %w", source, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("writing embeddings for %s: %w", source, err)
		}
	}
	return nil
}
