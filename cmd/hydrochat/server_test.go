package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agrolab/hydrochat/internal/config"
	"github.com/agrolab/hydrochat/internal/retrieval"
)

// fakeProvider is an OpenAI-compatible embeddings endpoint. When failing is
// set it returns 500; otherwise one fixed vector per input. onEmbed runs on
// every embeddings call.
type fakeProvider struct {
	failing bool
	onEmbed func()
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.onEmbed != nil {
		p.onEmbed()
	}
	if p.failing {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"internal"}}`))
		return
	}

	var req struct {
		Input []string `json:"input"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	type datum struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]datum, len(req.Input))
	for i := range req.Input {
		data[i] = datum{Index: i, Embedding: []float32{0.5, 0.5}}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func newTestApp(t *testing.T, provider *fakeProvider) *app {
	t.Helper()

	ts := httptest.NewServer(provider)
	t.Cleanup(ts.Close)

	artifactDir := t.TempDir()
	artifact := `[{"data":"2024-03-01","hora":"09:00:00","ph":"6.1"}]`
	if err := os.WriteFile(filepath.Join(artifactDir, "estufa_2024-03-01_08-00-20-00.json"), []byte(artifact), 0o644); err != nil {
		t.Fatalf("writing artifact: %v", err)
	}

	cfg := config.Config{
		OpenAI: config.OpenAIConfig{
			BaseURL:    ts.URL,
			APIKey:     "sk-test",
			Backend:    "openai",
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-ada-002",
		},
		Storage: config.StorageConfig{DataDir: ":memory:"},
		Ingest:  config.IngestConfig{ArtifactDir: artifactDir},
		Log:     config.LogConfig{InteractionCapacity: 10},
	}

	a, err := buildApp(cfg)
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	t.Cleanup(func() { a.store.Close() })
	return a
}

// bindSeedIndex simulates a previous successful rebuild: one record in the
// store and the retriever bound to it.
func bindSeedIndex(t *testing.T, a *app) {
	t.Helper()
	err := a.vectors.Insert([]retrieval.Record{{
		ID:        "seed",
		Source:    "antigo.json",
		Text:      "data: 2024-02-01 ph: 6.0",
		Embedding: []float32{1, 0},
		CreatedAt: time.Now().UTC(),
	}})
	if err != nil {
		t.Fatalf("seeding index: %v", err)
	}
	a.retriever.Bind(a.vectors)
}

func TestRebuildSuccess(t *testing.T) {
	a := newTestApp(t, &fakeProvider{})

	n, err := a.rebuild(ctx)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if n != 1 {
		t.Errorf("indexed %d documents, want 1", n)
	}
	if !a.retriever.Ready() {
		t.Error("retriever should be ready after a successful rebuild")
	}
}

func TestRebuildFailureLeavesIndexUnbound(t *testing.T) {
	a := newTestApp(t, &fakeProvider{failing: true})
	bindSeedIndex(t, a)

	if _, err := a.rebuild(ctx); err == nil {
		t.Fatal("expected rebuild to fail when the provider errors")
	}
	if a.retriever.Ready() {
		t.Error("retriever must not stay ready after a failed rebuild")
	}
	if _, err := a.retriever.Search(ctx, "ph", 0); err == nil {
		t.Error("searches after a failed rebuild must report index-not-ready, not empty results")
	}
}

func TestRebuildUnbindsBeforeTouchingStore(t *testing.T) {
	provider := &fakeProvider{}
	a := newTestApp(t, provider)
	bindSeedIndex(t, a)

	var readyDuringBuild bool
	provider.onEmbed = func() {
		readyDuringBuild = a.retriever.Ready()
	}

	if _, err := a.rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if readyDuringBuild {
		t.Error("retriever was still bound while the store was being rebuilt")
	}
}
