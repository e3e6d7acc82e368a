package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-key")
}

func TestEmbedBatch_OrderPreserved(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		// Respond out of order; the client must reassemble by index.
		resp := map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{2, 2}},
				{"index": 0, "embedding": []float32{1, 1}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	vecs, err := c.EmbedBatch(context.Background(), "text-embedding-ada-002", []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("vectors out of order: %v", vecs)
	}
}

func TestEmbedBatch_EmptyInputIsNoContent(t *testing.T) {
	c := New("http://localhost:1", "key")
	if _, err := c.EmbedBatch(context.Background(), "m", nil); !errors.Is(err, ErrNoContent) {
		t.Errorf("expected ErrNoContent, got %v", err)
	}
	if _, err := c.EmbedBatch(context.Background(), "m", []string{"  "}); !errors.Is(err, ErrNoContent) {
		t.Errorf("expected ErrNoContent for blank text, got %v", err)
	}
}

func TestChat_ReturnsContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Temperature != 0.9 || req.MaxTokens != 1000 {
			t.Errorf("generation params not forwarded: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "o pH está dentro da faixa"}},
			},
		})
	})

	params := ChatParams{Model: "gpt-4o-mini", Temperature: 0.9, MaxTokens: 1000}
	got, err := c.Chat(context.Background(), params, "como está o pH?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "o pH está dentro da faixa" {
		t.Errorf("unexpected content %q", got)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{"auth", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, KindAuth},
		{"rate limit", http.StatusTooManyRequests, `{"error":{"message":"quota"}}`, KindRateLimit},
		{"content policy", http.StatusBadRequest, `{"error":{"message":"no","code":"content_filter"}}`, KindContentPolicy},
		{"gateway timeout", http.StatusGatewayTimeout, ``, KindTimeout},
		{"plain api error", http.StatusInternalServerError, `boom`, KindAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Chat(context.Background(), ChatParams{Model: "m"}, "q")
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsKind(err, tt.kind) {
				t.Errorf("expected kind %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestTimeoutClassification(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Chat(ctx, ChatParams{Model: "m"}, "q")
	if !IsKind(err, KindTimeout) {
		t.Errorf("expected timeout kind, got %v", err)
	}
}
