package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":"not found"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAskServer(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /chat": `{"response":"A média de pH foi 6.1."}`,
	})

	answer, err := askServer(ctx, ts.client(), "qual foi o pH médio?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "A média de pH foi 6.1." {
		t.Errorf("answer = %q", answer)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "GET" {
		t.Errorf("method = %q, want GET", r.Method)
	}
	if !strings.HasPrefix(r.Path, "/chat?string=") {
		t.Errorf("path = %q, want /chat?string=...", r.Path)
	}
	if !strings.Contains(r.Path, "qual+foi+o+pH+m%C3%A9dio%3F") {
		t.Errorf("question not query-escaped: %q", r.Path)
	}
}

func TestAskServer_PayloadError(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /chat": `{"error":"o índice ainda não foi construído; processe o dataset primeiro"}`,
	})

	_, err := askServer(ctx, ts.client(), "oi")
	if err == nil {
		t.Fatal("expected error from payload")
	}
	if !strings.Contains(err.Error(), "índice") {
		t.Errorf("error = %v", err)
	}
}

func TestAskServer_NotReachable(t *testing.T) {
	client := &apiClient{
		baseURL:    "http://127.0.0.1:1",
		httpClient: &http.Client{},
	}

	_, err := askServer(ctx, client, "oi")
	if err == nil {
		t.Fatal("expected connection error")
	}
	if !strings.Contains(err.Error(), "hydrochat running") {
		t.Errorf("error should hint at a stopped server, got: %v", err)
	}
}

func TestIndexResponseDecoding(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /index": `{"message":"índice construído","documents":12}`,
	})

	resp, err := ts.client().post(ctx, "/index", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Error     string `json:"error"`
		Documents int    `json:"documents"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.Documents != 12 {
		t.Errorf("documents = %d, want 12", result.Documents)
	}
	if result.Error != "" {
		t.Errorf("unexpected error field: %q", result.Error)
	}
}

func TestServerAnswererRelaysPayloadErrors(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /chat": `{"error":"falha no provedor"}`,
	})

	_, err := serverAnswerer{ts.client()}.Answer(ctx, "pergunta")
	if err == nil {
		t.Fatal("payload errors must surface as errors so the bot falls back")
	}
}

func TestUploadSendsMultipartWorkbook(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /extract": `{"message":"processamento concluído","report":{"artifacts":[{"path":"estufa_2024-03-01_08-00-20-00.json","rows":2}]}}`,
	})

	path := filepath.Join(t.TempDir(), "dados.xlsx")
	if err := os.WriteFile(path, []byte("conteudo"), 0o644); err != nil {
		t.Fatalf("writing workbook: %v", err)
	}

	resp, err := ts.client().upload(ctx, "/extract", "file", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Report struct {
			Artifacts []struct {
				Rows int `json:"rows"`
			} `json:"artifacts"`
		} `json:"report"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(result.Report.Artifacts) != 1 || result.Report.Artifacts[0].Rows != 2 {
		t.Errorf("unexpected report: %+v", result.Report)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/extract" {
		t.Errorf("request = %s %s, want POST /extract", r.Method, r.Path)
	}
	if !strings.Contains(r.Body, `name="file"; filename="dados.xlsx"`) {
		t.Errorf("body is not a multipart file upload: %q", r.Body)
	}
	if !strings.Contains(r.Body, "conteudo") {
		t.Error("workbook bytes missing from upload body")
	}
}

func TestDecodeJSONRejectsHTTPErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().get(ctx, "/missing")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var v map[string]any
	if err := decodeJSON(resp, &v); err == nil {
		t.Fatal("expected error for 404 response")
	}
}
