package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/agrolab/hydrochat/internal/answer"
	"github.com/agrolab/hydrochat/internal/extract"
	"github.com/agrolab/hydrochat/internal/interaction"
	"github.com/agrolab/hydrochat/internal/storage"
)

type fakeAnswerer struct {
	result answer.Result
}

func (f *fakeAnswerer) Answer(ctx context.Context, query string) answer.Result {
	return f.result
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return Deps{
		Answerer:  &fakeAnswerer{result: answer.Result{Response: "resposta"}},
		Extractor: extract.NewService(t.TempDir()),
		Rebuild:   func(ctx context.Context) (int, error) { return 3, nil },
		Log:       interaction.NewLog(10),
		Store:     store,
	}
}

func doRequest(t *testing.T, deps Deps, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	NewHandler(deps).ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rr.Body.String())
	}
	return payload
}

func TestChat_Success(t *testing.T) {
	rr := doRequest(t, newTestDeps(t), "GET", "/chat?string=como+esta+o+ph", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["response"] != "resposta" {
		t.Errorf("unexpected payload: %v", payload)
	}
}

func TestChat_ErrorStaysInPayload(t *testing.T) {
	deps := newTestDeps(t)
	deps.Answerer = &fakeAnswerer{result: answer.Result{Error: "o índice ainda não foi construído"}}

	rr := doRequest(t, deps, "GET", "/chat?string=pergunta", nil, "")
	// The error envelope rides a success status; callers inspect the body.
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on failure", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["error"] == "" || payload["response"] != nil {
		t.Errorf("expected error-only payload, got %v", payload)
	}
}

func TestChat_MissingQueryParam(t *testing.T) {
	rr := doRequest(t, newTestDeps(t), "GET", "/chat", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if payload := decodeBody(t, rr); payload["error"] == nil {
		t.Errorf("expected error payload, got %v", payload)
	}
}

func TestExtract_UploadsWorkbook(t *testing.T) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "tenda1")
	f.SetSheetRow("tenda1", "A1", &[]string{"data", "hora", "ph"})
	f.SetSheetRow("tenda1", "A2", &[]string{"2024-03-01", "09:15:00", "6.1"})
	var workbook bytes.Buffer
	if err := f.Write(&workbook); err != nil {
		t.Fatalf("building workbook: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "export.xlsx")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	part.Write(workbook.Bytes())
	mw.Close()

	rr := doRequest(t, newTestDeps(t), "POST", "/extract", &body, mw.FormDataContentType())
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["error"] != nil {
		t.Fatalf("unexpected error: %v", payload["error"])
	}
	report := payload["report"].(map[string]any)
	artifacts := report["artifacts"].([]any)
	if len(artifacts) != 1 {
		t.Errorf("expected 1 artifact, got %d", len(artifacts))
	}
}

func TestExtract_MissingFile(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.Close()

	rr := doRequest(t, newTestDeps(t), "POST", "/extract", &body, mw.FormDataContentType())
	if payload := decodeBody(t, rr); payload["error"] == nil {
		t.Errorf("expected error payload, got %v", payload)
	}
}

func TestIndex_ReportsDocumentCount(t *testing.T) {
	rr := doRequest(t, newTestDeps(t), "POST", "/index", nil, "")
	payload := decodeBody(t, rr)
	if payload["documents"] != float64(3) {
		t.Errorf("expected 3 documents, got %v", payload)
	}
}

func TestIndex_FailureIsPayloadError(t *testing.T) {
	deps := newTestDeps(t)
	deps.Rebuild = func(ctx context.Context) (int, error) { return 0, errors.New("sem artefatos") }

	rr := doRequest(t, deps, "POST", "/index", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if payload := decodeBody(t, rr); payload["error"] == nil {
		t.Errorf("expected error payload, got %v", payload)
	}
}

func TestInteractions_ListAndFlush(t *testing.T) {
	deps := newTestDeps(t)
	answeredAt := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	deps.Log.Record(interaction.Interaction{
		ID:                "i1",
		CreatedAt:         answeredAt,
		Question:          "q",
		Answer:            "a",
		RetrievedContexts: []string{"c"},
		Contexts:          []string{"c"},
	})

	rr := doRequest(t, deps, "GET", "/interactions", nil, "")
	payload := decodeBody(t, rr)
	list := payload["interactions"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected 1 interaction, got %d", len(list))
	}
	entry := list[0].(map[string]any)
	if entry["question"] != "q" || entry["retrieved_contexts"] == nil {
		t.Errorf("unexpected interaction shape: %v", entry)
	}

	rr = doRequest(t, deps, "POST", "/interactions/flush", nil, "")
	if payload := decodeBody(t, rr); payload["flushed"] != float64(1) {
		t.Errorf("expected 1 flushed, got %v", payload)
	}

	persisted, err := deps.Store.ListInteractions(10)
	if err != nil {
		t.Fatalf("listing persisted: %v", err)
	}
	if len(persisted) != 1 || persisted[0].Question != "q" {
		t.Errorf("flush did not persist: %+v", persisted)
	}
	if !persisted[0].CreatedAt.Equal(answeredAt) {
		t.Errorf("persisted CreatedAt = %v, want answer time %v", persisted[0].CreatedAt, answeredAt)
	}
}

func TestHealth(t *testing.T) {
	rr := doRequest(t, newTestDeps(t), "GET", "/health", nil, "")
	if rr.Code != http.StatusOK || !bytes.Contains(rr.Body.Bytes(), []byte("ok")) {
		t.Errorf("health check failed: %d %s", rr.Code, rr.Body.String())
	}
}
