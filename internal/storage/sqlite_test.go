package storage

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesMigrations(t *testing.T) {
	s := openTestStore(t)
	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("listing migrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Errorf("expected migration 1 applied, got %v", versions)
	}
}

func TestSaveInteractions_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := Interaction{
		ID:                "abc",
		CreatedAt:         time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Question:          "como está o pH?",
		Answer:            "dentro da faixa",
		RetrievedContexts: []string{"doc um", "doc dois"},
		Contexts:          []string{"doc um", "doc dois"},
	}
	if err := s.SaveInteractions([]Interaction{in}); err != nil {
		t.Fatalf("saving: %v", err)
	}

	got, err := s.GetInteraction("abc")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, in)
	}
}

func TestSaveInteractions_RepeatedFlushIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	items := []Interaction{
		{ID: "a", Question: "q1", Answer: "a1", RetrievedContexts: []string{"c"}, Contexts: []string{"c"}},
		{ID: "b", Question: "q2", Answer: "a2", RetrievedContexts: []string{}, Contexts: []string{}},
	}
	if err := s.SaveInteractions(items); err != nil {
		t.Fatalf("first flush: %v", err)
	}
	// Second flush includes an overlap plus one new entry.
	items = append(items, Interaction{ID: "c", Question: "q3", Answer: "a3", RetrievedContexts: []string{}, Contexts: []string{}})
	if err := s.SaveInteractions(items); err != nil {
		t.Fatalf("second flush: %v", err)
	}

	all, err := s.ListInteractions(10)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 interactions after overlapping flushes, got %d", len(all))
	}
}

func TestGetInteraction_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetInteraction("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
