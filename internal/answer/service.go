// Package answer orchestrates the retrieval-augmented query pipeline:
// retrieve context, compose the grounded prompt, call the completion
// provider, and record the interaction.
package answer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agrolab/hydrochat/internal/composer"
	"github.com/agrolab/hydrochat/internal/interaction"
	"github.com/agrolab/hydrochat/internal/openai"
	"github.com/agrolab/hydrochat/internal/retrieval"
)

// Searcher is the retrieval surface the service needs.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]retrieval.Document, error)
	Ready() bool
}

// Completer invokes the completion provider with fixed parameters.
type Completer interface {
	Chat(ctx context.Context, params openai.ChatParams, prompt string) (string, error)
}

// Params are the fixed generation settings for every answer. Temperature
// is a pointer because zero is a valid setting; nil means the default.
type Params struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultParams mirror the production configuration of the legacy
// monitoring assistant.
func DefaultParams() Params {
	temp := 0.9
	return Params{
		Model:       "gpt-4o-mini",
		Temperature: &temp,
		MaxTokens:   1000,
		Timeout:     10 * time.Second,
	}
}

// Result is the outcome of an answer call: exactly one of Response or
// Error is set. Failures are part of the payload, never a fault that
// reaches the caller.
type Result struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Service answers free-text questions about the indexed cultivation data.
type Service struct {
	searcher  Searcher
	completer Completer
	log       *interaction.Log
	params    Params
	logger    *slog.Logger
}

// NewService creates a Service. Zero-valued params fields fall back to the
// defaults.
func NewService(searcher Searcher, completer Completer, log *interaction.Log, params Params) *Service {
	def := DefaultParams()
	if params.Model == "" {
		params.Model = def.Model
	}
	if params.Temperature == nil {
		params.Temperature = def.Temperature
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = def.MaxTokens
	}
	if params.Timeout == 0 {
		params.Timeout = def.Timeout
	}
	return &Service{
		searcher:  searcher,
		completer: completer,
		log:       log,
		params:    params,
		logger:    slog.Default(),
	}
}

// Answer runs the full pipeline for one query. Every failure — index not
// built, provider error, timeout — comes back as Result.Error.
func (s *Service) Answer(ctx context.Context, query string) Result {
	if !s.searcher.Ready() {
		return s.fail(query, retrieval.ErrIndexNotReady)
	}

	docs, err := s.searcher.Search(ctx, query, retrieval.DefaultTopK)
	if err != nil {
		return s.fail(query, err)
	}

	prompt := composer.Compose(docs, query)

	chatCtx, cancel := context.WithTimeout(ctx, s.params.Timeout)
	defer cancel()
	response, err := s.completer.Chat(chatCtx, openai.ChatParams{
		Model:       s.params.Model,
		Temperature: *s.params.Temperature,
		MaxTokens:   s.params.MaxTokens,
	}, prompt)
	if err != nil {
		return s.fail(query, err)
	}

	// Retrieval is run again so the logged context reflects index state at
	// answer time, not at prompt-composition time.
	logged, err := s.searcher.Search(ctx, query, retrieval.DefaultTopK)
	if err != nil {
		return s.fail(query, err)
	}

	contexts := make([]string, len(logged))
	for i, d := range logged {
		contexts[i] = d.Text
	}
	s.log.Record(interaction.Interaction{
		ID:                uuid.New().String(),
		Question:          query,
		Answer:            response,
		RetrievedContexts: contexts,
		Contexts:          contexts,
	})

	return Result{Response: response}
}

func (s *Service) fail(query string, err error) Result {
	msg := err.Error()
	if errors.Is(err, retrieval.ErrIndexNotReady) {
		msg = "o índice ainda não foi construído; processe o dataset primeiro"
	}
	s.logger.Warn("answer failed", "query", query, "error", err)
	return Result{Error: msg}
}
