package extract

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/extraction-engine/internal/domain"
	"github.com/platewise/extraction-engine/internal/draft"
	"github.com/platewise/extraction-engine/internal/observability"
	"github.com/platewise/extraction-engine/internal/token"
)

// Test doubles shared by the pipeline and orchestrator tests.

type fakeFetcher struct {
	content string
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(ctx context.Context, source string) (string, error) {
	f.calls++
	return f.content, f.err
}

type fakeEngine struct {
	result     *StructuredResult
	err        error
	textCalls  int
	imageCalls int
	lastPrompt *string
}

func (e *fakeEngine) InferFromText(ctx context.Context, content string, prompt *string) (*StructuredResult, error) {
	e.textCalls++
	e.lastPrompt = prompt
	return e.result, e.err
}

func (e *fakeEngine) InferFromImages(ctx context.Context, images [][]byte, prompt *string) (*StructuredResult, error) {
	e.imageCalls++
	e.lastPrompt = prompt
	return e.result, e.err
}

type fakeConverter struct {
	payload map[string]any
	err     error
	calls   int
}

func (c *fakeConverter) Convert(res *StructuredResult, source string) (map[string]any, error) {
	c.calls++
	return c.payload, c.err
}

// memStore is an in-memory draft.Store for pipeline tests.
type memStore struct {
	mu        sync.Mutex
	drafts    map[uuid.UUID]*domain.Draft
	createErr error
}

func newMemStore() *memStore {
	return &memStore{drafts: make(map[uuid.UUID]*domain.Draft)}
}

func (s *memStore) Create(ctx context.Context, p draft.CreateParams) (*domain.Draft, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := p.TTL
	if ttl == 0 {
		ttl = domain.DefaultDraftTTL
	}
	now := time.Now().UTC()
	d := &domain.Draft{
		ID:        uuid.New(),
		OwnerID:   p.OwnerID,
		Kind:      p.Kind,
		Payload:   p.Payload,
		Source:    p.Source,
		Prompt:    p.Prompt,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.drafts[d.ID] = d
	return d, nil
}

func (s *memStore) Get(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (*domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok || (owner != nil && d.OwnerID != *owner) {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok || (owner != nil && d.OwnerID != *owner) {
		return false, nil
	}
	delete(s.drafts, id)
	return true, nil
}

func (s *memStore) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	count := 0
	for id, d := range s.drafts {
		if d.Expired(now) {
			delete(s.drafts, id)
			count++
		}
	}
	return count, nil
}

// fixture bundles a pipeline with its fakes.
type fixture struct {
	fetcher   *fakeFetcher
	engine    *fakeEngine
	converter *fakeConverter
	store     *memStore
	issuer    *token.Issuer
	pipeline  *Pipeline
}

func newFixture() *fixture {
	f := &fixture{
		fetcher: &fakeFetcher{content: "<p>Shakshuka: eggs, tomatoes</p>"},
		engine: &fakeEngine{result: &StructuredResult{
			Fields: map[string]any{"name": "Shakshuka"},
			Raw:    `{"name":"Shakshuka"}`,
		}},
		converter: &fakeConverter{payload: map[string]any{
			"name":        "Shakshuka",
			"ingredients": []string{"eggs", "tomatoes"},
		}},
		store: newMemStore(),
	}
	f.issuer, _ = token.NewIssuer("pipeline-test-secret", time.Hour)
	f.pipeline = NewPipeline(
		observability.Nop(),
		f.fetcher, f.engine, f.converter,
		f.store, f.issuer, time.Hour,
	)
	return f
}

func (f *fixture) orchestrator() *Orchestrator {
	return NewOrchestrator(observability.Nop(), f.pipeline)
}

var errBoom = errors.New("boom")
