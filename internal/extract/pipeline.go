package extract

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/extraction-engine/internal/domain"
	"github.com/platewise/extraction-engine/internal/draft"
	"github.com/platewise/extraction-engine/internal/observability"
	"github.com/platewise/extraction-engine/internal/token"
)

// Mode selects which pipeline variant a request runs. Routing is driven by
// this explicit flag, never by inspecting the shape of the source string.
type Mode string

const (
	ModeURL    Mode = "url"
	ModeImages Mode = "images"
)

// Request describes one extraction run.
type Request struct {
	OwnerID uuid.UUID
	Mode    Mode
	URL     string
	Images  [][]byte
	Prompt  *string
}

func (r Request) source() string {
	if r.Mode == ModeImages {
		return domain.SourceImages
	}
	return r.URL
}

// emitFn receives ordered progress events during a streaming run; nil on the
// single-shot path.
type emitFn func(domain.StreamEvent)

// Pipeline executes the fixed five-stage extraction sequence: acquire →
// infer → convert → persist → issue. Stage failure short-circuits the
// remaining transform stages, but persist and issue always run for some
// draft: a run never finishes without a draft and a token for it.
type Pipeline struct {
	logger    *observability.Logger
	fetcher   ContentFetcher
	engine    ExtractionEngine
	converter SchemaConverter
	store     draft.Store
	issuer    *token.Issuer
	draftTTL  time.Duration
}

// NewPipeline creates a pipeline over the given collaborators. A zero
// draftTTL falls back to domain.DefaultDraftTTL.
func NewPipeline(
	logger *observability.Logger,
	fetcher ContentFetcher,
	engine ExtractionEngine,
	converter SchemaConverter,
	store draft.Store,
	issuer *token.Issuer,
	draftTTL time.Duration,
) *Pipeline {
	if logger == nil {
		logger = observability.Nop()
	}
	if draftTTL <= 0 {
		draftTTL = domain.DefaultDraftTTL
	}
	return &Pipeline{
		logger:    logger,
		fetcher:   fetcher,
		engine:    engine,
		converter: converter,
		store:     store,
		issuer:    issuer,
		draftTTL:  draftTTL,
	}
}

func (p *Pipeline) emit(emit emitFn, ev domain.StreamEvent) {
	if emit != nil {
		emit(ev)
	}
}

// run executes one extraction. The returned outcome is always fully
// populated on the taxonomy paths; a non-nil error means a fatal
// infrastructure failure (draft persistence or token issuance) where no
// draft/token pair exists.
func (p *Pipeline) run(ctx context.Context, req Request, emit emitFn) (*domain.ExtractionOutcome, error) {
	log := p.logger.WithOwner(req.OwnerID.String())
	started := time.Now()

	p.emit(emit, domain.StreamEvent{Step: domain.StepStarted, Status: "starting extraction", Progress: 0.0})

	// Stage 1: acquire.
	p.emit(emit, domain.StreamEvent{Step: domain.StepFetching, Status: "fetching source content", Progress: 0.1})
	var content string
	switch req.Mode {
	case ModeURL:
		fetched, err := p.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			log.Warn().Str("url", req.URL).Err(err).Msg("content fetch failed")
			return p.fail(ctx, req, domain.StepFetching, domain.FetchFailed("could not fetch source", err), emit)
		}
		if strings.TrimSpace(fetched) == "" {
			return p.fail(ctx, req, domain.StepFetching, domain.EmptyContent("source yielded no usable content"), emit)
		}
		content = fetched
	case ModeImages:
		if len(req.Images) == 0 {
			return p.fail(ctx, req, domain.StepFetching, domain.EmptyContent("no images supplied"), emit)
		}
	}
	p.emit(emit, domain.StreamEvent{Step: domain.StepSanitizing, Status: "cleaning source content", Progress: 0.25})

	// Stage 2: infer.
	p.emit(emit, domain.StreamEvent{Step: domain.StepInferring, Status: "extracting recipe", Progress: 0.5})
	var (
		result *StructuredResult
		err    error
	)
	if req.Mode == ModeImages {
		result, err = p.engine.InferFromImages(ctx, req.Images, req.Prompt)
	} else {
		result, err = p.engine.InferFromText(ctx, content, req.Prompt)
	}
	if err != nil {
		log.Warn().Err(err).Msg("extraction engine failed")
		return p.fail(ctx, req, domain.StepInferring, domain.AgentError("inference failed", err), emit)
	}
	if result == nil {
		// Clean no-recipe answer: persist the typed reason and finish with a
		// complete event rather than an error.
		return p.notFound(ctx, req, emit)
	}

	// Stage 3: convert.
	p.emit(emit, domain.StreamEvent{Step: domain.StepConverting, Status: "building recipe draft", Progress: 0.75})
	payload, err := p.converter.Convert(result, req.source())
	if err != nil {
		log.Warn().Err(err).Msg("schema conversion failed")
		return p.fail(ctx, req, domain.StepConverting, domain.ConvertFailed("could not map extraction result", err), emit)
	}

	// Stages 4-5: persist + issue.
	d, tok, err := p.persistAndIssue(ctx, req, domain.KindRecipe, payload)
	if err != nil {
		p.fatal(emit, err)
		return nil, err
	}

	log.Info().
		Str("draft_id", d.ID.String()).
		Dur("elapsed", time.Since(started)).
		Msg("extraction succeeded")

	success := true
	p.emit(emit, domain.StreamEvent{
		Step:     domain.StepComplete,
		Status:   "extraction complete",
		Progress: 1.0,
		DraftID:  d.ID.String(),
		Success:  &success,
	})
	return &domain.ExtractionOutcome{Draft: d, Token: tok, Success: true}, nil
}

// fail converts a typed stage failure into a failure draft plus token, and
// on the streaming path emits the single terminal error event naming the
// failed stage.
func (p *Pipeline) fail(ctx context.Context, req Request, step string, derr *domain.DomainError, emit emitFn) (*domain.ExtractionOutcome, error) {
	payload := map[string]any{
		"error":  string(derr.Code),
		"detail": derr.Message,
	}
	d, tok, err := p.persistAndIssue(ctx, req, domain.KindRecipeFailure, payload)
	if err != nil {
		p.fatal(emit, err)
		return nil, err
	}

	success := false
	p.emit(emit, domain.StreamEvent{
		Step:      step,
		Status:    domain.StatusError,
		Progress:  1.0,
		DraftID:   d.ID.String(),
		Success:   &success,
		ErrorCode: string(derr.Code),
		Detail:    derr.Message,
	})
	return &domain.ExtractionOutcome{Draft: d, Token: tok, Success: false, Message: string(derr.Code)}, nil
}

// notFound finishes a run where the engine cleanly found nothing: a failure
// draft is still written, but the stream ends with a complete event.
func (p *Pipeline) notFound(ctx context.Context, req Request, emit emitFn) (*domain.ExtractionOutcome, error) {
	payload := map[string]any{
		"error":  string(domain.CodeNotFound),
		"detail": "no recipe found in source content",
	}
	d, tok, err := p.persistAndIssue(ctx, req, domain.KindRecipeFailure, payload)
	if err != nil {
		p.fatal(emit, err)
		return nil, err
	}

	success := false
	p.emit(emit, domain.StreamEvent{
		Step:     domain.StepComplete,
		Status:   "no recipe found",
		Progress: 1.0,
		DraftID:  d.ID.String(),
		Success:  &success,
	})
	return &domain.ExtractionOutcome{Draft: d, Token: tok, Success: false, Message: string(domain.CodeNotFound)}, nil
}

func (p *Pipeline) persistAndIssue(ctx context.Context, req Request, kind domain.DraftKind, payload map[string]any) (*domain.Draft, string, error) {
	d, err := p.store.Create(ctx, draft.CreateParams{
		OwnerID: req.OwnerID,
		Kind:    kind,
		Payload: payload,
		Source:  req.source(),
		Prompt:  req.Prompt,
		TTL:     p.draftTTL,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("draft persistence failed")
		return nil, "", err
	}
	tok, err := p.issuer.Issue(d.ID, req.OwnerID)
	if err != nil {
		p.logger.Error().Str("draft_id", d.ID.String()).Err(err).Msg("token issuance failed")
		return nil, "", err
	}
	return d, tok, nil
}

// fatal emits the terminal event for an infrastructure failure where no
// draft/token pair exists. The raw error stays server-side.
func (p *Pipeline) fatal(emit emitFn, _ error) {
	success := false
	p.emit(emit, domain.StreamEvent{
		Step:      domain.StatusError,
		Status:    domain.StatusError,
		Progress:  1.0,
		Success:   &success,
		ErrorCode: string(domain.CodeUnexpected),
	})
}
