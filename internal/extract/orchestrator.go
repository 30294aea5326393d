package extract

import (
	"context"

	"github.com/google/uuid"

	"github.com/platewise/extraction-engine/internal/domain"
	"github.com/platewise/extraction-engine/internal/observability"
)

// streamBuffer bounds how far a run can get ahead of a slow consumer.
const streamBuffer = 16

// Orchestrator exposes the pipeline's two call shapes: single-shot calls
// returning one ExtractionOutcome, and a streaming call yielding an ordered
// event sequence that ends in exactly one terminal event.
type Orchestrator struct {
	logger   *observability.Logger
	pipeline *Pipeline
}

// NewOrchestrator creates a new extraction orchestrator.
func NewOrchestrator(logger *observability.Logger, pipeline *Pipeline) *Orchestrator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Orchestrator{logger: logger, pipeline: pipeline}
}

// ExtractFromURL runs the URL pipeline variant once.
func (o *Orchestrator) ExtractFromURL(ctx context.Context, ownerID uuid.UUID, url string, prompt *string) (*domain.ExtractionOutcome, error) {
	return o.pipeline.run(ctx, Request{OwnerID: ownerID, Mode: ModeURL, URL: url, Prompt: prompt}, nil)
}

// ExtractFromImages runs the image pipeline variant once.
func (o *Orchestrator) ExtractFromImages(ctx context.Context, ownerID uuid.UUID, images [][]byte, prompt *string) (*domain.ExtractionOutcome, error) {
	return o.pipeline.run(ctx, Request{OwnerID: ownerID, Mode: ModeImages, Images: images, Prompt: prompt}, nil)
}

// Stream runs one extraction and returns a channel of ordered progress
// events. The channel is closed after the terminal event. If ctx is
// cancelled mid-run the run is abandoned at its next suspension point; any
// draft already written stays in place until its TTL sweeps it.
func (o *Orchestrator) Stream(ctx context.Context, req Request) <-chan domain.StreamEvent {
	ch := make(chan domain.StreamEvent, streamBuffer)

	go func() {
		defer close(ch)

		emit := func(ev domain.StreamEvent) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		}

		switch req.Mode {
		case ModeURL, ModeImages:
		default:
			success := false
			emit(domain.StreamEvent{
				Step:      domain.StepStarted,
				Status:    domain.StatusError,
				Progress:  1.0,
				Success:   &success,
				ErrorCode: string(domain.CodeInvalidMode),
				Detail:    "unknown extraction mode",
			})
			return
		}

		if _, err := o.pipeline.run(ctx, req, emit); err != nil {
			// The terminal event already carried a generic code; the full
			// detail belongs in the server log only.
			o.logger.Error().Str("mode", string(req.Mode)).Err(err).Msg("streaming extraction aborted")
		}
	}()

	return ch
}
