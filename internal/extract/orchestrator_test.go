package extract

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/extraction-engine/internal/domain"
)

func collect(t *testing.T, ch <-chan domain.StreamEvent) []domain.StreamEvent {
	t.Helper()
	var events []domain.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func steps(events []domain.StreamEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Step
	}
	return out
}

func urlRequest() Request {
	return Request{OwnerID: uuid.New(), Mode: ModeURL, URL: "https://example.com/recipe"}
}

func imagesRequest() Request {
	return Request{OwnerID: uuid.New(), Mode: ModeImages, Images: [][]byte{{0xff, 0xd8}}}
}

// assertWellFormed checks the stream invariants that hold for every run:
// monotonically non-decreasing progress ending at 1.0 and exactly one
// terminal event, in final position.
func assertWellFormed(t *testing.T, events []domain.StreamEvent) {
	t.Helper()
	require.NotEmpty(t, events)

	last := 0.0
	terminals := 0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Progress, last, "progress regressed at step %s", ev.Step)
		last = ev.Progress
		if ev.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals, "exactly one terminal event per run")
	assert.True(t, events[len(events)-1].Terminal(), "terminal event must be last")
	assert.Equal(t, 1.0, events[len(events)-1].Progress)
}

func TestStream_SuccessSequence(t *testing.T) {
	f := newFixture()

	events := collect(t, f.orchestrator().Stream(context.Background(), urlRequest()))

	assert.Equal(t, []string{
		domain.StepStarted, domain.StepFetching, domain.StepSanitizing,
		domain.StepInferring, domain.StepConverting, domain.StepComplete,
	}, steps(events))
	assertWellFormed(t, events)

	// Progress is strictly increasing across the six success events.
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Progress, events[i-1].Progress)
	}

	terminal := events[len(events)-1]
	require.NotNil(t, terminal.Success)
	assert.True(t, *terminal.Success)
	assert.NotEmpty(t, terminal.DraftID)
	assert.Empty(t, terminal.ErrorCode)
}

func TestStream_ImagesVariantSharesStepNames(t *testing.T) {
	f := newFixture()

	events := collect(t, f.orchestrator().Stream(context.Background(), imagesRequest()))

	assert.Equal(t, []string{
		domain.StepStarted, domain.StepFetching, domain.StepSanitizing,
		domain.StepInferring, domain.StepConverting, domain.StepComplete,
	}, steps(events))
	assert.Equal(t, 1, f.engine.imageCalls)
	assert.Zero(t, f.engine.textCalls)
	assert.Zero(t, f.fetcher.calls, "image runs never touch the fetcher")
}

func TestStream_NotFoundSkipsConverting(t *testing.T) {
	f := newFixture()
	f.engine.result = nil // clean no-recipe answer

	events := collect(t, f.orchestrator().Stream(context.Background(), urlRequest()))

	assert.Equal(t, []string{
		domain.StepStarted, domain.StepFetching, domain.StepSanitizing,
		domain.StepInferring, domain.StepComplete,
	}, steps(events))
	assertWellFormed(t, events)

	terminal := events[len(events)-1]
	require.NotNil(t, terminal.Success)
	assert.False(t, *terminal.Success)
	assert.NotEmpty(t, terminal.DraftID, "not-found runs still produce a draft")
	assert.Zero(t, f.converter.calls)
}

func TestStream_AgentErrorTerminal(t *testing.T) {
	f := newFixture()
	f.engine.result = nil
	f.engine.err = errBoom

	events := collect(t, f.orchestrator().Stream(context.Background(), urlRequest()))
	assertWellFormed(t, events)

	terminal := events[len(events)-1]
	assert.Equal(t, domain.StepInferring, terminal.Step)
	assert.Equal(t, string(domain.CodeAgentError), terminal.ErrorCode)
	assert.Equal(t, 1.0, terminal.Progress)
	assert.NotEmpty(t, terminal.DraftID)
}

func TestStream_FetchErrorTerminal(t *testing.T) {
	f := newFixture()
	f.fetcher.err = errBoom

	events := collect(t, f.orchestrator().Stream(context.Background(), urlRequest()))
	assertWellFormed(t, events)

	terminal := events[len(events)-1]
	assert.Equal(t, domain.StepFetching, terminal.Step)
	assert.Equal(t, string(domain.CodeFetchFailed), terminal.ErrorCode)
	assert.Zero(t, f.engine.textCalls, "failed fetch short-circuits inference")
}

func TestStream_EmptyContentTerminal(t *testing.T) {
	f := newFixture()
	f.fetcher.content = "   \n "

	events := collect(t, f.orchestrator().Stream(context.Background(), urlRequest()))
	assertWellFormed(t, events)

	terminal := events[len(events)-1]
	assert.Equal(t, string(domain.CodeEmptyContent), terminal.ErrorCode)
}

func TestStream_ConvertErrorTerminal(t *testing.T) {
	f := newFixture()
	f.converter.payload = nil
	f.converter.err = errBoom

	events := collect(t, f.orchestrator().Stream(context.Background(), urlRequest()))
	assertWellFormed(t, events)

	terminal := events[len(events)-1]
	assert.Equal(t, domain.StepConverting, terminal.Step)
	assert.Equal(t, string(domain.CodeConvertFailed), terminal.ErrorCode)
}

func TestStream_InvalidModeSingleTerminal(t *testing.T) {
	f := newFixture()

	events := collect(t, f.orchestrator().Stream(context.Background(), Request{
		OwnerID: uuid.New(),
		Mode:    Mode("2f5a1f6e-draft-id"),
	}))

	require.Len(t, events, 1)
	assert.Equal(t, string(domain.CodeInvalidMode), events[0].ErrorCode)
	assert.Equal(t, 1.0, events[0].Progress)
	assert.Zero(t, f.fetcher.calls)
	assert.Zero(t, f.engine.textCalls)
}

func TestStream_PersistFailureEmitsUnexpected(t *testing.T) {
	f := newFixture()
	f.store.createErr = errBoom

	events := collect(t, f.orchestrator().Stream(context.Background(), urlRequest()))
	assertWellFormed(t, events)

	terminal := events[len(events)-1]
	assert.Equal(t, string(domain.CodeUnexpected), terminal.ErrorCode)
	assert.Empty(t, terminal.DraftID, "no draft exists when persistence fails")
}

func TestStream_CancelledContextStopsRun(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := f.orchestrator().Stream(ctx, urlRequest())

	// The channel must still close; drained events are whatever fit before
	// cancellation won the select.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream channel never closed after cancellation")
		}
	}
}

func TestExtractFromURL_Success(t *testing.T) {
	f := newFixture()

	outcome, err := f.orchestrator().ExtractFromURL(context.Background(), uuid.New(), "https://example.com/recipe", nil)
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Empty(t, outcome.Message)
	require.NotNil(t, outcome.Draft)
	assert.Equal(t, domain.KindRecipe, outcome.Draft.Kind)
	assert.Equal(t, f.converter.payload, outcome.Draft.Payload)
	assert.Equal(t, "https://example.com/recipe", outcome.Draft.Source)
	assert.Equal(t, outcome.Draft.CreatedAt.Add(time.Hour), outcome.Draft.ExpiresAt)

	// The token is real and scoped to exactly this draft and owner.
	verified, err := f.issuer.Verify(outcome.Token)
	require.NoError(t, err)
	assert.Equal(t, outcome.Draft.ID, verified.DraftID)
	assert.Equal(t, outcome.Draft.OwnerID, verified.OwnerID)
}

func TestExtractFromURL_EmptyContentOutcome(t *testing.T) {
	f := newFixture()
	f.fetcher.content = ""

	outcome, err := f.orchestrator().ExtractFromURL(context.Background(), uuid.New(), "https://example.com/empty", nil)
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.Equal(t, "empty_html", outcome.Message)
	require.NotNil(t, outcome.Draft)
	assert.Equal(t, domain.KindRecipeFailure, outcome.Draft.Kind)
	assert.Equal(t, "empty_html", outcome.Draft.Payload["error"])
	assert.NotEmpty(t, outcome.Token)
}

func TestExtractFromURL_FetchFailedOutcome(t *testing.T) {
	f := newFixture()
	f.fetcher.err = errBoom

	outcome, err := f.orchestrator().ExtractFromURL(context.Background(), uuid.New(), "https://example.com/down", nil)
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.Equal(t, "fetch_failed", outcome.Message)
	assert.Equal(t, "fetch_failed", outcome.Draft.Payload["error"])
}

func TestExtractFromURL_NotFoundOutcome(t *testing.T) {
	f := newFixture()
	f.engine.result = nil

	outcome, err := f.orchestrator().ExtractFromURL(context.Background(), uuid.New(), "https://example.com/blog", nil)
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.Equal(t, "recipe_not_found", outcome.Message)
	assert.Equal(t, domain.KindRecipeFailure, outcome.Draft.Kind)
	assert.NotEmpty(t, outcome.Token)
}

func TestExtractFromURL_PersistFailurePropagates(t *testing.T) {
	f := newFixture()
	f.store.createErr = errBoom

	_, err := f.orchestrator().ExtractFromURL(context.Background(), uuid.New(), "https://example.com/recipe", nil)
	require.Error(t, err)
}

func TestExtractFromImages_Success(t *testing.T) {
	f := newFixture()
	prompt := "use metric units"

	outcome, err := f.orchestrator().ExtractFromImages(context.Background(), uuid.New(), [][]byte{{0xff}}, &prompt)
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, domain.SourceImages, outcome.Draft.Source)
	require.NotNil(t, outcome.Draft.Prompt)
	assert.Equal(t, prompt, *outcome.Draft.Prompt)
	require.NotNil(t, f.engine.lastPrompt)
	assert.Equal(t, prompt, *f.engine.lastPrompt)
}

func TestExtractFromImages_NoImagesIsEmptyContent(t *testing.T) {
	f := newFixture()

	outcome, err := f.orchestrator().ExtractFromImages(context.Background(), uuid.New(), nil, nil)
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.Equal(t, "empty_html", outcome.Message)
}

// Failure drafts are real drafts: fetchable through the store under the
// owner, with the typed reason in the payload.
func TestFailureDraftIsRetrievable(t *testing.T) {
	f := newFixture()
	f.engine.err = errBoom
	owner := uuid.New()

	outcome, err := f.orchestrator().ExtractFromURL(context.Background(), owner, "https://example.com/recipe", nil)
	require.NoError(t, err)

	stored, err := f.store.Get(context.Background(), outcome.Draft.ID, &owner)
	require.NoError(t, err)
	assert.Equal(t, "agent_error", stored.Payload["error"])
}
