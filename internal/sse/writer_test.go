package sse

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/extraction-engine/internal/domain"
)

func TestNewWriter_SetsStreamHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	_, err := NewWriter(rec)
	require.NoError(t, err)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}

func TestWriteEvent_FramesJSONPerSSE(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteEvent(domain.StreamEvent{
		Step:     domain.StepFetching,
		Status:   "fetching source content",
		Progress: 0.1,
	}))

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "data: "), "frame must start with data:")
	require.True(t, strings.HasSuffix(body, "\n\n"), "frame must end with a blank line")

	var ev domain.StreamEvent
	payload := strings.TrimSuffix(strings.TrimPrefix(body, "data: "), "\n\n")
	require.NoError(t, json.Unmarshal([]byte(payload), &ev))
	assert.Equal(t, domain.StepFetching, ev.Step)
	assert.Equal(t, 0.1, ev.Progress)
}

func TestWriteEvent_OmitsNonTerminalFields(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteEvent(domain.StreamEvent{
		Step:     domain.StepStarted,
		Status:   "starting extraction",
		Progress: 0.0,
	}))

	body := rec.Body.String()
	assert.NotContains(t, body, "draft_id")
	assert.NotContains(t, body, "success")
	assert.NotContains(t, body, "error_code")
}

func TestWriteEvent_MultipleFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteEvent(domain.StreamEvent{Step: domain.StepStarted, Progress: 0.0}))
	require.NoError(t, w.WriteEvent(domain.StreamEvent{Step: domain.StepFetching, Progress: 0.1}))

	frames := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	assert.Len(t, frames, 2)
}

// Oversized events are rejected outright, never truncated: nothing may reach
// the wire.
func TestWriteEvent_RejectsOversizedFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	err = w.WriteEvent(domain.StreamEvent{
		Step:   domain.StepFetching,
		Detail: strings.Repeat("x", MaxFrameSize),
	})
	require.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Empty(t, rec.Body.String())
}

type noFlushWriter struct {
	http.ResponseWriter
}

func TestNewWriter_RequiresFlusher(t *testing.T) {
	_, err := NewWriter(noFlushWriter{httptest.NewRecorder()})
	require.ErrorIs(t, err, ErrStreamingUnsupported)
}
