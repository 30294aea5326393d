// Package sse frames stream events for the text/event-stream wire format.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/platewise/extraction-engine/internal/domain"
)

// MaxFrameSize is the hard per-event ceiling. Oversized events are a contract
// violation by the emitting stage; this layer rejects them outright and never
// truncates.
const MaxFrameSize = 16 * 1024

// ErrFrameTooLarge indicates an event exceeded MaxFrameSize once framed.
var ErrFrameTooLarge = errors.New("sse frame exceeds size ceiling")

// ErrStreamingUnsupported indicates the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("response writer does not support streaming")

// Writer emits JSON stream events as SSE data frames, one JSON object per
// frame, each frame terminated by a blank line and flushed immediately.
type Writer struct {
	w http.ResponseWriter
	f http.Flusher
}

// NewWriter prepares w for event streaming and writes the SSE headers.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &Writer{w: w, f: f}, nil
}

// WriteEvent frames and flushes one event.
func (s *Writer) WriteEvent(ev domain.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}

	// "data: " + payload + "\n\n"
	if len(data)+8 > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	s.f.Flush()
	return nil
}
