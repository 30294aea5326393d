// Package extract orchestrates the five-stage AI extraction pipeline.
package extract

import (
	"context"
)

// StructuredResult is the candidate output of the extraction engine before
// schema conversion. Fields is whatever structure the model produced; Raw
// preserves the model's verbatim answer for failure payloads and debugging.
type StructuredResult struct {
	Fields map[string]any
	Raw    string
}

// ContentFetcher acquires sanitized text content for a source URL. It returns
// an error on network or validation failure; a reachable source with nothing
// usable on it comes back as an empty string, which the pipeline reports
// separately from a failed fetch.
type ContentFetcher interface {
	Fetch(ctx context.Context, source string) (string, error)
}

// ExtractionEngine runs model inference over acquired content. A (nil, nil)
// return is the distinguished "no extractable content found" signal: the
// engine completed cleanly and there is simply no recipe there. Errors mean
// the inference itself failed.
type ExtractionEngine interface {
	InferFromText(ctx context.Context, content string, prompt *string) (*StructuredResult, error)
	InferFromImages(ctx context.Context, images [][]byte, prompt *string) (*StructuredResult, error)
}

// SchemaConverter maps a candidate result into the canonical recipe payload.
type SchemaConverter interface {
	Convert(res *StructuredResult, source string) (map[string]any, error)
}
