// Package engine provides the OpenAI-backed extraction engine collaborator.
package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/platewise/extraction-engine/internal/extract"
)

const systemPrompt = `You are a recipe extraction assistant. Extract the single
most complete recipe from the provided content and answer with one JSON object:
{"recipe_found": true, "name": ..., "description": ..., "ingredients": [...],
"instructions": [...], "prep_time": ..., "cook_time": ..., "total_time": ...,
"yield": ...}. Ingredients and instructions are arrays of plain strings. Omit
fields you cannot determine. If the content contains no recipe at all, answer
exactly {"recipe_found": false}. Answer with JSON only, no prose.`

// Config holds OpenAI client settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIEngine implements extract.ExtractionEngine using the official
// openai-go SDK, with chat completions for text sources and image parts for
// the vision variant.
type OpenAIEngine struct {
	model string
	opts  []option.RequestOption
}

// NewOpenAIEngine creates an engine from config.
func NewOpenAIEngine(cfg Config) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide engine.api_key")
	}
	if cfg.Model == "" {
		return nil, errors.New("engine model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIEngine{model: cfg.Model, opts: opts}, nil
}

// InferFromText runs extraction over sanitized page text.
func (e *OpenAIEngine) InferFromText(ctx context.Context, content string, prompt *string) (*extract.StructuredResult, error) {
	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	if prompt != nil && *prompt != "" {
		msgs = append(msgs, openai.SystemMessage(*prompt))
	}
	msgs = append(msgs, openai.UserMessage(content))

	return e.complete(ctx, msgs)
}

// InferFromImages runs extraction over an ordered set of normalized photos.
func (e *OpenAIEngine) InferFromImages(ctx context.Context, images [][]byte, prompt *string) (*extract.StructuredResult, error) {
	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	if prompt != nil && *prompt != "" {
		msgs = append(msgs, openai.SystemMessage(*prompt))
	}

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart("Extract the recipe shown in these photos."),
	}
	for _, img := range images {
		dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)
		parts = append(parts, openai.ImageContentPart(
			openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL},
		))
	}
	msgs = append(msgs, openai.UserMessage(parts))

	return e.complete(ctx, msgs)
}

func (e *OpenAIEngine) complete(ctx context.Context, msgs []openai.ChatCompletionMessageParamUnion) (*extract.StructuredResult, error) {
	client := openai.NewClient(e.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(e.model),
		Messages: msgs,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices")
	}

	return parseAnswer(resp.Choices[0].Message.Content)
}

// parseAnswer maps the model's JSON answer to a candidate result, returning
// the nil sentinel for an explicit no-recipe answer. Models wrap JSON in code
// fences often enough that they are stripped before parsing.
func parseAnswer(raw string) (*extract.StructuredResult, error) {
	cleaned := stripFences(raw)

	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("parse model answer: %w", err)
	}

	if found, ok := fields["recipe_found"].(bool); ok && !found {
		return nil, nil
	}

	return &extract.StructuredResult{Fields: fields, Raw: raw}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
