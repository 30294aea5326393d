// Package convert maps candidate extraction results to the canonical recipe
// payload.
package convert

import (
	"fmt"
	"strings"

	"github.com/platewise/extraction-engine/internal/extract"
)

// RecipeConverter implements extract.SchemaConverter for recipe drafts.
type RecipeConverter struct{}

// NewRecipeConverter creates a recipe converter.
func NewRecipeConverter() *RecipeConverter {
	return &RecipeConverter{}
}

// Convert builds the canonical recipe payload from a candidate result. A
// candidate with no name or no ingredients is not mappable and fails with an
// error rather than producing an unusable draft.
func (c *RecipeConverter) Convert(res *extract.StructuredResult, source string) (map[string]any, error) {
	if res == nil || res.Fields == nil {
		return nil, fmt.Errorf("nil extraction result")
	}

	name := stringField(res.Fields, "name")
	if name == "" {
		return nil, fmt.Errorf("candidate recipe has no name")
	}

	ingredients := stringSlice(res.Fields["ingredients"])
	if len(ingredients) == 0 {
		return nil, fmt.Errorf("candidate recipe has no ingredients")
	}
	instructions := stringSlice(res.Fields["instructions"])

	payload := map[string]any{
		"name":         name,
		"ingredients":  ingredients,
		"instructions": instructions,
		"source_url":   source,
	}
	for _, key := range []string{"description", "prep_time", "cook_time", "total_time", "yield"} {
		if v := stringField(res.Fields, key); v != "" {
			payload[key] = v
		}
	}
	return payload, nil
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	default:
		return ""
	}
}

// stringSlice normalizes a JSON array into trimmed non-empty strings. Models
// occasionally return objects per item; those are flattened to their values.
func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case string:
			if s := strings.TrimSpace(it); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			parts := make([]string, 0, len(it))
			for _, val := range it {
				if s, ok := val.(string); ok && strings.TrimSpace(s) != "" {
					parts = append(parts, strings.TrimSpace(s))
				}
			}
			if len(parts) > 0 {
				out = append(out, strings.Join(parts, " "))
			}
		}
	}
	return out
}
