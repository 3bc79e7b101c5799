package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for fallback field extraction.
const DefaultModelName = "gemini-2.0-flash"

// GeminiExtractor asks Gemini to pull bookkeeping fields out of a free-text
// message that matched no structured dialect. It implements FieldExtractor.
type GeminiExtractor struct {
	model string
}

// NewGeminiExtractor creates an extractor for the given model, falling back
// to DefaultModelName when model is empty.
func NewGeminiExtractor(model string) *GeminiExtractor {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiExtractor{model: model}
}

// Extract sends the message to the model and returns a flat field map. The
// result is used for field extraction only; it never participates in dedup.
func (g *GeminiExtractor) Extract(ctx context.Context, body string) (map[string]string, error) {
	prompt :=
		"You are a bookkeeping assistant for a decentralized organization.\n" +
			"Members report sales, inventory movements, expenses and capital injections as chat messages.\n\n" +
			"Task: extract the event fields from the message below.\n" +
			"Output STRICT JSON only (no comments, no extra text, no Markdown fences).\n" +
			"Output a single JSON object with these string fields:\n" +
			"- \"kind\": one of \"SALE\", \"MOVEMENT\", \"EXPENSE\", \"CAPITAL_INJECTION\", or \"\" if none apply\n" +
			"- \"manager name\": sender/source of the event, or \"\"\n" +
			"- \"recipient name\": recipient/contributor, or \"\"\n" +
			"- \"inventory item\": currency or item identifier, or \"\"\n" +
			"- \"quantity\": the signed decimal amount as a string, or \"\"\n" +
			"- \"ledger\": the ledger shortcut if one is named, or \"\"\n\n" +
			"Message:\n" + body

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("GeminiExtractor: create client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("GeminiExtractor: generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("GeminiExtractor: empty response from model")
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &fields); err != nil {
		return nil, fmt.Errorf("GeminiExtractor: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	return fields, nil
}

// cleanModelJSON strips Markdown fences if the model ignored instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
