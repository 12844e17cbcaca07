package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/matthieukhl/loom/internal/types"
	"google.golang.org/genai"
)

// GeminiGenerator calls the Gemini API through the official genai SDK.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(model string, apiKeyEnv string, directAPIKey string) (*GeminiGenerator, error) {
	apiKey, err := resolveAPIKey(apiKeyEnv, directAPIKey)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Complete(ctx context.Context, prompt string, opts map[string]any) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(optString(opts, "system", defaultSystem), genai.RoleUser),
		MaxOutputTokens:   int32(optInt(opts, "max_tokens", 400)),
	}
	if val, ok := opts["temperature"].(float64); ok {
		t := float32(val)
		cfg.Temperature = &t
	}
	if val, ok := opts["json"].(bool); ok && val {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty candidate in response")
	}
	return sb.String(), nil
}

func (g *GeminiGenerator) Model() string {
	return g.model
}

// Compile-time interface check
var _ types.Generator = (*GeminiGenerator)(nil)
