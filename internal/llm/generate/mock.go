package generate

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/matthieukhl/loom/internal/types"
)

// MockGenerator answers intent prompts from keywords so the server can run
// without an API key.
type MockGenerator struct {
	model string
	delay time.Duration
}

func NewMockGenerator(model string) *MockGenerator {
	return &MockGenerator{model: model, delay: 50 * time.Millisecond}
}

// WithDelay simulates a slow upstream.
func (g *MockGenerator) WithDelay(d time.Duration) *MockGenerator {
	g.delay = d
	return g
}

func (g *MockGenerator) Complete(ctx context.Context, prompt string, opts map[string]any) (string, error) {
	select {
	case <-time.After(g.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	message := strings.ToLower(lastQuoted(prompt))

	response := map[string]any{"intent": "unknown"}
	switch {
	case strings.Contains(message, "checkout"):
		response["intent"] = "checkout"
	case strings.Contains(message, "blazer"):
		response = map[string]any{"intent": "browse", "category": "blazer"}
	case strings.Contains(message, "dress"):
		response = map[string]any{"intent": "browse", "category": "dress"}
	case strings.Contains(message, "jeans"):
		response = map[string]any{"intent": "browse", "category": "jeans"}
	case hasWord(message, "hello"), hasWord(message, "hi"), hasWord(message, "hey"):
		response["intent"] = "greeting"
	}

	b, _ := json.Marshal(response)
	// Real models like to wrap JSON in fences; the resolver must cope.
	return "```json\n" + string(b) + "\n```", nil
}

func (g *MockGenerator) Model() string {
	return g.model + "-mock"
}

func hasWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if strings.Trim(w, ".,!?") == word {
			return true
		}
	}
	return false
}

// lastQuoted returns the text inside the last pair of double quotes, which is
// where the intent prompt places the shopper message.
func lastQuoted(prompt string) string {
	end := strings.LastIndex(prompt, `"`)
	if end <= 0 {
		return prompt
	}
	start := strings.LastIndex(prompt[:end], `"`)
	if start < 0 {
		return prompt
	}
	return prompt[start+1 : end]
}

// Compile-time interface check
var _ types.Generator = (*MockGenerator)(nil)
