package llm

import (
	"fmt"

	"github.com/matthieukhl/loom/internal/config"
	"github.com/matthieukhl/loom/internal/llm/generate"
	"github.com/matthieukhl/loom/internal/types"
)

// NewGenerator creates a generator based on configuration. A provider of
// "none" yields a nil generator, which makes the intent resolver go straight
// to the fallback parser.
func NewGenerator(cfg *config.LLMConfig) (types.Generator, error) {
	g := cfg.Generator
	switch g.Provider {
	case "gemini":
		return checked(generate.NewGeminiGenerator(g.Model, g.APIKeyEnv, g.APIKey))
	case "openai":
		return checked(generate.NewOpenAIGenerator(g.Model, g.APIKeyEnv, g.APIKey))
	case "anthropic":
		return checked(generate.NewAnthropicGenerator(g.Model, g.APIKeyEnv, g.APIKey))
	case "mock":
		return generate.NewMockGenerator(g.Model), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported generator provider: %s", g.Provider)
	}
}

// checked keeps a failed constructor from leaking a typed nil.
func checked[G types.Generator](gen G, err error) (types.Generator, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	return gen, nil
}
