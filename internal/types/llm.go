package types

import "context"

// Generator produces text completions from prompts
type Generator interface {
	Complete(ctx context.Context, prompt string, opts map[string]any) (string, error)
	Model() string
}

// GenerationOptions contains options for text generation
type GenerationOptions struct {
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	System      string   `json:"system,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Map converts the options to the loose map accepted by Generator.Complete.
func (o GenerationOptions) Map() map[string]any {
	m := map[string]any{}
	if o.MaxTokens > 0 {
		m["max_tokens"] = o.MaxTokens
	}
	if o.Temperature > 0 {
		m["temperature"] = o.Temperature
	}
	if o.System != "" {
		m["system"] = o.System
	}
	if len(o.Stop) > 0 {
		m["stop"] = o.Stop
	}
	return m
}
