package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/matthieukhl/loom/internal/models"
	"github.com/matthieukhl/loom/internal/types"
	"go.uber.org/zap"
)

const (
	minTimeout     = 4 * time.Second
	maxTimeout     = 6 * time.Second
	defaultTimeout = 5 * time.Second
)

var errNoGenerator = errors.New("no generator configured")

// Resolver extracts intents with the remote generator and falls back to the
// rule cascade on any failure. It never returns an error.
type Resolver struct {
	generator types.Generator
	parser    *Parser
	timeout   time.Duration
	logger    *zap.Logger

	calls     atomic.Int64
	fallbacks atomic.Int64
}

// Stats counts resolver outcomes since start.
type Stats struct {
	Calls     int64 `json:"calls"`
	Fallbacks int64 `json:"fallbacks"`
}

// NewResolver builds a resolver. A nil generator sends every message to the
// fallback parser. The timeout is clamped to the 4s..6s window.
func NewResolver(generator types.Generator, timeout time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case timeout <= 0:
		timeout = defaultTimeout
	case timeout < minTimeout:
		timeout = minTimeout
	case timeout > maxTimeout:
		timeout = maxTimeout
	}
	return &Resolver{
		generator: generator,
		parser:    NewParser(),
		timeout:   timeout,
		logger:    logger,
	}
}

// Timeout returns the effective upstream bound.
func (r *Resolver) Timeout() time.Duration {
	return r.timeout
}

// Stats returns a snapshot of the counters.
func (r *Resolver) Stats() Stats {
	return Stats{Calls: r.calls.Load(), Fallbacks: r.fallbacks.Load()}
}

// Resolve returns the intent for message.
func (r *Resolver) Resolve(ctx context.Context, message string, product *ProductContext) Intent {
	r.calls.Add(1)

	in, err := r.remote(ctx, message, product)
	if err == nil {
		return in
	}

	r.fallbacks.Add(1)
	if !errors.Is(err, errNoGenerator) {
		r.logger.Warn("intent extraction failed, using fallback parser", zap.Error(err))
	}
	return r.parser.Parse(message, product)
}

func (r *Resolver) remote(ctx context.Context, message string, product *ProductContext) (Intent, error) {
	if r.generator == nil {
		return Intent{}, errNoGenerator
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.generator.Complete(callCtx, buildPrompt(message, product), types.GenerationOptions{
		MaxTokens:   400,
		Temperature: 0.1,
	}.Map())
	if err != nil {
		return Intent{}, fmt.Errorf("failed to call %s: %w", r.generator.Model(), err)
	}

	in, err := ParseResponse(text)
	if err != nil {
		return Intent{}, err
	}

	if err := validateAgainstProduct(in, product); err != nil {
		return Intent{}, err
	}
	if in.Kind == KindAddToCart && in.Size == "" {
		in.Size = models.UniversalSize
	}
	return in, nil
}

// ParseResponse decodes a generator reply into an Intent. Code fences are
// stripped and only the text between the first '{' and the last '}' is read.
func ParseResponse(text string) (Intent, error) {
	object, err := ExtractJSON(text)
	if err != nil {
		return Intent{}, err
	}

	var in Intent
	if err := json.Unmarshal([]byte(object), &in); err != nil {
		return Intent{}, fmt.Errorf("failed to parse response: %w", err)
	}
	in.Kind = Kind(strings.ToLower(strings.TrimSpace(string(in.Kind))))
	if !in.Kind.valid() {
		return Intent{}, fmt.Errorf("unknown intent kind %q", in.Kind)
	}

	in.normalize()
	in.Source = SourceNLU
	return in, nil
}

// ExtractJSON strips code fences from a model reply and returns the text
// between the first '{' and the last '}'.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty response")
	}
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object in response")
	}
	return text[start : end+1], nil
}

// validateAgainstProduct rejects product-bound intents the fallback parser is
// better placed to answer.
func validateAgainstProduct(in Intent, product *ProductContext) error {
	switch in.Kind {
	case KindAddToCart:
		if product == nil {
			return errors.New("add_to_cart without an active product")
		}
		if sizes := product.RealSizes(); len(sizes) > 0 && !product.HasSize(in.Size) {
			return fmt.Errorf("add_to_cart with undeclared size %q", in.Size)
		}
	case KindProductQuestion:
		if product == nil {
			return errors.New("product_question without an active product")
		}
	}
	return nil
}
