package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/brandsentry/internal/config"
	"github.com/huangang/brandsentry/pkg/logger"
)

// DefaultModels is the model used per provider when none is configured.
var DefaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"azure":     "gpt-4o-mini",
	"anthropic": "claude-sonnet-4-20250514",
	"ollama":    "llama3.1",
	"gemini":    "gemini-2.5-flash",
}

// completer sends one system+user exchange and returns the raw response body.
type completer interface {
	complete(ctx context.Context, system, text string) (string, error)
}

// Gateway implements Classifier on top of one configured provider.
type Gateway struct {
	provider  string
	model     string
	timeout   time.Duration
	maxInput  int
	completer completer
}

// NewGateway builds the gateway for cfg.Provider.
func NewGateway(cfg *config.ClassifierConfig) (*Gateway, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "openai"
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModels[provider]
	}

	var c completer
	switch provider {
	case "openai":
		c = newOpenAICompleter(cfg, model, false)
	case "azure":
		c = newOpenAICompleter(cfg, model, true)
	case "anthropic":
		c = newAnthropicCompleter(cfg, model)
	case "ollama":
		oc, err := newOllamaCompleter(cfg, model)
		if err != nil {
			return nil, err
		}
		c = oc
	case "gemini":
		c = newGeminiCompleter(cfg, model)
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", cfg.Provider)
	}

	return newGatewayWith(provider, model, cfg.Timeout, cfg.MaxInputLength, c), nil
}

func newGatewayWith(provider, model string, timeout time.Duration, maxInput int, c completer) *Gateway {
	return &Gateway{
		provider:  provider,
		model:     model,
		timeout:   timeout,
		maxInput:  maxInput,
		completer: c,
	}
}

func (g *Gateway) Provider() string { return g.provider }
func (g *Gateway) Model() string    { return g.model }

// Classify runs one bounded provider call. Every error is a *Failure.
func (g *Gateway) Classify(ctx context.Context, text string) (*Classification, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, g.fail(FailureInput, ErrEmptyInput)
	}
	if g.maxInput > 0 && len(text) > g.maxInput {
		text = truncateUTF8(text, g.maxInput)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	body, err := g.completer.complete(ctx, systemInstruction, text)
	latency := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, g.fail(FailureTimeout, err)
		}
		return nil, g.fail(FailureTransport, err)
	}

	if strings.TrimSpace(body) == "" {
		return nil, g.fail(FailureEmpty, ErrEmptyResponse)
	}

	result, err := DecodeResult([]byte(body))
	if err != nil {
		logger.Debug().Str("provider", g.provider).Str("body", preview(body, 300)).Msg("non-conforming classifier response")
		return nil, g.fail(FailureNonconforming, err)
	}

	return &Classification{
		Result:   *result,
		Provider: g.provider,
		Model:    g.model,
		Raw:      []byte(strings.TrimSpace(body)),
		Latency:  latency,
	}, nil
}

func (g *Gateway) fail(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Provider: g.provider, Err: err}
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return truncateUTF8(s, n) + "..."
}
