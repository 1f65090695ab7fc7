package classifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/huangang/brandsentry/internal/config"
	"github.com/ollama/ollama/api"
)

type ollamaCompleter struct {
	client      *api.Client
	model       string
	temperature float64
}

func newOllamaCompleter(cfg *config.ClassifierConfig, model string) (*ollamaCompleter, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama base URL: %w", err)
	}
	return &ollamaCompleter{
		client:      api.NewClient(u, http.DefaultClient),
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

func (c *ollamaCompleter) complete(ctx context.Context, system, text string) (string, error) {
	stream := false
	var content strings.Builder
	err := c.client.Chat(ctx, &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: text},
		},
		Stream: &stream,
		Format: Schema(),
		Options: map[string]interface{}{
			"temperature": c.temperature,
		},
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return content.String(), nil
}
