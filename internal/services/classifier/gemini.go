package classifier

import (
	"context"
	"fmt"

	"github.com/huangang/brandsentry/internal/config"
	"google.golang.org/genai"
)

type geminiCompleter struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int32
	temperature float32
}

func newGeminiCompleter(cfg *config.ClassifierConfig, model string) *geminiCompleter {
	return &geminiCompleter{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       model,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: float32(cfg.Temperature),
	}
}

func (c *geminiCompleter) complete(ctx context.Context, system, text string) (string, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction:  genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: SchemaMap(),
		Temperature:        genai.Ptr(c.temperature),
	}
	if c.maxTokens > 0 {
		genConfig.MaxOutputTokens = c.maxTokens
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, genai.Text(text), genConfig)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
