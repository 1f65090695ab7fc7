package classifier

import (
	"context"
	"errors"

	"github.com/huangang/brandsentry/internal/config"
	"github.com/sashabaranov/go-openai"
)

// openAICompleter covers OpenAI, OpenAI-compatible endpoints and Azure OpenAI.
// Azure takes BaseURL as https://{resource}.openai.azure.com and the model as
// the deployment name.
type openAICompleter struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func newOpenAICompleter(cfg *config.ClassifierConfig, model string, azure bool) *openAICompleter {
	var clientConfig openai.ClientConfig
	if azure {
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
	} else {
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
	}
	return &openAICompleter{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}
}

func (c *openAICompleter) complete(ctx context.Context, system, text string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: Schema(),
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
