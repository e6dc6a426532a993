package analyzer

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/redeyefit/fieldvision/internal/models"
)

// OpenAITagger describes frames with an OpenAI vision model.
type OpenAITagger struct {
	client *openai.Client
	model  string
}

// NewOpenAITagger creates a tagger. An empty baseURL uses the public API.
func NewOpenAITagger(apiKey, baseURL, model string) *OpenAITagger {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAITagger{client: openai.NewClientWithConfig(cfg), model: model}
}

func (t *OpenAITagger) Describe(ctx context.Context, item models.WorkItem) (string, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(item.Frame.Data)

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		MaxTokens: 400,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned by %s", t.model)
	}
	return resp.Choices[0].Message.Content, nil
}
