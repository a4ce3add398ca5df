package ai

import (
	"context"
	"errors"
	"strings"

	"failboard/config"

	"github.com/sashabaranov/go-openai"
)

var ErrEmptyResponse = errors.New("model returned no choices")

type AIService struct {
	client     *openai.Client
	chatModel  string
	embedModel string
	enabled    bool
}

func NewAIService(cfg *config.Config) *AIService {
	aiConfig := openai.DefaultConfig(cfg.AIKey)
	aiConfig.BaseURL = cfg.AIBaseURL

	return &AIService{
		client:     openai.NewClientWithConfig(aiConfig),
		chatModel:  cfg.AIChatModel,
		embedModel: cfg.AIEmbedModel,
		enabled:    cfg.AIKey != "",
	}
}

// Enabled is false when no API key is configured.
func (s *AIService) Enabled() bool {
	return s != nil && s.enabled
}

const supportPrompt = "You are a kind member of a community where people share their failures. " +
	"Someone asked for support. Reply in at most three sentences: acknowledge the feeling, " +
	"offer one practical next step, and end on encouragement. No hashtags, no emojis."

// SupportReply writes a short encouraging answer to a support-request story.
func (s *AIService) SupportReply(ctx context.Context, story string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: supportPrompt},
			{Role: openai.ChatMessageRoleUser, Content: story},
		},
		Temperature: 0.7,
		MaxTokens:   200,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (s *AIService) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	// newlines hurt embedding quality
	text = strings.ReplaceAll(text, "\n", " ")

	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(s.embedModel),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Data[0].Embedding, nil
}
