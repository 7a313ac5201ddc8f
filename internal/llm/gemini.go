package llm

import (
	"context"
	"fmt"
	"strings"

	"nutrition-bot/internal/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient is a Generator backed by the Google Gemini API.
type GeminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewGeminiClient creates a new Gemini API client for the configured model.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.GeminiModel)
	return &GeminiClient{client: client, model: model, modelName: cfg.GeminiModel}, nil
}

// Generate sends the prompt parts to the model and returns the text reply
// along with token usage.
func (c *GeminiClient) Generate(ctx context.Context, p Prompt) (ContentResponse, error) {
	parts := make([]genai.Part, 0, 3)
	if p.Instruction != "" {
		parts = append(parts, genai.Text(p.Instruction))
	}
	if p.UserText != "" {
		parts = append(parts, genai.Text(p.UserText))
	}
	if p.Image != nil {
		parts = append(parts, genai.Blob{MIMEType: p.Image.MIMEType, Data: p.Image.Data})
	}

	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ContentResponse{}, fmt.Errorf("%w: no content generated", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	return ContentResponse{Content: sb.String(), Usage: c.usageFrom(resp)}, nil
}

func (c *GeminiClient) usageFrom(resp *genai.GenerateContentResponse) TokenUsage {
	usage := TokenUsage{Model: c.modelName}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return usage
}

// Close closes the underlying Gemini client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
