package llm

import (
	"context"
	"errors"
	"time"
)

// TokenUsage tracks the tokens consumed by a model call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// CallMeta holds operational metadata for one model call.
type CallMeta struct {
	Operation string
	Usage     TokenUsage
	Latency   time.Duration
}

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   TokenUsage
}

// Image is raw picture data plus its content type.
type Image struct {
	MIMEType string
	Data     []byte
}

// Prompt is one ordered multimodal exchange: instruction text first, then
// the user's own words, then raw image bytes. Absent parts are skipped.
type Prompt struct {
	Instruction string
	UserText    string
	Image       *Image
}

// ErrEmptyResponse means the model produced no usable text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Generator is an interface for running one multimodal model exchange.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
