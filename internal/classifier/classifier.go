package classifier

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nutrition-bot/internal/llm"
	"nutrition-bot/internal/nutrition"
)

//go:embed classify_prompt.md
var classifyPrompt string

const namePrompt = "You are a food recognition assistant. Look at the attached image " +
	"and provide a brief description of the main food item in one or two words. " +
	"For example: 'kale salad', 'spaghetti', 'chicken sandwich'. " +
	"If unsure, say 'a meal'."

var (
	// ErrImageFetch means the image reference could not be resolved to bytes.
	ErrImageFetch = errors.New("failed to fetch image")
	// ErrClassifierCall means the model exchange itself failed.
	ErrClassifierCall = errors.New("classifier call failed")
)

// ImageFetcher resolves an opaque image reference to raw bytes plus a
// content type.
type ImageFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, string, error)
}

// CallRecorder receives operational metadata for every completed model call.
type CallRecorder interface {
	Record(meta llm.CallMeta)
}

// ResponseArchiver keeps raw model responses that failed validation, for
// offline inspection.
type ResponseArchiver interface {
	SaveRaw(operation, raw string) error
}

// Service is the gateway to the multimodal classifier. All model traffic in
// the pipeline goes through it: meal classification, food-name inference,
// and the freeform exchanges used for tips, recommendations, and report
// suggestions.
type Service struct {
	gen      llm.Generator
	fetcher  ImageFetcher
	recorder CallRecorder
	archiver ResponseArchiver
	timeout  time.Duration
	logger   *slog.Logger
}

// NewService wires the gateway. recorder and archiver may be nil.
func NewService(gen llm.Generator, fetcher ImageFetcher, recorder CallRecorder, archiver ResponseArchiver, timeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		gen:      gen,
		fetcher:  fetcher,
		recorder: recorder,
		archiver: archiver,
		timeout:  timeout,
		logger:   logger,
	}
}

// Classify estimates how much of each weekly nutrition-group target the
// submitted meal covers. With neither an image nor text to look at, it
// short-circuits to an all-zero classification without calling the model.
func (s *Service) Classify(ctx context.Context, imageRef, text string) (nutrition.Classification, error) {
	if imageRef == "" && text == "" {
		return nutrition.Classification{}, nil
	}

	prompt := llm.Prompt{Instruction: classifyPrompt, UserText: text}
	if imageRef != "" {
		data, contentType, err := s.fetcher.Fetch(ctx, imageRef)
		if err != nil {
			return nutrition.Classification{}, fmt.Errorf("%w: %v", ErrImageFetch, err)
		}
		prompt.Image = &llm.Image{MIMEType: contentType, Data: data}
	}

	resp, err := s.generate(ctx, "classify", prompt)
	if err != nil {
		return nutrition.Classification{}, callError(err)
	}

	raw := strings.TrimSpace(resp.Content)
	if raw == "" {
		return nutrition.Classification{}, fmt.Errorf("%w for classification", llm.ErrEmptyResponse)
	}

	span, err := nutrition.ExtractJSONObject(raw)
	if err != nil {
		s.quarantine("classify", raw, err)
		return nutrition.Classification{}, err
	}

	classification, err := nutrition.ParseClassification(span)
	if err != nil {
		s.quarantine("classify", raw, err)
		return nutrition.Classification{}, err
	}
	return classification, nil
}

// InferName asks the model for a one-or-two-word name for the pictured
// food. Used only when the user supplied no text of their own.
func (s *Service) InferName(ctx context.Context, imageRef string) (string, error) {
	data, contentType, err := s.fetcher.Fetch(ctx, imageRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageFetch, err)
	}

	resp, err := s.generate(ctx, "infer_name", llm.Prompt{
		Instruction: namePrompt,
		Image:       &llm.Image{MIMEType: contentType, Data: data},
	})
	if err != nil {
		return "", callError(err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// Freeform marshals payload to JSON, sends it as the whole prompt, and
// returns the trimmed reply with no schema enforced. operation labels the
// call for metrics.
func (s *Service) Freeform(ctx context.Context, operation string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal freeform payload: %w", err)
	}

	resp, err := s.generate(ctx, operation, llm.Prompt{Instruction: string(body)})
	if err != nil {
		return "", callError(err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// generate runs one model exchange under the gateway timeout and records
// call metadata on success.
func (s *Service) generate(ctx context.Context, operation string, prompt llm.Prompt) (llm.ContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return llm.ContentResponse{}, err
	}

	if s.recorder != nil {
		s.recorder.Record(llm.CallMeta{
			Operation: operation,
			Usage:     resp.Usage,
			Latency:   time.Since(start),
		})
	}
	return resp, nil
}

// quarantine logs a validation failure with the offending text and archives
// it when an archiver is configured.
func (s *Service) quarantine(operation, raw string, cause error) {
	s.logger.Error("model response failed validation",
		slog.String("op", operation),
		slog.String("raw_response", raw),
		slog.Any("error", cause),
	)
	if s.archiver == nil {
		return
	}
	if err := s.archiver.SaveRaw(operation, raw); err != nil {
		s.logger.Warn("failed to archive model response", slog.Any("error", err))
	}
}

// callError keeps ErrEmptyResponse distinct so callers can tell "the model
// said nothing" from "the call failed".
func callError(err error) error {
	if errors.Is(err, llm.ErrEmptyResponse) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrClassifierCall, err)
}
