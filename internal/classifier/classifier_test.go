package classifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"nutrition-bot/internal/llm"
	"nutrition-bot/internal/nutrition"
)

// MockGenerator is a canned-response llm.Generator.
type MockGenerator struct {
	Response   llm.ContentResponse
	Err        error
	Calls      int
	LastPrompt llm.Prompt
}

func (m *MockGenerator) Generate(ctx context.Context, p llm.Prompt) (llm.ContentResponse, error) {
	m.Calls++
	m.LastPrompt = p
	if m.Err != nil {
		return llm.ContentResponse{}, m.Err
	}
	return m.Response, nil
}

// MockFetcher is a canned-response ImageFetcher.
type MockFetcher struct {
	Data        []byte
	ContentType string
	Err         error
	Calls       int
}

func (m *MockFetcher) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	m.Calls++
	if m.Err != nil {
		return nil, "", m.Err
	}
	return m.Data, m.ContentType, nil
}

// MockRecorder collects call metadata.
type MockRecorder struct {
	Metas []llm.CallMeta
}

func (m *MockRecorder) Record(meta llm.CallMeta) {
	m.Metas = append(m.Metas, meta)
}

// MockArchiver collects quarantined raw responses.
type MockArchiver struct {
	Ops  []string
	Raws []string
}

func (m *MockArchiver) SaveRaw(operation, raw string) error {
	m.Ops = append(m.Ops, operation)
	m.Raws = append(m.Raws, raw)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(gen llm.Generator, fetcher ImageFetcher) *Service {
	return NewService(gen, fetcher, nil, nil, 5*time.Second, testLogger())
}

func TestClassify(t *testing.T) {
	t.Run("short-circuits with no inputs", func(t *testing.T) {
		gen := &MockGenerator{}
		fetcher := &MockFetcher{}
		svc := newTestService(gen, fetcher)

		c, err := svc.Classify(context.Background(), "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c != (nutrition.Classification{}) {
			t.Errorf("expected zero classification, got %+v", c)
		}
		if gen.Calls != 0 {
			t.Errorf("expected no model calls, got %d", gen.Calls)
		}
		if fetcher.Calls != 0 {
			t.Errorf("expected no fetches, got %d", fetcher.Calls)
		}
	})

	t.Run("text-only meal", func(t *testing.T) {
		gen := &MockGenerator{Response: llm.ContentResponse{Content: `{"protein": 0.12, "grains": 0.05}`}}
		svc := newTestService(gen, &MockFetcher{})

		c, err := svc.Classify(context.Background(), "", "chicken and rice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Protein != 0.12 || c.Grains != 0.05 {
			t.Errorf("unexpected classification: %+v", c)
		}
		if gen.LastPrompt.Instruction != classifyPrompt {
			t.Error("expected the classification instruction as the first part")
		}
		if gen.LastPrompt.UserText != "chicken and rice" {
			t.Errorf("expected user text part, got %q", gen.LastPrompt.UserText)
		}
		if gen.LastPrompt.Image != nil {
			t.Error("expected no image part for a text-only meal")
		}
	})

	t.Run("image meal attaches fetched bytes", func(t *testing.T) {
		gen := &MockGenerator{Response: llm.ContentResponse{Content: `{"fruits": 0.04}`}}
		fetcher := &MockFetcher{Data: []byte{0xFF, 0xD8}, ContentType: "image/jpeg"}
		svc := newTestService(gen, fetcher)

		c, err := svc.Classify(context.Background(), "https://files.test/meal.jpg", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Fruits != 0.04 {
			t.Errorf("expected fruits 0.04, got %v", c.Fruits)
		}
		if gen.LastPrompt.Image == nil {
			t.Fatal("expected an image part")
		}
		if gen.LastPrompt.Image.MIMEType != "image/jpeg" {
			t.Errorf("expected image/jpeg, got %q", gen.LastPrompt.Image.MIMEType)
		}
	})

	t.Run("tolerates prose around the JSON", func(t *testing.T) {
		gen := &MockGenerator{Response: llm.ContentResponse{Content: "Sure! {\"vegetables\": 0.2} — enjoy!"}}
		svc := newTestService(gen, &MockFetcher{})

		c, err := svc.Classify(context.Background(), "", "salad")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Vegetables != 0.2 {
			t.Errorf("expected vegetables 0.2, got %v", c.Vegetables)
		}
	})

	t.Run("fetch failure aborts before the model call", func(t *testing.T) {
		gen := &MockGenerator{}
		fetcher := &MockFetcher{Err: errors.New("connection refused")}
		svc := newTestService(gen, fetcher)

		_, err := svc.Classify(context.Background(), "https://files.test/meal.jpg", "")
		if !errors.Is(err, ErrImageFetch) {
			t.Errorf("expected ErrImageFetch, got %v", err)
		}
		if gen.Calls != 0 {
			t.Errorf("expected no model calls after fetch failure, got %d", gen.Calls)
		}
	})

	t.Run("model failure maps to ErrClassifierCall", func(t *testing.T) {
		gen := &MockGenerator{Err: errors.New("rpc deadline exceeded")}
		svc := newTestService(gen, &MockFetcher{})

		_, err := svc.Classify(context.Background(), "", "toast")
		if !errors.Is(err, ErrClassifierCall) {
			t.Errorf("expected ErrClassifierCall, got %v", err)
		}
	})

	t.Run("blank reply maps to ErrEmptyResponse", func(t *testing.T) {
		gen := &MockGenerator{Response: llm.ContentResponse{Content: "   \n\t"}}
		svc := newTestService(gen, &MockFetcher{})

		_, err := svc.Classify(context.Background(), "", "toast")
		if !errors.Is(err, llm.ErrEmptyResponse) {
			t.Errorf("expected ErrEmptyResponse, got %v", err)
		}
	})

	t.Run("reply without JSON quarantines the raw text", func(t *testing.T) {
		gen := &MockGenerator{Response: llm.ContentResponse{Content: "I cannot classify this meal."}}
		archiver := &MockArchiver{}
		svc := NewService(gen, &MockFetcher{}, nil, archiver, 5*time.Second, testLogger())

		_, err := svc.Classify(context.Background(), "", "mystery stew")
		if !errors.Is(err, nutrition.ErrJSONExtraction) {
			t.Errorf("expected ErrJSONExtraction, got %v", err)
		}
		if len(archiver.Raws) != 1 || archiver.Raws[0] != "I cannot classify this meal." {
			t.Errorf("expected raw response archived, got %v", archiver.Raws)
		}
	})
}

func TestInferName(t *testing.T) {
	t.Run("returns trimmed caption", func(t *testing.T) {
		gen := &MockGenerator{Response: llm.ContentResponse{Content: "  kale salad\n"}}
		fetcher := &MockFetcher{Data: []byte{0x89}, ContentType: "image/png"}
		svc := newTestService(gen, fetcher)

		name, err := svc.InferName(context.Background(), "https://files.test/meal.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if name != "kale salad" {
			t.Errorf("expected %q, got %q", "kale salad", name)
		}
	})

	t.Run("fetch failure maps to ErrImageFetch", func(t *testing.T) {
		fetcher := &MockFetcher{Err: errors.New("404")}
		svc := newTestService(&MockGenerator{}, fetcher)

		_, err := svc.InferName(context.Background(), "https://files.test/missing.png")
		if !errors.Is(err, ErrImageFetch) {
			t.Errorf("expected ErrImageFetch, got %v", err)
		}
	})
}

func TestFreeform(t *testing.T) {
	t.Run("marshals payload and records usage", func(t *testing.T) {
		gen := &MockGenerator{Response: llm.ContentResponse{
			Content: " some advice ",
			Usage:   llm.TokenUsage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14, Model: "test-model"},
		}}
		recorder := &MockRecorder{}
		svc := NewService(gen, &MockFetcher{}, recorder, nil, 5*time.Second, testLogger())

		payload := map[string]string{"instructions": "say hi"}
		text, err := svc.Freeform(context.Background(), "meal_tip", payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "some advice" {
			t.Errorf("expected trimmed reply, got %q", text)
		}
		if gen.LastPrompt.Instruction != `{"instructions":"say hi"}` {
			t.Errorf("expected marshaled payload as prompt, got %q", gen.LastPrompt.Instruction)
		}
		if len(recorder.Metas) != 1 {
			t.Fatalf("expected 1 recorded call, got %d", len(recorder.Metas))
		}
		if recorder.Metas[0].Operation != "meal_tip" {
			t.Errorf("expected operation meal_tip, got %q", recorder.Metas[0].Operation)
		}
		if recorder.Metas[0].Usage.TotalTokens != 14 {
			t.Errorf("expected usage passthrough, got %+v", recorder.Metas[0].Usage)
		}
	})

	t.Run("empty model reply stays distinct from call failure", func(t *testing.T) {
		gen := &MockGenerator{Err: llm.ErrEmptyResponse}
		svc := newTestService(gen, &MockFetcher{})

		_, err := svc.Freeform(context.Background(), "recommend", map[string]string{})
		if !errors.Is(err, llm.ErrEmptyResponse) {
			t.Errorf("expected ErrEmptyResponse, got %v", err)
		}
		if errors.Is(err, ErrClassifierCall) {
			t.Error("expected ErrEmptyResponse not to be wrapped as ErrClassifierCall")
		}
	})
}
