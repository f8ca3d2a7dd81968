package drawsheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GenaiInvoker issues vision calls through the Google GenAI client. It maps
// transport faults to ErrExternalService and empty answers to
// ErrModelResponse; semantic retry for missing fields lives one layer up.
type GenaiInvoker struct {
	client          *genai.Client
	log             *slog.Logger
	maxOutputTokens atomic.Int32
}

// NewGenaiInvoker wraps a genai client. A nil logger falls back to
// slog.Default().
func NewGenaiInvoker(client *genai.Client, log *slog.Logger) *GenaiInvoker {
	if log == nil {
		log = slog.Default()
	}
	g := &GenaiInvoker{client: client, log: log}
	g.maxOutputTokens.Store(2048)
	return g
}

// SetMaxOutputTokens bounds the model's answer length. Safe to call while
// pipelines are in flight.
func (g *GenaiInvoker) SetMaxOutputTokens(n int32) {
	if n > 0 {
		g.maxOutputTokens.Store(n)
	}
}

// Generate sends one drawing page plus the prompt and returns the model's
// raw text. A single synchronous call; the deadline comes in on ctx.
func (g *GenaiInvoker) Generate(ctx context.Context, model string, prompt string, image DrawingImage) ([]byte, error) {
	if g.client == nil {
		return nil, fmt.Errorf("generate: client not initialized")
	}
	if len(image.Data) == 0 {
		return nil, fmt.Errorf("generate: %w", ErrEmptyImage)
	}
	if model == "" {
		model = DefaultModel
	}

	reqID := uuid.New().String()
	start := time.Now()
	g.log.Debug("model.request",
		"req_id", reqID,
		"model", model,
		"prompt_length", len(prompt),
		"image_bytes", len(image.Data),
		"mime_type", image.MIMEType)

	parts := []*genai.Part{
		genai.NewPartFromBytes(image.Data, image.MIMEType),
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		MaxOutputTokens:  g.maxOutputTokens.Load(),
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		g.log.Debug("model.request_failed",
			"req_id", reqID,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// Timeouts, rate limits, and non-2xx statuses all land here.
		return nil, fmt.Errorf("generate content: %w: %v", ErrExternalService, err)
	}

	text := firstCandidateText(resp)
	if text == "" {
		g.log.Debug("model.empty_response", "req_id", reqID)
		return nil, fmt.Errorf("generate content: %w", ErrModelResponse)
	}

	g.log.Debug("model.response",
		"req_id", reqID,
		"response_length", len(text),
		"elapsed_ms", time.Since(start).Milliseconds())
	return []byte(text), nil
}

// firstCandidateText digs the text out of the first candidate, "" when the
// service answered without usable content.
func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ""
	}
	return candidate.Content.Parts[0].Text
}
