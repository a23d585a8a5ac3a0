package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const (
	textModel  = "gemini-2.5-flash"
	imageModel = "gemini-2.5-flash-image-preview"

	// geminiErrorPrefix starts every adapter-level failure message. The
	// dispatcher forwards these strings to the user as-is.
	geminiErrorPrefix = "Error querying Gemini:"

	// noAnswerFallback is returned when no extraction path yields text.
	noAnswerFallback = "no readable answer"
)

// GeminiService answers study questions. Both calls are synchronous,
// never retried, and always return text: transport and decoding failures
// are converted into an error message rather than surfaced as an error.
type GeminiService interface {
	AskText(ctx context.Context, prompt string, maxOutputTokens int32) string
	AskImage(ctx context.Context, imageBytes []byte, prompt string) string
}

type geminiService struct {
	client *genai.Client
	logger *slog.Logger
}

func NewGeminiService(apiKey string, logger *slog.Logger) (GeminiService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiService{
		client: client,
		logger: logger.With(slog.String("service", "gemini")),
	}, nil
}

// AskText implements GeminiService.
func (g *geminiService) AskText(ctx context.Context, prompt string, maxOutputTokens int32) string {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: maxOutputTokens,
	}

	resp, err := g.client.Models.GenerateContent(ctx, textModel, genai.Text(prompt), config)
	if err != nil {
		g.logger.Error("text query failed", slog.Any("error", err))
		return fmt.Sprintf("%s %v", geminiErrorPrefix, err)
	}

	return extractAnswer(resp)
}

// AskImage implements GeminiService.
func (g *geminiService) AskImage(ctx context.Context, imageBytes []byte, prompt string) string {
	data, mime, err := NormalizeImage(imageBytes)
	if err != nil {
		g.logger.Error("image normalization failed", slog.Any("error", err))
		return fmt.Sprintf("%s %v", geminiErrorPrefix, err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(data, mime),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, imageModel, contents, nil)
	if err != nil {
		g.logger.Error("image query failed", slog.Any("error", err))
		return fmt.Sprintf("%s %v", geminiErrorPrefix, err)
	}

	return extractAnswer(resp)
}

// extractAnswer normalizes the provider's response states into plain
// text: direct text, then a block reason, then an abnormal stop reason of
// the first candidate, then that candidate's concatenated text parts, and
// finally a fixed fallback.
func extractAnswer(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return noAnswerFallback
	}

	if text := resp.Text(); text != "" {
		return text
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		reason := string(fb.BlockReason)
		if fb.BlockReasonMessage != "" {
			reason = fmt.Sprintf("%s (%s)", reason, fb.BlockReasonMessage)
		}
		return fmt.Sprintf("Request was blocked: %s", reason)
	}

	if len(resp.Candidates) == 0 {
		return noAnswerFallback
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason != "" && candidate.FinishReason != genai.FinishReasonStop {
		return fmt.Sprintf("Model stopped abnormally: %s", candidate.FinishReason)
	}

	if candidate.Content != nil {
		var parts []string
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "")
		}
	}

	return noAnswerFallback
}
