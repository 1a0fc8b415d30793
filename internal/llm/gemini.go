package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/raine/dermadict/internal/analysis"
	"github.com/raine/dermadict/internal/config"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Gemini 2.5 Flash pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.30
	geminiOutputPricePerMillion = 2.50
)

// GeminiAnalyzer calls Google's Gemini API directly instead of going
// through a chat-completions gateway.
type GeminiAnalyzer struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiAnalyzer creates a Gemini-based analyzer. A missing API key is
// not an error here; Analyze reports it per request.
func NewGeminiAnalyzer(ctx context.Context, cfg config.GeminiConfig, temperature float64) (*GeminiAnalyzer, error) {
	g := &GeminiAnalyzer{model: cfg.Model, temperature: float32(temperature)}
	if cfg.APIKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Analyze implements the Analyzer interface using Gemini.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, image string) (*AnalysisResult, error) {
	if image == "" {
		return nil, analysis.ErrNoImage
	}
	if g.client == nil {
		return nil, analysis.ErrNotConfigured
	}

	mimeType, data, err := analysis.DecodeDataURI(image)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(analysis.UserInstruction),
		{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	temperature := g.temperature
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(analysis.SystemPrompt, genai.RoleUser),
		Temperature:       &temperature,
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, genConfig)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		log.Error().Msg("no content in Gemini response")
		return nil, analysis.ErrInvalidResponse
	}

	text := result.Text()
	if text == "" {
		return nil, analysis.ErrInvalidResponse
	}

	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	}

	parsed := analysis.ParseReply(text)
	if parsed.IsFallback() {
		log.Warn().Msg("failed to parse Gemini response as JSON, using fallback")
	}

	log.Info().
		Str("model", g.model).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("vision llm call")

	return &AnalysisResult{Result: parsed, Usage: usage}, nil
}

// classifyGeminiError maps Gemini API errors onto the upstream categories.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		log.Error().Int("status", apiErr.Code).Str("message", apiErr.Message).Msg("Gemini API error")
		return &analysis.UpstreamError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return fmt.Errorf("%w: %v", analysis.ErrUpstreamFailed, err)
}
