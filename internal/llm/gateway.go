package llm

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/raine/dermadict/internal/analysis"
	"github.com/raine/dermadict/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Gemini 2.5 Flash pricing through the gateway (per million tokens)
const (
	gatewayInputPricePerMillion  = 0.30
	gatewayOutputPricePerMillion = 2.50
)

const chatCompletionsPath = "/chat/completions"

// chatPayloadTemplate already holds every array slot the request needs, so
// sjson only ever sets existing paths.
const chatPayloadTemplate = `{"model":"","messages":[{"role":"system","content":""},{"role":"user","content":[{"type":"text","text":""},{"type":"image_url","image_url":{"url":""}}]}]}`

// GatewayAnalyzer talks to an OpenAI-compatible chat-completions gateway.
type GatewayAnalyzer struct {
	httpClient  *resty.Client
	apiKey      string
	model       string
	temperature float64
}

// NewGatewayAnalyzer creates an analyzer for the configured gateway.
func NewGatewayAnalyzer(cfg config.GatewayConfig) *GatewayAnalyzer {
	httpClient := resty.New().
		SetDebug(false).
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}

	return &GatewayAnalyzer{
		httpClient:  httpClient,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// Analyze implements the Analyzer interface with one gateway call.
func (g *GatewayAnalyzer) Analyze(ctx context.Context, image string) (*AnalysisResult, error) {
	if image == "" {
		return nil, analysis.ErrNoImage
	}
	if g.apiKey == "" {
		return nil, analysis.ErrNotConfigured
	}

	payload, err := buildChatPayload(g.model, g.temperature, image)
	if err != nil {
		return nil, fmt.Errorf("failed to build request payload: %w", err)
	}

	log.Info().Str("model", g.model).Msg("sending request to AI gateway")

	res, err := g.httpClient.R().
		SetContext(ctx).
		SetAuthToken(g.apiKey).
		SetBody(payload).
		Post(chatCompletionsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrUpstreamFailed, err)
	}

	if !res.IsSuccess() {
		body := res.String()
		log.Error().
			Int("status", res.StatusCode()).
			Str("body", truncate(body, 500)).
			Msg("AI gateway error")
		return nil, &analysis.UpstreamError{StatusCode: res.StatusCode(), Body: body}
	}

	reply := gjson.ParseBytes(res.Body())
	content := reply.Get("choices.0.message.content").String()
	if content == "" {
		log.Error().Msg("no content in AI response")
		return nil, analysis.ErrInvalidResponse
	}

	usage := Usage{
		InputTokens:  reply.Get("usage.prompt_tokens").Int(),
		OutputTokens: reply.Get("usage.completion_tokens").Int(),
		TotalTokens:  reply.Get("usage.total_tokens").Int(),
	}
	usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, gatewayInputPricePerMillion, gatewayOutputPricePerMillion)

	result := analysis.ParseReply(content)
	if result.IsFallback() {
		log.Warn().Msg("failed to parse AI response as JSON, using fallback")
	}

	log.Info().
		Str("model", g.model).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("vision llm call")

	return &AnalysisResult{Result: result, Usage: usage}, nil
}

func buildChatPayload(model string, temperature float64, image string) (string, error) {
	fields := []struct {
		path  string
		value any
	}{
		{"model", model},
		{"messages.0.content", analysis.SystemPrompt},
		{"messages.1.content.0.text", analysis.UserInstruction},
		{"messages.1.content.1.image_url.url", image},
		{"temperature", temperature},
	}

	payload := chatPayloadTemplate
	for _, f := range fields {
		var err error
		payload, err = sjson.Set(payload, f.path, f.value)
		if err != nil {
			return "", fmt.Errorf("failed to set %s: %w", f.path, err)
		}
	}
	return payload, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
