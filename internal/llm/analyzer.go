package llm

import (
	"context"

	"github.com/raine/dermadict/internal/analysis"
)

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// AnalysisResult contains the normalized analysis and usage information.
type AnalysisResult struct {
	Result analysis.Result
	Usage  Usage
	Cached bool
}

// Analyzer sends an encoded image to a multimodal model and normalizes
// its reply.
type Analyzer interface {
	// Analyze takes a data URI (or other image reference the provider
	// accepts) and returns the normalized result.
	Analyze(ctx context.Context, image string) (*AnalysisResult, error)
}

func calculateCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}
