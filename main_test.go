package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/raine/dermadict/internal/analysis"
	"github.com/raine/dermadict/internal/llm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fixedAnalyzer struct {
	result analysis.Result
}

func (f fixedAnalyzer) Analyze(ctx context.Context, image string) (*llm.AnalysisResult, error) {
	if image == "" {
		return nil, analysis.ErrNoImage
	}
	return &llm.AnalysisResult{Result: f.result}, nil
}

func TestInProcessAnalyzer(t *testing.T) {
	a := fixedAnalyzer{result: analysis.Result{Disease: "Acne", Summary: "Mild"}}

	res, err := inProcessAnalyzer(a, false).Analyze(context.Background(), "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "Mild", res.Summary)

	res, err = inProcessAnalyzer(a, true).Analyze(context.Background(), "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "Mild\n\n"+analysis.Disclaimer, res.Summary)

	_, err = inProcessAnalyzer(a, true).Analyze(context.Background(), "")
	assert.ErrorIs(t, err, analysis.ErrNoImage)
}

func TestSetupLogging_JSON(t *testing.T) {
	origLogger, origLevel := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = origLogger
		zerolog.SetGlobalLevel(origLevel)
	}()

	var buf bytes.Buffer
	setupLogging(&buf, "json", "warn")
	log.Info().Msg("hidden")
	log.Warn().Str("provider", "gateway").Msg("visible")

	line := buf.String()
	assert.NotContains(t, line, "hidden")
	assert.Equal(t, "visible", gjson.Get(line, "message").String())
	assert.Equal(t, "gateway", gjson.Get(line, "provider").String())
}

func TestSetupLogging_UnknownLevel(t *testing.T) {
	origLogger, origLevel := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = origLogger
		zerolog.SetGlobalLevel(origLevel)
	}()

	var buf bytes.Buffer
	setupLogging(&buf, "console", "loud")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
