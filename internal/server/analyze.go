package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/raine/dermadict/internal/analysis"
	"github.com/rs/zerolog/log"
)

type analyzeRequest struct {
	Image string `json:"image"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		return
	}

	res, err := s.analyzer.Analyze(c.Request.Context(), req.Image)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("requestID", c.GetString("requestID")).Msg("analysis failed")
		} else {
			log.Warn().Err(err).Str("requestID", c.GetString("requestID")).Msg("analysis rejected")
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	result := res.Result
	if s.opts.RequireDisclaimer {
		result = analysis.EnsureDisclaimer(result)
	}

	log.Info().
		Str("requestID", c.GetString("requestID")).
		Str("disease", result.Disease).
		Bool("cached", res.Cached).
		Bool("fallback", result.IsFallback()).
		Msg("analysis complete")

	c.JSON(http.StatusOK, result)
}

// errorStatus maps analysis errors to an HTTP status and client message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, analysis.ErrNoImage):
		return http.StatusBadRequest, "No image provided"
	case errors.Is(err, analysis.ErrUnsupportedImage):
		return http.StatusBadRequest, "Unsupported image format"
	case errors.Is(err, analysis.ErrNotConfigured):
		return http.StatusInternalServerError, "AI service not configured"
	case errors.Is(err, analysis.ErrRateLimited):
		return http.StatusTooManyRequests, "Rate limit exceeded. Please try again in a moment."
	case errors.Is(err, analysis.ErrPaymentRequired):
		return http.StatusPaymentRequired, "AI service payment required. Please contact support."
	case errors.Is(err, analysis.ErrInvalidResponse):
		return http.StatusInternalServerError, "Invalid AI response"
	default:
		return http.StatusInternalServerError, "AI analysis failed. Please try again."
	}
}
