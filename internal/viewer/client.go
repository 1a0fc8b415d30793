package viewer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/dermadict/internal/analysis"
)

// DefaultTimeout bounds a single proxy call.
const DefaultTimeout = 2 * time.Minute

// APIError is a non-200 reply from the analysis proxy.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analysis proxy returned %d: %s", e.StatusCode, e.Message)
}

// Client calls the analysis proxy over HTTP.
type Client struct {
	httpClient *resty.Client
}

type analyzeRequest struct {
	Image string `json:"image"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewClient creates a client for the proxy at baseURL, e.g.
// http://localhost:8080.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(DefaultTimeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// Analyze implements Analyzer by posting the image to /analyze-skin.
func (c *Client) Analyze(ctx context.Context, image string) (*analysis.Result, error) {
	var result analysis.Result
	var errBody errorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(analyzeRequest{Image: image}).
		SetResult(&result).
		SetError(&errBody).
		Post("/analyze-skin")
	if err != nil {
		return nil, fmt.Errorf("failed to call analysis proxy: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		msg := errBody.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}

	return &result, nil
}
