package viewer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/raine/dermadict/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func testImage(t *testing.T) *Image {
	t.Helper()
	img, err := DecodeImage("image/png", pngBytes)
	require.NoError(t, err)
	return img
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage("", pngBytes)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.True(t, strings.HasPrefix(img.DataURI(), "data:image/png;base64,"))

	_, err = DecodeImage("application/pdf", pngBytes)
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = DecodeImage("image/png", []byte("just some text"))
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = DecodeImage("image/png", nil)
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestSession_Flow(t *testing.T) {
	s := NewSession()
	assert.Equal(t, StateIdle, s.State())

	_, err := s.Analyze(context.Background(), AnalyzerFunc(func(ctx context.Context, image string) (*analysis.Result, error) {
		t.Fatal("analyzer must not be called without an image")
		return nil, nil
	}))
	assert.ErrorIs(t, err, ErrNoImageSelected)

	require.NoError(t, s.Select(testImage(t)))
	assert.Equal(t, StateHasImage, s.State())

	want := &analysis.Result{Disease: "Eczema", Causes: "Dry skin", Summary: "Mild case"}
	var sent string
	got, err := s.Analyze(context.Background(), AnalyzerFunc(func(ctx context.Context, image string) (*analysis.Result, error) {
		sent = image
		return want, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, StateHasResult, s.State())
	assert.Equal(t, s.Image().DataURI(), sent)

	// Selecting a new image clears the previous result
	require.NoError(t, s.Select(testImage(t)))
	assert.Nil(t, s.Result())
	assert.Equal(t, StateHasImage, s.State())
}

func TestSession_FailureReturnsToHasImage(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Select(testImage(t)))

	_, err := s.Analyze(context.Background(), AnalyzerFunc(func(ctx context.Context, image string) (*analysis.Result, error) {
		return nil, errors.New("boom")
	}))
	assert.Error(t, err)
	assert.Equal(t, StateHasImage, s.State())
	assert.NotNil(t, s.Image())
	assert.Nil(t, s.Result())
}

func TestSession_RejectsConcurrentAnalysis(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Select(testImage(t)))

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Analyze(context.Background(), AnalyzerFunc(func(ctx context.Context, image string) (*analysis.Result, error) {
			close(started)
			<-release
			return &analysis.Result{Disease: "Acne"}, nil
		}))
	}()

	<-started
	assert.Equal(t, StateAnalyzing, s.State())

	_, err := s.Analyze(context.Background(), AnalyzerFunc(func(ctx context.Context, image string) (*analysis.Result, error) {
		t.Fatal("second analysis must not start")
		return nil, nil
	}))
	assert.ErrorIs(t, err, ErrAnalysisInProgress)
	assert.ErrorIs(t, s.Select(testImage(t)), ErrAnalysisInProgress)

	close(release)
	wg.Wait()
	assert.Equal(t, StateHasResult, s.State())
	assert.Equal(t, "Acne", s.Result().Disease)
}

func TestSession_RejectedSelectionKeepsState(t *testing.T) {
	s := NewSession()
	img := testImage(t)
	require.NoError(t, s.Select(img))
	_, err := s.Analyze(context.Background(), AnalyzerFunc(func(ctx context.Context, image string) (*analysis.Result, error) {
		return &analysis.Result{Disease: "Acne"}, nil
	}))
	require.NoError(t, err)

	_, err = DecodeImage("text/plain", []byte("hello"))
	require.ErrorIs(t, err, ErrNotImage)

	// Decode failed, so nothing was selected
	assert.Same(t, img, s.Image())
	assert.Equal(t, "Acne", s.Result().Disease)
	assert.Equal(t, StateHasResult, s.State())
}

func TestRender(t *testing.T) {
	out := Render(&analysis.Result{Disease: "Eczema", Causes: "Dry skin", Summary: "Mild case"})
	assert.Equal(t, "Disease: Eczema\n\nCauses:\nDry skin\n\nSummary:\nMild case", out)
	assert.Equal(t, "", Render(nil))
}

func TestClient_Analyze(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze-skin", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "data:image/png;base64,AAAA", gjson.GetBytes(body, "image").String())

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"disease":"Eczema","causes":"Dry skin","summary":"Mild case"}`)
	}))
	defer ts.Close()

	res, err := NewClient(ts.URL+"/").Analyze(context.Background(), "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, &analysis.Result{Disease: "Eczema", Causes: "Dry skin", Summary: "Mild case"}, res)
}

func TestClient_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":"Rate limit exceeded. Please try again in a moment."}`)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).Analyze(context.Background(), "data:image/png;base64,AAAA")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "Rate limit exceeded. Please try again in a moment.", apiErr.Message)
}
