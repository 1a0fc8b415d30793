package viewer

import (
	"context"
	"errors"
	"sync"

	"github.com/raine/dermadict/internal/analysis"
)

var (
	ErrNoImageSelected    = errors.New("no image selected")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
)

// State is the viewer's position in the select/analyze flow.
type State int

const (
	StateIdle State = iota
	StateHasImage
	StateAnalyzing
	StateHasResult
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHasImage:
		return "has-image"
	case StateAnalyzing:
		return "analyzing"
	case StateHasResult:
		return "has-result"
	default:
		return "unknown"
	}
}

// Analyzer sends an encoded image to the analysis proxy.
type Analyzer interface {
	Analyze(ctx context.Context, image string) (*analysis.Result, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, image string) (*analysis.Result, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, image string) (*analysis.Result, error) {
	return f(ctx, image)
}

// Session holds one user's selected image and latest analysis. It is safe
// for concurrent use.
type Session struct {
	mu     sync.Mutex
	state  State
	image  *Image
	result *analysis.Result
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Image returns the selected image, or nil.
func (s *Session) Image() *Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// Result returns the latest analysis, or nil.
func (s *Session) Result() *analysis.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Select stores img as the current image and clears any previous result.
// Selection is refused while an analysis is running.
func (s *Session) Select(img *Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAnalyzing {
		return ErrAnalysisInProgress
	}
	s.image = img
	s.result = nil
	s.state = StateHasImage
	return nil
}

// Reset returns the session to idle.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAnalyzing {
		return ErrAnalysisInProgress
	}
	s.image = nil
	s.result = nil
	s.state = StateIdle
	return nil
}

// Analyze sends the selected image to analyzer and stores the result. On
// failure the session returns to has-image so the user can retry.
func (s *Session) Analyze(ctx context.Context, analyzer Analyzer) (*analysis.Result, error) {
	s.mu.Lock()
	switch {
	case s.state == StateAnalyzing:
		s.mu.Unlock()
		return nil, ErrAnalysisInProgress
	case s.image == nil:
		s.mu.Unlock()
		return nil, ErrNoImageSelected
	}
	img := s.image
	s.state = StateAnalyzing
	s.result = nil
	s.mu.Unlock()

	result, err := analyzer.Analyze(ctx, img.DataURI())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateHasImage
		return nil, err
	}
	s.result = result
	s.state = StateHasResult
	return result, nil
}
