package janitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultInterval is the time between prune cycles.
const DefaultInterval = 24 * time.Hour

// Pruner deletes cache entries older than a given age.
type Pruner interface {
	PruneAnalyses(olderThan time.Duration) (int64, error)
}

// Service periodically prunes expired analysis cache entries.
type Service struct {
	store    Pruner
	maxAge   time.Duration
	interval time.Duration
}

// NewService creates a janitor that removes entries older than maxAge.
func NewService(store Pruner, maxAge time.Duration) *Service {
	return &Service{
		store:    store,
		maxAge:   maxAge,
		interval: DefaultInterval,
	}
}

// WithInterval sets a custom prune interval.
func (s *Service) WithInterval(interval time.Duration) *Service {
	s.interval = interval
	return s
}

// Run prunes once immediately, then on every tick. It blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Dur("maxAge", s.maxAge).Msg("starting cache janitor")

	s.prune()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("cache janitor stopped")
			return
		case <-ticker.C:
			s.prune()
		}
	}
}

func (s *Service) prune() {
	count, err := s.store.PruneAnalyses(s.maxAge)
	if err != nil {
		log.Error().Err(err).Msg("failed to prune analysis cache")
		return
	}
	if count > 0 {
		log.Info().Int64("pruned", count).Msg("pruned old analysis cache entries")
	}
}
