package snowball

import (
	"time"

	"github.com/rs/zerolog"
)

// progress logs seed iteration every ~10% of the dataset.
// It has no effect on clustering results.
type progress struct {
	start   time.Time
	logger  *zerolog.Logger
	total   int
	every   int
	enabled bool
}

func newProgress(logger *zerolog.Logger, total int, enabled bool) *progress {
	every := total / 10
	if every < 1 {
		every = 1
	}
	return &progress{
		start:   time.Now(),
		logger:  logger,
		total:   total,
		every:   every,
		enabled: enabled,
	}
}

func (p *progress) seed(i, clusters int) {
	if !p.enabled {
		return
	}
	done := i + 1
	if done%p.every != 0 && done != p.total {
		return
	}
	p.logger.Info().
		Int("seed", done).
		Int("total", p.total).
		Int("clusters", clusters).
		Dur("elapsed", time.Since(p.start)).
		Msg("Clustering progress")
}
