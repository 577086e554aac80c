package match

import (
	"context"
	"fmt"
	"io"

	"crossfade/internal/models"
	"crossfade/internal/services"
	"github.com/charmbracelet/log"
)

// Engine locates the best-matching destination track for a source track and
// classifies the match confidence.
//
// Two entry points cover the two candidate sources: [Engine.MatchInPool] for
// tracks that may already exist at the destination (UPDATE mode), and
// [Engine.MatchViaSearch] for the tiered platform search.
type Engine struct {
	cfg    Config
	logger *log.Logger
}

// NewEngine creates a matching engine with the given constants.
func NewEngine(cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{cfg: cfg, logger: logger}
}

// MatchInPool scores the match's source track against every pool candidate not
// in excluded and keeps the best. When the best score reaches the pool floor
// the match is filled in (destination, confidence, classified status) and true
// is returned. Below the floor nothing is touched and false signals the caller
// to fall back to search.
//
// Callers must add the chosen destination id to excluded before matching the
// next source track, so destination tracks are never claimed twice.
func (e *Engine) MatchInPool(m *models.TrackMatch, pool []models.Track, excluded map[string]struct{}) bool {
	if len(pool) == 0 {
		return false
	}

	source := m.Source()
	bestScore := 0.0
	var best *models.Track

	for i := range pool {
		if _, taken := excluded[pool[i].ID]; taken {
			continue
		}
		if score := e.cfg.Score(source, pool[i]); score > bestScore {
			bestScore = score
			best = &pool[i]
		}
	}

	if best == nil || bestScore < e.cfg.PoolFloor {
		e.logger.Debug("no existing track match", "track", source.Name, "best", bestScore)
		return false
	}

	e.logger.Info("matched against existing track", "track", source.Name, "candidate", best.Name, "confidence", bestScore)

	dest := *best
	m.SetDestination(&dest)
	m.SetConfidence(bestScore)
	m.SetStatus(e.cfg.Classify(bestScore))
	return true
}

// MatchViaSearch searches the destination platform with a 3-tier fallback
// query strategy, scores the candidates of the first tier that returns any,
// and fills in the match. When no tier returns results the match is recorded
// as FAILED with confidence 0 and no destination snapshot.
//
// Search transport errors are returned to the caller and abort the job; an
// empty result set is not an error.
func (e *Engine) MatchViaSearch(ctx context.Context, m *models.TrackMatch, svc services.Service, credential string) error {
	source := m.Source()

	candidates, err := e.searchWithFallback(ctx, svc, credential, source)
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		e.logger.Debug("no search results", "track", source.Name)
		m.SetDestination(nil)
		m.SetConfidence(0)
		m.SetStatus(models.MatchFailed)
		return nil
	}

	bestScore := 0.0
	best := candidates[0]
	for _, candidate := range candidates {
		if score := e.cfg.Score(source, candidate); score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	e.logger.Info("match found", "track", source.Name, "candidate", best.Name, "confidence", bestScore)

	m.SetDestination(&best)
	m.SetConfidence(bestScore)
	m.SetStatus(e.cfg.Classify(bestScore))
	return nil
}

// searchWithFallback runs each query tier in turn, stopping at the first tier
// that returns any results, capped to the configured maximum.
func (e *Engine) searchWithFallback(ctx context.Context, svc services.Service, credential string, source models.Track) ([]models.Track, error) {
	name := source.Name
	artist := source.FirstArtist()

	tiers := []string{name}
	if artist != "" {
		tiers = []string{
			fmt.Sprintf("%q %s", name, artist),
			fmt.Sprintf("%s %s", name, artist),
			name,
		}
	}

	for i, query := range tiers {
		results, err := svc.SearchTracks(ctx, credential, query)
		if err != nil {
			return nil, fmt.Errorf("search tier %d failed: %w", i+1, err)
		}
		if len(results) > 0 {
			e.logger.Debug("search tier returned results", "tier", i+1, "count", len(results))
			if len(results) > e.cfg.MaxResults {
				results = results[:e.cfg.MaxResults]
			}
			return results, nil
		}
	}

	return nil, nil
}
