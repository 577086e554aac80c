package match

import (
	"crossfade/internal/models"
	"crossfade/internal/shared"
)

// Config holds the tunable constants of the matching engine.
type Config struct {
	NameWeight     float64 // Weight of the track name signal (always present)
	ArtistWeight   float64 // Weight of the artist signal, when both sides have artists
	DurationWeight float64 // Weight of the duration signal, when both durations are known
	AutoThreshold  float64 // Score at or above which a match applies automatically
	ReviewFloor    float64 // Score at or above which a match goes to human review
	PoolFloor      float64 // Minimum score for a pool hit; below falls back to search
	MaxResults     int     // Candidates scored per search tier
}

// DefaultConfig returns the canonical matching constants.
func DefaultConfig() Config {
	return Config{
		NameWeight:     0.4,
		ArtistWeight:   0.3,
		DurationWeight: 0.3,
		AutoThreshold:  0.85,
		ReviewFloor:    0.60,
		PoolFloor:      0.30,
		MaxResults:     5,
	}
}

// ConfigFrom builds a Config from the loaded matching section, falling back to
// the defaults for any unset value.
func ConfigFrom(mc shared.MatchingConfig) Config {
	cfg := DefaultConfig()
	if mc.NameWeight > 0 {
		cfg.NameWeight = mc.NameWeight
	}
	if mc.ArtistWeight > 0 {
		cfg.ArtistWeight = mc.ArtistWeight
	}
	if mc.DurationWeight > 0 {
		cfg.DurationWeight = mc.DurationWeight
	}
	if mc.AutoThreshold > 0 {
		cfg.AutoThreshold = mc.AutoThreshold
	}
	if mc.ReviewFloor > 0 {
		cfg.ReviewFloor = mc.ReviewFloor
	}
	if mc.PoolFloor > 0 {
		cfg.PoolFloor = mc.PoolFloor
	}
	if mc.MaxResults > 0 {
		cfg.MaxResults = mc.MaxResults
	}
	return cfg
}

// Score combines name, artist, and duration similarity into one confidence
// value in [0,1] for a (source, candidate) pair.
//
// The name signal is always present. Artist and duration signals are included
// only when both sides carry them, and the weights are renormalized so the
// final score always sums over the signals actually used.
func (c Config) Score(source, candidate models.Track) float64 {
	totalScore := Similarity(source.Name, candidate.Name) * c.NameWeight
	totalWeight := c.NameWeight

	if len(source.Artists) > 0 && len(candidate.Artists) > 0 {
		totalScore += scoreArtists(source.Artists, candidate.Artists) * c.ArtistWeight
		totalWeight += c.ArtistWeight
	}

	if source.DurationMS > 0 && candidate.DurationMS > 0 {
		totalScore += scoreDuration(source.DurationSeconds(), candidate.DurationSeconds()) * c.DurationWeight
		totalWeight += c.DurationWeight
	}

	if totalWeight == 0 {
		return 0
	}
	return totalScore / totalWeight
}

// Classify maps a confidence score to the match status it earns.
func (c Config) Classify(score float64) models.MatchStatus {
	switch {
	case score >= c.AutoThreshold:
		return models.MatchAutoMatched
	case score >= c.ReviewFloor:
		return models.MatchPendingReview
	default:
		return models.MatchFailed
	}
}

// scoreArtists takes, for each source artist, the best similarity against any
// candidate artist, then averages across source artists.
func scoreArtists(source, candidate []string) float64 {
	total := 0.0
	for _, src := range source {
		best := 0.0
		for _, cand := range candidate {
			if sim := Similarity(src, cand); sim > best {
				best = sim
			}
		}
		total += best
	}
	return total / float64(len(source))
}

// scoreDuration maps the absolute difference in seconds to a score: full
// credit within 1s, a linear decay out to 10s, nothing beyond. The decay is
// clamped so the component never exceeds 1.
func scoreDuration(sourceSec, candidateSec int) float64 {
	diff := sourceSec - candidateSec
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff <= 1:
		return 1.0
	case diff <= 10:
		score := 1.0 - float64(diff-3)/7.0
		if score > 1.0 {
			return 1.0
		}
		return score
	default:
		return 0.0
	}
}
