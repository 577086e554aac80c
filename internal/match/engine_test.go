package match

import (
	"context"
	"errors"
	"testing"

	"crossfade/internal/models"
)

// mockSearchService answers SearchTracks from a fixed query -> results map and
// records the queries it saw.
type mockSearchService struct {
	results map[string][]models.Track
	queries []string
	err     error
}

func (m *mockSearchService) Name() string              { return "Mock" }
func (m *mockSearchService) Platform() models.Platform { return models.PlatformNetease }

func (m *mockSearchService) SearchTracks(ctx context.Context, credential, query string) ([]models.Track, error) {
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return m.results[query], nil
}

func (m *mockSearchService) PlaylistTracks(ctx context.Context, credential, playlistID string) ([]models.Track, error) {
	return nil, nil
}

func (m *mockSearchService) Playlist(ctx context.Context, credential, playlistID string) (*models.PlaylistInfo, error) {
	return nil, nil
}

func (m *mockSearchService) CreatePlaylist(ctx context.Context, credential, name string) (string, error) {
	return "", nil
}

func (m *mockSearchService) AddTracks(ctx context.Context, credential, playlistID string, trackIDs []string) error {
	return nil
}

func newTestMatch(source models.Track) *models.TrackMatch {
	return models.NewTrackMatch(1, "job-1", source)
}

func TestMatchInPool(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	source := track("Target Song", []string{"The Band"}, 200000)

	pool := []models.Track{
		track("Unrelated", []string{"Nobody"}, 90000),
		track("Target Song", []string{"The Band"}, 200000),
	}

	m := newTestMatch(source)
	if !engine.MatchInPool(m, pool, map[string]struct{}{}) {
		t.Fatal("MatchInPool() = false, want true")
	}
	if m.Destination() == nil || m.Destination().Name != "Target Song" {
		t.Errorf("destination = %+v, want the exact pool track", m.Destination())
	}
	if m.Status() != models.MatchAutoMatched {
		t.Errorf("status = %v, want %v", m.Status(), models.MatchAutoMatched)
	}
	if m.Confidence() < 0.99 {
		t.Errorf("confidence = %f, want ~1.0", m.Confidence())
	}
}

func TestMatchInPoolExcludesClaimedTracks(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	source := track("Target Song", []string{"The Band"}, 200000)

	exact := track("Target Song", []string{"The Band"}, 200000)
	pool := []models.Track{exact}

	excluded := map[string]struct{}{exact.ID: {}}

	m := newTestMatch(source)
	if engine.MatchInPool(m, pool, excluded) {
		t.Error("MatchInPool() = true for an already claimed track, want false")
	}
	if m.Destination() != nil {
		t.Errorf("destination = %+v, want nil when nothing matched", m.Destination())
	}
}

func TestMatchInPoolBelowFloor(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	source := track("Target Song", []string{"The Band"}, 200000)

	pool := []models.Track{
		track("Completely Different Thing", []string{"Someone Else"}, 95000),
	}

	m := newTestMatch(source)
	if engine.MatchInPool(m, pool, map[string]struct{}{}) {
		t.Error("MatchInPool() = true below the pool floor, want false")
	}
}

func TestMatchInPoolEmptyPool(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	m := newTestMatch(track("Anything", []string{"Anyone"}, 100000))

	if engine.MatchInPool(m, nil, map[string]struct{}{}) {
		t.Error("MatchInPool(nil pool) = true, want false")
	}
}

func TestMatchViaSearchFirstTier(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	source := track("Target Song", []string{"The Band"}, 200000)

	svc := &mockSearchService{
		results: map[string][]models.Track{
			`"Target Song" The Band`: {
				track("Target Song", []string{"The Band"}, 200000),
				track("Target Song (Live)", []string{"The Band"}, 260000),
			},
		},
	}

	m := newTestMatch(source)
	if err := engine.MatchViaSearch(context.Background(), m, svc, "cred"); err != nil {
		t.Fatalf("MatchViaSearch() error = %v", err)
	}

	if len(svc.queries) != 1 {
		t.Errorf("queries = %v, want only the first tier", svc.queries)
	}
	if m.Status() != models.MatchAutoMatched {
		t.Errorf("status = %v, want %v", m.Status(), models.MatchAutoMatched)
	}
	if m.Destination() == nil || m.Destination().Name != "Target Song" {
		t.Errorf("destination = %+v, want the exact candidate", m.Destination())
	}
}

func TestMatchViaSearchFallsThroughTiers(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	source := track("Target Song", []string{"The Band"}, 200000)

	// Tiers 1 and 2 come back empty, tier 3 (name only) hits
	svc := &mockSearchService{
		results: map[string][]models.Track{
			"Target Song": {
				track("Target Song", []string{"The Band"}, 201000),
			},
		},
	}

	m := newTestMatch(source)
	if err := engine.MatchViaSearch(context.Background(), m, svc, "cred"); err != nil {
		t.Fatalf("MatchViaSearch() error = %v", err)
	}

	wantQueries := []string{`"Target Song" The Band`, "Target Song The Band", "Target Song"}
	if len(svc.queries) != len(wantQueries) {
		t.Fatalf("queries = %v, want %v", svc.queries, wantQueries)
	}
	for i, q := range wantQueries {
		if svc.queries[i] != q {
			t.Errorf("query[%d] = %q, want %q", i, svc.queries[i], q)
		}
	}
	if m.Status() != models.MatchAutoMatched {
		t.Errorf("status = %v, want %v", m.Status(), models.MatchAutoMatched)
	}
}

func TestMatchViaSearchNoResults(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	source := track("Target Song", []string{"The Band"}, 200000)

	svc := &mockSearchService{results: map[string][]models.Track{}}

	m := newTestMatch(source)
	if err := engine.MatchViaSearch(context.Background(), m, svc, "cred"); err != nil {
		t.Fatalf("MatchViaSearch() error = %v", err)
	}

	if m.Status() != models.MatchFailed {
		t.Errorf("status = %v, want %v", m.Status(), models.MatchFailed)
	}
	if m.Confidence() != 0 {
		t.Errorf("confidence = %f, want 0", m.Confidence())
	}
	if m.Destination() != nil {
		t.Errorf("destination = %+v, want nil", m.Destination())
	}
}

func TestMatchViaSearchPropagatesErrors(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	source := track("Target Song", []string{"The Band"}, 200000)

	wantErr := errors.New("rate limited")
	svc := &mockSearchService{err: wantErr}

	m := newTestMatch(source)
	err := engine.MatchViaSearch(context.Background(), m, svc, "cred")
	if !errors.Is(err, wantErr) {
		t.Errorf("MatchViaSearch() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestMatchViaSearchNoArtist(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	source := track("Instrumental Piece", nil, 200000)

	svc := &mockSearchService{results: map[string][]models.Track{}}

	m := newTestMatch(source)
	if err := engine.MatchViaSearch(context.Background(), m, svc, "cred"); err != nil {
		t.Fatalf("MatchViaSearch() error = %v", err)
	}

	if len(svc.queries) != 1 || svc.queries[0] != "Instrumental Piece" {
		t.Errorf("queries = %v, want a single name-only query", svc.queries)
	}
}
