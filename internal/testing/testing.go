// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"sync"

	"crossfade/internal/models"
)

// MockService is a configurable test double for [services.Service].
//
// Behavior is driven by the exported fields; calls are recorded so tests can
// assert on the exact requests made.
type MockService struct {
	PlatformName string
	PlatformID   models.Platform

	SearchResults    map[string][]models.Track // query -> results
	TracksByPlaylist map[string][]models.Track // playlist id -> tracks
	Playlists        map[string]*models.PlaylistInfo
	CreatedID        string // id returned from CreatePlaylist

	SearchErr   error
	TracksErr   error
	PlaylistErr error
	CreateErr   error
	AddErr      error

	mu          sync.Mutex
	SearchCalls []string
	CreateCalls []string
	AddCalls    []AddCall
}

// AddCall records one AddTracks invocation.
type AddCall struct {
	PlaylistID string
	TrackIDs   []string
}

func (m *MockService) Name() string {
	if m.PlatformName == "" {
		return "mock"
	}
	return m.PlatformName
}

func (m *MockService) Platform() models.Platform { return m.PlatformID }

func (m *MockService) SearchTracks(ctx context.Context, credential, query string) ([]models.Track, error) {
	m.mu.Lock()
	m.SearchCalls = append(m.SearchCalls, query)
	m.mu.Unlock()

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.SearchResults[query], nil
}

func (m *MockService) PlaylistTracks(ctx context.Context, credential, playlistID string) ([]models.Track, error) {
	if m.TracksErr != nil {
		return nil, m.TracksErr
	}
	return m.TracksByPlaylist[playlistID], nil
}

func (m *MockService) Playlist(ctx context.Context, credential, playlistID string) (*models.PlaylistInfo, error) {
	if m.PlaylistErr != nil {
		return nil, m.PlaylistErr
	}
	if info, ok := m.Playlists[playlistID]; ok {
		return info, nil
	}
	return &models.PlaylistInfo{ID: playlistID, Name: "Mock Playlist"}, nil
}

func (m *MockService) CreatePlaylist(ctx context.Context, credential, name string) (string, error) {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, name)
	m.mu.Unlock()

	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	if m.CreatedID == "" {
		return "mock-playlist", nil
	}
	return m.CreatedID, nil
}

func (m *MockService) AddTracks(ctx context.Context, credential, playlistID string, trackIDs []string) error {
	m.mu.Lock()
	m.AddCalls = append(m.AddCalls, AddCall{PlaylistID: playlistID, TrackIDs: trackIDs})
	m.mu.Unlock()

	return m.AddErr
}

// MockResolver is a test double for [services.CredentialResolver].
type MockResolver struct {
	Credentials map[models.Platform]string
	ResolveErr  error

	mu          sync.Mutex
	Invalidated []models.Platform
}

func (r *MockResolver) Resolve(platform models.Platform) (string, error) {
	if r.ResolveErr != nil {
		return "", r.ResolveErr
	}
	if cred, ok := r.Credentials[platform]; ok {
		return cred, nil
	}
	return "mock-credential", nil
}

func (r *MockResolver) Invalidate(platform models.Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Invalidated = append(r.Invalidated, platform)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

// NewLimitedWriter creates a writer that fails after maxWrites writes
func NewLimitedWriter(target io.Writer, maxWrites int) *LimitedWriter {
	return &LimitedWriter{maxWrites: maxWrites, target: target}
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}
