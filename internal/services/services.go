// package services defines interface Service for interacting with music platform APIs
//
// Spotify, NetEase Cloud Music
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crossfade/internal/models"
	"crossfade/internal/shared"
)

// Service defines the interface for music platform clients (Spotify, NetEase)
// consumed by the matching engine, orchestrator, and review workflow.
//
// Credentials are plaintext (a bearer token or cookie) resolved by a
// [CredentialResolver]; clients never read credential storage themselves.
type Service interface {
	// Name returns the human-readable platform name (e.g., "Spotify")
	Name() string

	// Platform returns the platform this client speaks to.
	Platform() models.Platform

	// SearchTracks searches the platform for tracks matching the query.
	// Returns a bounded result list, never nil on success.
	SearchTracks(ctx context.Context, credential, query string) ([]models.Track, error)

	// PlaylistTracks retrieves the full ordered track list of a playlist,
	// with pagination resolved internally.
	PlaylistTracks(ctx context.Context, credential, playlistID string) ([]models.Track, error)

	// Playlist retrieves basic metadata for a playlist.
	Playlist(ctx context.Context, credential, playlistID string) (*models.PlaylistInfo, error)

	// CreatePlaylist creates a new private playlist and returns its id.
	CreatePlaylist(ctx context.Context, credential, name string) (string, error)

	// AddTracks appends tracks to a playlist. A platform response meaning
	// "already in the playlist" is treated as success.
	AddTracks(ctx context.Context, credential, playlistID string, trackIDs []string) error
}

// CredentialResolver resolves a stored credential reference to its plaintext
// form for a platform. Implementations own storage and any decryption.
type CredentialResolver interface {
	// Resolve returns the plaintext credential for the platform.
	Resolve(platform models.Platform) (string, error)

	// Invalidate clears the stored credential for the platform, used after a
	// session-expired response so the caller is forced to re-authenticate.
	Invalidate(platform models.Platform) error
}

// ConfigResolver is a CredentialResolver backed by the loaded configuration.
type ConfigResolver struct {
	cfg *shared.Config
}

// NewConfigResolver creates a resolver reading credentials from config.
func NewConfigResolver(cfg *shared.Config) *ConfigResolver {
	return &ConfigResolver{cfg: cfg}
}

func (r *ConfigResolver) Resolve(platform models.Platform) (string, error) {
	switch platform {
	case models.PlatformSpotify:
		if r.cfg.Credentials.Spotify.AccessToken == "" {
			return "", fmt.Errorf("%w: no Spotify access token configured", shared.ErrMissingCredentials)
		}
		return r.cfg.Credentials.Spotify.AccessToken, nil
	case models.PlatformNetease:
		if r.cfg.Credentials.Netease.Cookie == "" {
			return "", fmt.Errorf("%w: no NetEase cookie configured", shared.ErrMissingCredentials)
		}
		return r.cfg.Credentials.Netease.Cookie, nil
	}
	return "", fmt.Errorf("%w: unknown platform %q", shared.ErrInvalidArgument, platform)
}

func (r *ConfigResolver) Invalidate(platform models.Platform) error {
	switch platform {
	case models.PlatformSpotify:
		r.cfg.Credentials.Spotify.AccessToken = ""
	case models.PlatformNetease:
		r.cfg.Credentials.Netease.Cookie = ""
	default:
		return fmt.Errorf("%w: unknown platform %q", shared.ErrInvalidArgument, platform)
	}
	return nil
}

// defaultCallTimeout bounds platform calls when call_timeout_ms is unset.
const defaultCallTimeout = 10 * time.Second

// callTimeout resolves the per-call HTTP timeout from worker config.
func callTimeout(worker shared.WorkerConfig) time.Duration {
	if worker.CallTimeoutMS <= 0 {
		return defaultCallTimeout
	}
	return time.Duration(worker.CallTimeoutMS) * time.Millisecond
}

// withRetry runs fn up to attempts times with exponential backoff, starting at
// 500ms. Session-expired and validation errors are never retried; only
// transport-level and transient API failures are.
func withRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = 3
	}

	var err error
	delay := 500 * time.Millisecond

	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, shared.ErrSessionExpired) || errors.Is(err, shared.ErrInvalidInput) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return err
}
