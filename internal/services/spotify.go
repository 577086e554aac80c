// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"crossfade/internal/models"
	"crossfade/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifyPageLimit = 100
)

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs externalIDs     `json:"external_ids"`
	URI         string          `json:"uri"`
}

type playlistTracks struct {
	Total int                    `json:"total"`
	Next  *string                `json:"next"`
	Items []SpotifyPlaylistTrack `json:"items"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Tracks playlistTracks `json:"tracks"`
	URI    string         `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyService implements the Service interface for Spotify API interactions.
type SpotifyService struct {
	config        *oauth2.Config
	baseURL       string
	httpClient    *http.Client
	limiter       *rate.Limiter
	retryAttempts int
}

// NewSpotifyService creates a new Spotify client with the given OAuth2
// credentials and worker settings.
func NewSpotifyService(conf shared.SpotifyConfig, worker shared.WorkerConfig) *SpotifyService {
	redirectURI := conf.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	oauthConf := &oauth2.Config{
		ClientID:     conf.ClientID,
		ClientSecret: conf.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	limit := worker.RateLimit
	if limit <= 0 {
		limit = 5.0
	}

	return &SpotifyService{
		config:        oauthConf,
		baseURL:       spotifyBaseURL,
		httpClient:    &http.Client{Timeout: callTimeout(worker)},
		limiter:       rate.NewLimiter(rate.Limit(limit), 1),
		retryAttempts: worker.RetryAttempts,
	}
}

func (s *SpotifyService) Name() string { return "Spotify" }

func (s *SpotifyService) Platform() models.Platform { return models.PlatformSpotify }

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// doRequest performs an authenticated HTTP request to the Spotify API with
// rate limiting and bounded retry.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint, credential string, body, result any) error {
	if credential == "" {
		return fmt.Errorf("%w: empty Spotify access token", shared.ErrNotAuthenticated)
	}

	return withRetry(ctx, s.retryAttempts, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		var reqBody *bytes.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to encode request body: %w", err)
			}
			reqBody = bytes.NewReader(data)
		} else {
			reqBody = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+credential)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: spotify returned 401", shared.ErrSessionExpired)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("%w: spotify API status %d", shared.ErrAPIRequest, resp.StatusCode)
		}

		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	})
}

// SearchTracks searches Spotify for tracks matching the query.
func (s *SpotifyService) SearchTracks(ctx context.Context, credential, query string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=5", url.QueryEscape(query))

	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, credential, nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Tracks.Items))
	for _, st := range response.Tracks.Items {
		tracks = append(tracks, spotifyToTrack(st))
	}
	return tracks, nil
}

// Playlist retrieves basic metadata for a playlist.
func (s *SpotifyService) Playlist(ctx context.Context, credential, playlistID string) (*models.PlaylistInfo, error) {
	var sp SpotifyPlaylist
	endpoint := fmt.Sprintf("/playlists/%s", playlistID)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, credential, nil, &sp); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPlaylistNotFound, err)
	}

	return &models.PlaylistInfo{
		ID:         sp.ID,
		Name:       sp.Name,
		TrackCount: sp.Tracks.Total,
	}, nil
}

// PlaylistTracks retrieves all tracks of a playlist, following pagination.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, credential, playlistID string) ([]models.Track, error) {
	var all []models.Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", playlistID, spotifyPageLimit, offset)

		var page playlistTracks
		if err := s.doRequest(ctx, http.MethodGet, endpoint, credential, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track.ID == "" {
				// Local or removed tracks come back without an id
				continue
			}
			all = append(all, spotifyToTrack(item.Track))
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += spotifyPageLimit
	}

	return all, nil
}

// CreatePlaylist creates a new private playlist for the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, credential, name string) (string, error) {
	var me struct {
		ID string `json:"id"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/me", credential, nil, &me); err != nil {
		return "", err
	}

	body := map[string]any{"name": name, "public": false}
	var created SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(me.ID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, credential, body, &created); err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", err)
	}

	return created.ID, nil
}

// AddTracks appends tracks to a playlist. Spotify expects URIs in the form
// "spotify:track:<id>"; bare ids are prefixed here. Spotify does not reject
// duplicates, so no duplicate normalization is needed.
func (s *SpotifyService) AddTracks(ctx context.Context, credential, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	uris := make([]string, 0, len(trackIDs))
	for _, id := range trackIDs {
		if strings.HasPrefix(id, "spotify:track:") {
			uris = append(uris, id)
		} else {
			uris = append(uris, "spotify:track:"+id)
		}
	}

	// The endpoint caps at 100 URIs per call
	for start := 0; start < len(uris); start += spotifyPageLimit {
		end := min(start+spotifyPageLimit, len(uris))
		body := map[string]any{"uris": uris[start:end]}
		endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)
		if err := s.doRequest(ctx, http.MethodPost, endpoint, credential, body, nil); err != nil {
			return fmt.Errorf("failed to add tracks: %w", err)
		}
	}

	return nil
}

// spotifyToTrack converts a Spotify API track to the platform-agnostic model.
func spotifyToTrack(st SpotifyTrack) models.Track {
	artists := make([]string, 0, len(st.Artists))
	for _, a := range st.Artists {
		artists = append(artists, a.Name)
	}

	var imageURL string
	if len(st.Album.Images) > 0 {
		imageURL = st.Album.Images[0].URL
	}

	return models.Track{
		ID:         st.ID,
		Name:       st.Name,
		Artists:    artists,
		Album:      st.Album.Name,
		DurationMS: st.DurationMS,
		ISRC:       st.ExternalIDs.ISRC,
		ImageURL:   imageURL,
	}
}
