// NetEase Cloud Music implementation of [Service]
//
// Talks to a NetEase API gateway (e.g. NeteaseCloudMusicApi) authenticated by
// the user's session cookie.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"crossfade/internal/models"
	"crossfade/internal/shared"
	"golang.org/x/time/rate"
)

const (
	// Application-level response codes used by the NetEase API
	neteaseCodeOK        = 200
	neteaseCodeExpired   = 301 // cookie invalid or expired
	neteaseCodeDuplicate = 502 // track already in playlist ("歌单内歌曲重复")
)

// NeteaseArtist represents a NetEase artist.
type NeteaseArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NeteaseAlbum represents a NetEase album.
type NeteaseAlbum struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	PicURL string `json:"picUrl"`
}

// NeteaseTrack represents a NetEase track.
type NeteaseTrack struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Artists  []NeteaseArtist `json:"ar"`
	Album    *NeteaseAlbum   `json:"al"`
	Duration int             `json:"dt"` // milliseconds
}

// NeteasePlaylist represents a NetEase playlist.
type NeteasePlaylist struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	TrackCount int            `json:"trackCount"`
	Tracks     []NeteaseTrack `json:"tracks"`
	TrackIDs   []struct {
		ID int64 `json:"id"`
	} `json:"trackIds"`
}

// NeteaseService implements the Service interface against a NetEase API gateway.
type NeteaseService struct {
	baseURL       string
	httpClient    *http.Client
	limiter       *rate.Limiter
	retryAttempts int
}

// NewNeteaseService creates a new NetEase client for the configured gateway.
func NewNeteaseService(conf shared.NeteaseConfig, worker shared.WorkerConfig) *NeteaseService {
	baseURL := strings.TrimSuffix(conf.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}

	limit := worker.RateLimit
	if limit <= 0 {
		limit = 5.0
	}

	return &NeteaseService{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: callTimeout(worker)},
		limiter:       rate.NewLimiter(rate.Limit(limit), 1),
		retryAttempts: worker.RetryAttempts,
	}
}

func (n *NeteaseService) Name() string { return "NetEase Cloud Music" }

func (n *NeteaseService) Platform() models.Platform { return models.PlatformNetease }

// doRequest performs a cookie-authenticated GET against the gateway with rate
// limiting and bounded retry, decoding the JSON body into result.
func (n *NeteaseService) doRequest(ctx context.Context, endpoint, credential string, result any) error {
	if credential == "" {
		return fmt.Errorf("%w: empty NetEase cookie", shared.ErrNotAuthenticated)
	}

	return withRetry(ctx, n.retryAttempts, func() error {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Cookie", credential)

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: netease gateway status %d", shared.ErrAPIRequest, resp.StatusCode)
		}

		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	})
}

// checkCode validates a NetEase application-level response code.
func checkCode(code int) error {
	switch code {
	case neteaseCodeOK:
		return nil
	case neteaseCodeExpired:
		return fmt.Errorf("%w: netease returned code 301", shared.ErrSessionExpired)
	default:
		return fmt.Errorf("%w: netease returned code %d", shared.ErrAPIRequest, code)
	}
}

// SearchTracks searches NetEase for single tracks matching the query.
func (n *NeteaseService) SearchTracks(ctx context.Context, credential, query string) ([]models.Track, error) {
	// type=1 restricts results to single tracks
	endpoint := fmt.Sprintf("/cloudsearch?keywords=%s&type=1&limit=5", url.QueryEscape(query))

	var response struct {
		Code   int `json:"code"`
		Result struct {
			Songs []NeteaseTrack `json:"songs"`
		} `json:"result"`
	}
	if err := n.doRequest(ctx, endpoint, credential, &response); err != nil {
		return nil, err
	}
	if err := checkCode(response.Code); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Result.Songs))
	for _, nt := range response.Result.Songs {
		tracks = append(tracks, neteaseToTrack(nt))
	}
	return tracks, nil
}

// Playlist retrieves basic metadata for a playlist.
func (n *NeteaseService) Playlist(ctx context.Context, credential, playlistID string) (*models.PlaylistInfo, error) {
	var response struct {
		Code     int             `json:"code"`
		Playlist NeteasePlaylist `json:"playlist"`
	}
	endpoint := fmt.Sprintf("/playlist/detail?id=%s", url.QueryEscape(playlistID))
	if err := n.doRequest(ctx, endpoint, credential, &response); err != nil {
		return nil, err
	}
	if err := checkCode(response.Code); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPlaylistNotFound, err)
	}

	return &models.PlaylistInfo{
		ID:         fmt.Sprintf("%d", response.Playlist.ID),
		Name:       response.Playlist.Name,
		TrackCount: response.Playlist.TrackCount,
	}, nil
}

// PlaylistTracks retrieves the full ordered track list of a playlist.
func (n *NeteaseService) PlaylistTracks(ctx context.Context, credential, playlistID string) ([]models.Track, error) {
	var response struct {
		Code  int            `json:"code"`
		Songs []NeteaseTrack `json:"songs"`
	}
	endpoint := fmt.Sprintf("/playlist/track/all?id=%s", url.QueryEscape(playlistID))
	if err := n.doRequest(ctx, endpoint, credential, &response); err != nil {
		return nil, err
	}
	if err := checkCode(response.Code); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Songs))
	for _, nt := range response.Songs {
		tracks = append(tracks, neteaseToTrack(nt))
	}
	return tracks, nil
}

// CreatePlaylist creates a new private playlist and returns its id.
func (n *NeteaseService) CreatePlaylist(ctx context.Context, credential, name string) (string, error) {
	var response struct {
		Code     int              `json:"code"`
		Playlist *NeteasePlaylist `json:"playlist"`
		ID       int64            `json:"id"`
	}
	// privacy=10 creates a private playlist
	endpoint := fmt.Sprintf("/playlist/create?name=%s&privacy=10", url.QueryEscape(name))
	if err := n.doRequest(ctx, endpoint, credential, &response); err != nil {
		return "", err
	}
	if err := checkCode(response.Code); err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", err)
	}

	if response.Playlist != nil && response.Playlist.ID != 0 {
		return fmt.Sprintf("%d", response.Playlist.ID), nil
	}
	return fmt.Sprintf("%d", response.ID), nil
}

// AddTracks appends tracks to a playlist. A code 502 response means the track
// is already in the playlist and is normalized to success.
func (n *NeteaseService) AddTracks(ctx context.Context, credential, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	var response struct {
		Status int `json:"status"`
		Code   int `json:"code"`
		Body   *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"body"`
	}
	endpoint := fmt.Sprintf("/playlist/tracks?op=add&pid=%s&tracks=%s",
		url.QueryEscape(playlistID), url.QueryEscape(strings.Join(trackIDs, ",")))
	if err := n.doRequest(ctx, endpoint, credential, &response); err != nil {
		return err
	}

	if response.Code == neteaseCodeExpired {
		return fmt.Errorf("%w: netease returned code 301", shared.ErrSessionExpired)
	}
	if response.Body != nil {
		switch response.Body.Code {
		case neteaseCodeOK:
			return nil
		case neteaseCodeDuplicate:
			// Track already exists, goal achieved
			return nil
		default:
			return fmt.Errorf("%w: netease add tracks code %d: %s",
				shared.ErrAPIRequest, response.Body.Code, response.Body.Message)
		}
	}
	return checkCode(response.Code)
}

// neteaseToTrack converts a NetEase API track to the platform-agnostic model.
// NetEase does not expose ISRC codes.
func neteaseToTrack(nt NeteaseTrack) models.Track {
	artists := make([]string, 0, len(nt.Artists))
	for _, a := range nt.Artists {
		artists = append(artists, a.Name)
	}

	track := models.Track{
		ID:         fmt.Sprintf("%d", nt.ID),
		Name:       nt.Name,
		Artists:    artists,
		DurationMS: nt.Duration,
	}
	if nt.Album != nil {
		track.Album = nt.Album.Name
		track.ImageURL = nt.Album.PicURL
	}
	return track
}
