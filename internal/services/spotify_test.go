package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crossfade/internal/models"
	"crossfade/internal/shared"
)

func newTestSpotify(t *testing.T, handler http.Handler) *SpotifyService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewSpotifyService(
		shared.SpotifyConfig{ClientID: "test_client_id", ClientSecret: "test_client_secret"},
		shared.WorkerConfig{RateLimit: 1000, RetryAttempts: 1},
	)
	svc.baseURL = server.URL
	return svc
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()

	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("uses default redirect URI", func(t *testing.T) {
			svc := NewSpotifyService(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret"}, shared.WorkerConfig{})
			if svc.config.RedirectURL != "http://localhost:8080/callback" {
				t.Errorf("expected default redirect URI, got %s", svc.config.RedirectURL)
			}
		})

		t.Run("keeps configured redirect URI", func(t *testing.T) {
			svc := NewSpotifyService(shared.SpotifyConfig{RedirectURI: "http://example.com/cb"}, shared.WorkerConfig{})
			if svc.config.RedirectURL != "http://example.com/cb" {
				t.Errorf("expected configured redirect URI, got %s", svc.config.RedirectURL)
			}
		})

		t.Run("applies the configured call timeout", func(t *testing.T) {
			svc := NewSpotifyService(shared.SpotifyConfig{}, shared.WorkerConfig{CallTimeoutMS: 2000})
			if svc.httpClient.Timeout != 2*time.Second {
				t.Errorf("expected 2s timeout, got %v", svc.httpClient.Timeout)
			}
		})

		t.Run("defaults the call timeout when unset", func(t *testing.T) {
			svc := NewSpotifyService(shared.SpotifyConfig{}, shared.WorkerConfig{})
			if svc.httpClient.Timeout != 10*time.Second {
				t.Errorf("expected 10s default timeout, got %v", svc.httpClient.Timeout)
			}
		})
	})

	t.Run("Name and Platform", func(t *testing.T) {
		svc := NewSpotifyService(shared.SpotifyConfig{}, shared.WorkerConfig{})
		if svc.Name() != "Spotify" {
			t.Errorf("expected name 'Spotify', got %s", svc.Name())
		}
		if svc.Platform() != models.PlatformSpotify {
			t.Errorf("expected SPOTIFY platform, got %s", svc.Platform())
		}
	})

	t.Run("AuthURL", func(t *testing.T) {
		svc := NewSpotifyService(shared.SpotifyConfig{ClientID: "test_client_id", ClientSecret: "secret"}, shared.WorkerConfig{})

		authURL := svc.AuthURL("test_state")
		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
	})

	t.Run("SearchTracks", func(t *testing.T) {
		t.Run("maps results and sends bearer token", func(t *testing.T) {
			svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/search" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("q"); got != "Bohemian Rhapsody Queen" {
					t.Errorf("unexpected query %q", got)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer token" {
					t.Errorf("unexpected auth header %q", got)
				}
				json.NewEncoder(w).Encode(map[string]any{
					"tracks": map[string]any{
						"items": []SpotifyTrack{{
							ID:          "t1",
							Name:        "Bohemian Rhapsody",
							Artists:     []SpotifyArtist{{Name: "Queen"}},
							Album:       SpotifyAlbum{Name: "A Night at the Opera", Images: []SpotifyImage{{URL: "http://img"}}},
							DurationMS:  354000,
							ExternalIDs: externalIDs{ISRC: "GBUM71029604"},
						}},
					},
				})
			}))

			tracks, err := svc.SearchTracks(ctx, "token", "Bohemian Rhapsody Queen")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 1 {
				t.Fatalf("expected 1 track, got %d", len(tracks))
			}

			track := tracks[0]
			if track.ID != "t1" || track.Name != "Bohemian Rhapsody" {
				t.Errorf("unexpected track %+v", track)
			}
			if track.FirstArtist() != "Queen" {
				t.Errorf("expected artist Queen, got %s", track.FirstArtist())
			}
			if track.ISRC != "GBUM71029604" || track.ImageURL != "http://img" {
				t.Errorf("expected ISRC and image to be mapped, got %+v", track)
			}
		})

		t.Run("rejects empty credential without calling the API", func(t *testing.T) {
			var calls atomic.Int32
			svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
			}))

			_, err := svc.SearchTracks(ctx, "", "query")
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
			if calls.Load() != 0 {
				t.Errorf("expected no API calls, got %d", calls.Load())
			}
		})

		t.Run("maps 401 to session expiry without retrying", func(t *testing.T) {
			var calls atomic.Int32
			svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusUnauthorized)
			}))

			_, err := svc.SearchTracks(ctx, "stale", "query")
			if !errors.Is(err, shared.ErrSessionExpired) {
				t.Errorf("expected ErrSessionExpired, got %v", err)
			}
			if calls.Load() != 1 {
				t.Errorf("expected exactly 1 call, got %d", calls.Load())
			}
		})
	})

	t.Run("Playlist maps metadata", func(t *testing.T) {
		svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/pl1" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id":     "pl1",
				"name":   "Road Trip",
				"tracks": map[string]any{"total": 42},
			})
		}))

		info, err := svc.Playlist(ctx, "token", "pl1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if info.ID != "pl1" || info.Name != "Road Trip" || info.TrackCount != 42 {
			t.Errorf("unexpected playlist info %+v", info)
		}
	})

	t.Run("PlaylistTracks", func(t *testing.T) {
		t.Run("follows pagination", func(t *testing.T) {
			next := "page2"
			svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				offset := r.URL.Query().Get("offset")
				page := playlistTracks{}
				if offset == "0" {
					page.Next = &next
					page.Items = []SpotifyPlaylistTrack{{Track: SpotifyTrack{ID: "a", Name: "First"}}}
				} else {
					page.Items = []SpotifyPlaylistTrack{{Track: SpotifyTrack{ID: "b", Name: "Second"}}}
				}
				json.NewEncoder(w).Encode(page)
			}))

			tracks, err := svc.PlaylistTracks(ctx, "token", "pl1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 2 || tracks[0].ID != "a" || tracks[1].ID != "b" {
				t.Errorf("expected both pages in order, got %+v", tracks)
			}
		})

		t.Run("skips local tracks without ids", func(t *testing.T) {
			svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(playlistTracks{
					Items: []SpotifyPlaylistTrack{
						{Track: SpotifyTrack{ID: "", Name: "Local File"}},
						{Track: SpotifyTrack{ID: "c", Name: "Streamed"}},
					},
				})
			}))

			tracks, err := svc.PlaylistTracks(ctx, "token", "pl1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 1 || tracks[0].ID != "c" {
				t.Errorf("expected local track to be skipped, got %+v", tracks)
			}
		})
	})

	t.Run("CreatePlaylist resolves the current user first", func(t *testing.T) {
		svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/me":
				json.NewEncoder(w).Encode(map[string]string{"id": "user1"})
			case "/users/user1/playlists":
				var body map[string]any
				json.NewDecoder(r.Body).Decode(&body)
				if body["name"] != "New Mix" {
					t.Errorf("unexpected playlist name %v", body["name"])
				}
				if body["public"] != false {
					t.Error("expected playlist to be private")
				}
				json.NewEncoder(w).Encode(map[string]string{"id": "created1"})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))

		id, err := svc.CreatePlaylist(ctx, "token", "New Mix")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "created1" {
			t.Errorf("expected created1, got %s", id)
		}
	})

	t.Run("AddTracks prefixes bare ids as URIs", func(t *testing.T) {
		var gotURIs []string
		svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				URIs []string `json:"uris"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			gotURIs = body.URIs
			w.WriteHeader(http.StatusCreated)
		}))

		err := svc.AddTracks(ctx, "token", "pl1", []string{"abc", "spotify:track:def"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(gotURIs) != 2 || gotURIs[0] != "spotify:track:abc" || gotURIs[1] != "spotify:track:def" {
			t.Errorf("unexpected URIs %v", gotURIs)
		}
	})

	t.Run("AddTracks with no ids makes no calls", func(t *testing.T) {
		var calls atomic.Int32
		svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))

		if err := svc.AddTracks(ctx, "token", "pl1", nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if calls.Load() != 0 {
			t.Errorf("expected no API calls, got %d", calls.Load())
		}
	})
}
