package server

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crossfade/internal/match"
	"crossfade/internal/models"
	"crossfade/internal/repositories"
	"crossfade/internal/review"
	"crossfade/internal/services"
	"crossfade/internal/shared"
	"crossfade/internal/tasks"
	mocks "crossfade/internal/testing"
	"github.com/charmbracelet/log"
)

type testEnv struct {
	db         *sql.DB
	jobs       *repositories.JobRepository
	matches    *repositories.MatchRepository
	spotify    *mocks.MockService
	netease    *mocks.MockService
	hub        *Hub
	dispatcher *tasks.Dispatcher
	router     *BasicRouter
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	jobs := repositories.NewJobRepository(db)
	matchRepo := repositories.NewMatchRepository(db)
	spotify := &mocks.MockService{PlatformName: "Spotify", PlatformID: models.PlatformSpotify}
	netease := &mocks.MockService{PlatformName: "NetEase Cloud Music", PlatformID: models.PlatformNetease}
	registry := map[models.Platform]services.Service{
		models.PlatformSpotify: spotify,
		models.PlatformNetease: netease,
	}
	resolver := &mocks.MockResolver{}
	logger := log.New(io.Discard)
	hub := NewHub()

	orchestrator := tasks.NewOrchestrator(jobs, matchRepo,
		match.NewEngine(match.DefaultConfig(), logger), registry, resolver, hub, logger)
	dispatcher := tasks.NewDispatcher(orchestrator, 1, logger)
	dispatcher.Start(context.Background())
	t.Cleanup(dispatcher.Stop)

	reviewer := review.NewReviewer(jobs, matchRepo, registry, resolver, logger)

	router := NewBasicRouter()
	router.Handler(NewJobsHandler(orchestrator, dispatcher, jobs, hub, logger))
	router.Handler(NewReviewHandler(reviewer, logger))

	return &testEnv{
		db:         db,
		jobs:       jobs,
		matches:    matchRepo,
		spotify:    spotify,
		netease:    netease,
		hub:        hub,
		dispatcher: dispatcher,
		router:     router,
	}
}

func seedReviewJob(t *testing.T, env *testEnv) (*models.ConversionJob, *models.TrackMatch) {
	t.Helper()

	job := models.NewConversionJob(0, models.PlatformSpotify, "pl-src", "Mixed Bag", models.ModeCreate)
	job.SetDestinationPlaylistName("Mixed Bag")
	if err := env.jobs.Create(job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	job.SetDestinationPlaylistID("pl-dst")
	job.SetTotalTracks(1)
	job.RecordMatch(models.MatchPendingReview)
	job.SetStatus(models.JobReviewPending)
	if err := env.jobs.Update(job); err != nil {
		t.Fatalf("failed to update job: %v", err)
	}

	pending := models.NewTrackMatch(1, job.ID(), models.Track{ID: "s1", Name: "Close Enough", Artists: []string{"Band A"}})
	pending.SetDestination(&models.Track{ID: "d1", Name: "Close Enough (Remastered)"})
	pending.SetConfidence(0.7)
	pending.SetStatus(models.MatchPendingReview)
	if err := env.matches.Create(pending); err != nil {
		t.Fatalf("failed to create match: %v", err)
	}

	return job, pending
}

func TestCreateJobEndpoint(t *testing.T) {
	env := setupEnv(t)
	env.spotify.Playlists = map[string]*models.PlaylistInfo{
		"pl-src": {ID: "pl-src", Name: "Road Trip", TrackCount: 0},
	}
	env.netease.CreatedID = "pl-dst"

	body, _ := json.Marshal(map[string]string{
		"source_platform":    "spotify",
		"source_playlist_id": "pl-src",
		"mode":               "create",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID == "" || resp.Status != string(models.JobQueued) {
		t.Errorf("response = %+v, want a queued job with an id", resp)
	}

	// The dispatcher picks the job up after the row commits
	env.dispatcher.Stop()
	final, err := env.jobs.Get(resp.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if final.Status() != models.JobCompleted {
		t.Errorf("processed status = %s, want %s", final.Status(), models.JobCompleted)
	}
}

func TestCreateJobEndpointValidation(t *testing.T) {
	env := setupEnv(t)

	body, _ := json.Marshal(map[string]string{
		"source_platform":    "spotify",
		"source_playlist_id": "pl-src",
		"mode":               "update",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetJobEndpoint(t *testing.T) {
	env := setupEnv(t)
	job, _ := seedReviewJob(t, env)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID(), nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != string(models.JobReviewPending) {
		t.Errorf("status = %s, want %s", resp.Status, models.JobReviewPending)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status for missing job = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestListJobsEndpoint(t *testing.T) {
	env := setupEnv(t)
	seedReviewJob(t, env)
	seedReviewJob(t, env)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?status=review_pending", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp []jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Errorf("jobs = %d, want 2", len(resp))
	}
}

func TestPendingMatchesEndpoint(t *testing.T) {
	env := setupEnv(t)
	job, pending := seedReviewJob(t, env)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID()+"/matches", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp []matchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != pending.ID() {
		t.Errorf("matches = %+v, want the pending match", resp)
	}
}

func TestApproveEndpoint(t *testing.T) {
	env := setupEnv(t)
	job, pending := seedReviewJob(t, env)

	req := httptest.NewRequest(http.MethodPost, "/api/matches/"+pending.ID()+"/approve", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp matchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != string(models.MatchUserApproved) {
		t.Errorf("status = %s, want %s", resp.Status, models.MatchUserApproved)
	}

	// Last unresolved match approved, job completes
	final, err := env.jobs.Get(job.ID())
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if final.Status() != models.JobCompleted {
		t.Errorf("job status = %s, want %s", final.Status(), models.JobCompleted)
	}
}

func TestApproveEndpointFlagsExpiredSessions(t *testing.T) {
	env := setupEnv(t)
	_, pending := seedReviewJob(t, env)
	env.netease.AddErr = shared.ErrSessionExpired

	req := httptest.NewRequest(http.MethodPost, "/api/matches/"+pending.ID()+"/approve", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusUnauthorized, rec.Body.String())
	}
	if got := rec.Header().Get("X-Session-Expired"); got != "true" {
		t.Errorf("X-Session-Expired = %q, want %q", got, "true")
	}
}

func TestApproveEndpointOmitsExpiryFlagOnOtherErrors(t *testing.T) {
	env := setupEnv(t)
	seedReviewJob(t, env)

	req := httptest.NewRequest(http.MethodPost, "/api/matches/missing/approve", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if got := rec.Header().Get("X-Session-Expired"); got != "" {
		t.Errorf("X-Session-Expired = %q, want empty", got)
	}
}

func TestSkipEndpoint(t *testing.T) {
	env := setupEnv(t)
	_, pending := seedReviewJob(t, env)

	req := httptest.NewRequest(http.MethodPost, "/api/matches/"+pending.ID()+"/skip", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(env.netease.AddCalls) != 0 {
		t.Errorf("add calls = %d, want 0 for a skip", len(env.netease.AddCalls))
	}
}

func TestManualSearchEndpoint(t *testing.T) {
	env := setupEnv(t)
	job, _ := seedReviewJob(t, env)
	env.netease.SearchResults = map[string][]models.Track{
		"obscure": {{ID: "c1", Name: "Candidate"}},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID()+"/search?q=obscure", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp []models.Track
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != "c1" {
		t.Errorf("results = %+v, want the raw candidate", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID()+"/search", nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status for empty query = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHub(t *testing.T) {
	t.Run("FansOutToMatchingSubscribers", func(t *testing.T) {
		hub := NewHub()

		jobCh, cancelJob := hub.Subscribe("job-1")
		defer cancelJob()
		allCh, cancelAll := hub.Subscribe("")
		defer cancelAll()
		otherCh, cancelOther := hub.Subscribe("job-2")
		defer cancelOther()

		hub.Publish(tasks.ProgressUpdate{JobID: "job-1", Phase: tasks.MatchTracks})

		select {
		case update := <-jobCh:
			if update.JobID != "job-1" {
				t.Errorf("job subscriber got %s", update.JobID)
			}
		default:
			t.Error("job subscriber should have received the update")
		}

		select {
		case <-allCh:
		default:
			t.Error("wildcard subscriber should have received the update")
		}

		select {
		case <-otherCh:
			t.Error("unrelated subscriber should not receive the update")
		default:
		}
	})

	t.Run("DropsWhenSubscriberIsFull", func(t *testing.T) {
		hub := NewHub()
		_, cancel := hub.Subscribe("job-1")
		defer cancel()

		// Never blocks even though nobody drains the channel
		for i := 0; i < 100; i++ {
			hub.Publish(tasks.ProgressUpdate{JobID: "job-1", Phase: tasks.MatchTracks, Step: i})
		}
	})

	t.Run("CancelIsIdempotent", func(t *testing.T) {
		hub := NewHub()
		_, cancel := hub.Subscribe("job-1")
		cancel()
		cancel()

		hub.Publish(tasks.ProgressUpdate{JobID: "job-1"})
	})
}

func TestStreamEndpoint(t *testing.T) {
	env := setupEnv(t)
	job, _ := seedReviewJob(t, env)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/jobs/" + job.ID() + "/events")
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %s, want text/event-stream", ct)
	}

	// Give the handler time to subscribe, then finish the job
	time.Sleep(50 * time.Millisecond)
	env.hub.Publish(tasks.ProgressUpdate{JobID: job.ID(), Phase: tasks.Finished, Message: "done"})

	reader := bufio.NewReader(resp.Body)
	deadline := time.After(2 * time.Second)
	lines := make(chan string, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			if strings.HasPrefix(line, "data: ") {
				lines <- line
				return
			}
		}
	}()

	select {
	case line := <-lines:
		if !strings.Contains(line, `"phase":"finished"`) {
			t.Errorf("event = %q, want a finished phase", line)
		}
	case <-deadline:
		t.Fatal("timed out waiting for the SSE event")
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)

	router := NewBasicRouter()
	router.Use(LoggingMiddleware(logger))
	router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if !strings.Contains(buf.String(), "/ping") {
		t.Errorf("log output %q should contain the request path", buf.String())
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	router := NewBasicRouter()
	router.Handle(http.MethodPost, "/api/jobs", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
