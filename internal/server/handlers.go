package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crossfade/internal/models"
	"crossfade/internal/repositories"
	"crossfade/internal/review"
	"crossfade/internal/shared"
	"crossfade/internal/tasks"
	"github.com/charmbracelet/log"
)

// jobResponse is the wire representation of a conversion job.
type jobResponse struct {
	ID                      string     `json:"id"`
	SourcePlatform          string     `json:"source_platform"`
	SourcePlaylistID        string     `json:"source_playlist_id"`
	SourcePlaylistName      string     `json:"source_playlist_name"`
	DestinationPlatform     string     `json:"destination_platform"`
	DestinationPlaylistID   string     `json:"destination_playlist_id,omitempty"`
	DestinationPlaylistName string     `json:"destination_playlist_name"`
	Mode                    string     `json:"mode"`
	Status                  string     `json:"status"`
	TotalTracks             int        `json:"total_tracks"`
	ProcessedTracks         int        `json:"processed_tracks"`
	AutoMatched             int        `json:"auto_matched"`
	ReviewPending           int        `json:"review_pending"`
	FailedTracks            int        `json:"failed_tracks"`
	ErrorMessage            string     `json:"error_message,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	CompletedAt             *time.Time `json:"completed_at,omitempty"`
}

func toJobResponse(job *models.ConversionJob) jobResponse {
	return jobResponse{
		ID:                      job.ID(),
		SourcePlatform:          string(job.SourcePlatform()),
		SourcePlaylistID:        job.SourcePlaylistID(),
		SourcePlaylistName:      job.SourcePlaylistName(),
		DestinationPlatform:     string(job.DestinationPlatform()),
		DestinationPlaylistID:   job.DestinationPlaylistID(),
		DestinationPlaylistName: job.DestinationPlaylistName(),
		Mode:                    string(job.Mode()),
		Status:                  string(job.Status()),
		TotalTracks:             job.TotalTracks(),
		ProcessedTracks:         job.ProcessedTracks(),
		AutoMatched:             job.AutoMatched(),
		ReviewPending:           job.ReviewPending(),
		FailedTracks:            job.FailedTracks(),
		ErrorMessage:            job.ErrorMessage(),
		CreatedAt:               job.CreatedAt(),
		CompletedAt:             job.CompletedAt(),
	}
}

// matchResponse is the wire representation of a track match.
type matchResponse struct {
	ID          string        `json:"id"`
	Sequence    int           `json:"sequence"`
	JobID       string        `json:"job_id"`
	Source      models.Track  `json:"source"`
	Destination *models.Track `json:"destination,omitempty"`
	Confidence  float64       `json:"confidence"`
	Status      string        `json:"status"`
	ReviewedAt  *time.Time    `json:"reviewed_at,omitempty"`
	AppliedAt   *time.Time    `json:"applied_at,omitempty"`
}

func toMatchResponse(m *models.TrackMatch) matchResponse {
	return matchResponse{
		ID:          m.ID(),
		Sequence:    m.Sequence(),
		JobID:       m.JobID(),
		Source:      m.Source(),
		Destination: m.Destination(),
		Confidence:  m.Confidence(),
		Status:      string(m.Status()),
		ReviewedAt:  m.ReviewedAt(),
		AppliedAt:   m.AppliedAt(),
	}
}

// httpStatus maps domain errors to response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, shared.ErrJobNotFound), errors.Is(err, shared.ErrMatchNotFound), errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrSessionExpired), errors.Is(err, shared.ErrMissingCredentials), errors.Is(err, shared.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// JobsHandler serves job creation, retrieval, listing, and the SSE progress stream.
type JobsHandler struct {
	orchestrator *tasks.Orchestrator
	dispatcher   *tasks.Dispatcher
	jobs         *repositories.JobRepository
	hub          *Hub
	logger       *log.Logger
}

// NewJobsHandler creates the job endpoint group.
func NewJobsHandler(
	orchestrator *tasks.Orchestrator,
	dispatcher *tasks.Dispatcher,
	jobs *repositories.JobRepository,
	hub *Hub,
	logger *log.Logger,
) *JobsHandler {
	return &JobsHandler{
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
		jobs:         jobs,
		hub:          hub,
		logger:       logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *JobsHandler) Routes() []string {
	return []string{
		"POST /api/jobs",
		"GET /api/jobs",
		"GET /api/jobs/{id}",
		"GET /api/jobs/{id}/events",
	}
}

func (h *JobsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch {
	case r.Method == http.MethodPost:
		h.create(w, r)
	case id == "":
		h.list(w, r)
	case strings.HasSuffix(r.URL.Path, "/events"):
		h.stream(w, r, id)
	default:
		h.get(w, id)
	}
}

type createJobRequest struct {
	SourcePlatform          string `json:"source_platform"`
	SourcePlaylistID        string `json:"source_playlist_id"`
	Mode                    string `json:"mode"`
	DestinationPlaylistID   string `json:"destination_playlist_id"`
	DestinationPlaylistName string `json:"destination_playlist_name"`
}

// create persists a QUEUED job, then enqueues it. The job is only handed to
// the dispatcher after the row is committed.
func (h *JobsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	job, err := h.orchestrator.CreateJob(r.Context(), tasks.CreateJobRequest{
		SourcePlatform:          models.Platform(strings.ToUpper(req.SourcePlatform)),
		SourcePlaylistID:        req.SourcePlaylistID,
		Mode:                    models.Mode(strings.ToUpper(req.Mode)),
		DestinationPlaylistID:   req.DestinationPlaylistID,
		DestinationPlaylistName: req.DestinationPlaylistName,
	})
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}

	if err := h.dispatcher.Enqueue(job.ID()); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}

	writeJSON(w, http.StatusAccepted, toJobResponse(job))
}

func (h *JobsHandler) get(w http.ResponseWriter, id string) {
	job, err := h.jobs.Get(id)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (h *JobsHandler) list(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{}
	if status := r.URL.Query().Get("status"); status != "" {
		criteria["status"] = strings.ToUpper(status)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: limit must be an integer", shared.ErrInvalidFlag))
			return
		}
		criteria["limit"] = n
	}

	jobs, err := h.jobs.List(criteria)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}

	payload := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		payload = append(payload, toJobResponse(job))
	}
	writeJSON(w, http.StatusOK, payload)
}

// progressEvent is the SSE payload for one progress update.
type progressEvent struct {
	JobID    string          `json:"job_id"`
	Phase    string          `json:"phase"`
	Step     int             `json:"step,omitempty"`
	Total    int             `json:"total,omitempty"`
	Message  string          `json:"message"`
	Snapshot *tasks.Snapshot `json:"snapshot,omitempty"`
}

// stream sends the job's progress updates as server-sent events until the
// client disconnects.
func (h *JobsHandler) stream(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, err := h.jobs.Get(jobID); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, cancel := h.hub.Subscribe(jobID)
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			payload, err := json.Marshal(progressEvent{
				JobID:    update.JobID,
				Phase:    update.Phase.String(),
				Step:     update.Step,
				Total:    update.Total,
				Message:  update.Message,
				Snapshot: update.Snapshot,
			})
			if err != nil {
				continue
			}

			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()

			if update.Phase == tasks.Finished || update.Phase == tasks.Failed {
				return
			}
		}
	}
}

// ReviewHandler serves the review workflow endpoints.
type ReviewHandler struct {
	reviewer *review.Reviewer
	logger   *log.Logger
}

// NewReviewHandler creates the review endpoint group.
func NewReviewHandler(reviewer *review.Reviewer, logger *log.Logger) *ReviewHandler {
	return &ReviewHandler{reviewer: reviewer, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *ReviewHandler) Routes() []string {
	return []string{
		"GET /api/jobs/{id}/matches",
		"GET /api/jobs/{id}/search",
		"POST /api/matches/{id}/approve",
		"POST /api/matches/{id}/skip",
	}
}

func (h *ReviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch {
	case strings.HasSuffix(r.URL.Path, "/matches"):
		h.pending(w, id)
	case strings.HasSuffix(r.URL.Path, "/search"):
		h.search(w, r, id)
	case strings.HasSuffix(r.URL.Path, "/approve"):
		h.approve(w, r, id)
	case strings.HasSuffix(r.URL.Path, "/skip"):
		h.skip(w, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *ReviewHandler) pending(w http.ResponseWriter, jobID string) {
	matches, err := h.reviewer.Pending(jobID)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}

	payload := make([]matchResponse, 0, len(matches))
	for _, m := range matches {
		payload = append(payload, toMatchResponse(m))
	}
	writeJSON(w, http.StatusOK, payload)
}

type approveRequest struct {
	Override *review.Override `json:"override"`
}

func (h *ReviewHandler) approve(w http.ResponseWriter, r *http.Request, matchID string) {
	var req approveRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
			return
		}
	}

	m, err := h.reviewer.Approve(r.Context(), matchID, req.Override)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

func (h *ReviewHandler) skip(w http.ResponseWriter, matchID string) {
	m, err := h.reviewer.Skip(matchID)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

func (h *ReviewHandler) search(w http.ResponseWriter, r *http.Request, jobID string) {
	query := r.URL.Query().Get("q")

	results, err := h.reviewer.ManualSearch(r.Context(), jobID, query)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
