// package review implements the human review workflow for uncertain matches.
//
// Matches left in PENDING_REVIEW or FAILED by job processing are resolved here
// by explicit decision: approve (optionally with a manually chosen track) or
// skip. Once a job has no unresolved matches left it transitions from
// REVIEW_PENDING to COMPLETED.
package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"crossfade/internal/models"
	"crossfade/internal/repositories"
	"crossfade/internal/services"
	"crossfade/internal/shared"
	"github.com/charmbracelet/log"
)

// Override is a manually chosen destination track supplied with an approval.
type Override struct {
	DestinationID string   `json:"destination_id"`
	Name          string   `json:"name"`
	Artists       []string `json:"artists"`
	DurationMS    int      `json:"duration_ms"`
	ImageURL      string   `json:"image_url"`
}

// Reviewer executes review decisions against matches and their jobs.
//
// Approve and Skip may arrive from concurrent request handlers; the job
// completion recount is serialized per job so two concurrent decisions cannot
// double-trigger the REVIEW_PENDING to COMPLETED transition.
type Reviewer struct {
	jobs     *repositories.JobRepository
	matches  *repositories.MatchRepository
	registry map[models.Platform]services.Service
	creds    services.CredentialResolver
	logger   *log.Logger

	mu       sync.Mutex
	jobLocks map[string]*sync.Mutex
}

// NewReviewer creates a reviewer over the given collaborators.
func NewReviewer(
	jobs *repositories.JobRepository,
	matches *repositories.MatchRepository,
	registry map[models.Platform]services.Service,
	creds services.CredentialResolver,
	logger *log.Logger,
) *Reviewer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Reviewer{
		jobs:     jobs,
		matches:  matches,
		registry: registry,
		creds:    creds,
		logger:   logger,
		jobLocks: make(map[string]*sync.Mutex),
	}
}

// Pending returns a job's unresolved matches (PENDING_REVIEW or FAILED) in
// playlist order.
func (r *Reviewer) Pending(jobID string) ([]*models.TrackMatch, error) {
	if _, err := r.jobs.Get(jobID); err != nil {
		return nil, err
	}
	return r.matches.ListByJobAndStatus(jobID, models.MatchPendingReview, models.MatchFailed)
}

// Approve accepts a match, optionally replacing its destination with a
// manually chosen track, adds the destination track to the job's destination
// playlist, and marks the match USER_APPROVED.
//
// A destination track id must be resolvable from the match or the override.
// The platform treating the track as already present counts as success.
func (r *Reviewer) Approve(ctx context.Context, matchID string, override *Override) (*models.TrackMatch, error) {
	m, err := r.matches.Get(matchID)
	if err != nil {
		return nil, err
	}
	if !m.Status().Reviewable() {
		return nil, fmt.Errorf("%w: match %s is %s, not reviewable", shared.ErrInvalidInput, matchID, m.Status())
	}

	if override != nil {
		if override.DestinationID == "" {
			return nil, fmt.Errorf("%w: override requires a destination track id", shared.ErrInvalidInput)
		}
		m.SetDestination(&models.Track{
			ID:         override.DestinationID,
			Name:       override.Name,
			Artists:    override.Artists,
			DurationMS: override.DurationMS,
			ImageURL:   override.ImageURL,
		})
		m.SetConfidence(1.0)
	}
	if m.Destination() == nil || m.Destination().ID == "" {
		return nil, fmt.Errorf("%w: match has no destination track, supply an override", shared.ErrInvalidInput)
	}

	job, err := r.jobs.Get(m.JobID())
	if err != nil {
		return nil, err
	}

	svc, credential, err := r.destination(job)
	if err != nil {
		return nil, err
	}

	if err := svc.AddTracks(ctx, credential, job.DestinationPlaylistID(), []string{m.Destination().ID}); err != nil {
		if errors.Is(err, shared.ErrSessionExpired) {
			return nil, r.expireSession(job.DestinationPlatform(), err)
		}
		return nil, fmt.Errorf("failed to add approved track: %w", err)
	}

	now := time.Now()
	m.SetStatus(models.MatchUserApproved)
	m.SetReviewedAt(&now)
	m.SetAppliedAt(&now)

	if err := r.matches.Update(m); err != nil {
		return nil, err
	}

	r.logger.Info("match approved", "match", matchID, "job", m.JobID(), "track", m.Source().Name)

	if err := r.recompute(m.JobID()); err != nil {
		return nil, err
	}
	return m, nil
}

// Skip resolves a match as USER_SKIPPED with no platform mutation.
func (r *Reviewer) Skip(matchID string) (*models.TrackMatch, error) {
	m, err := r.matches.Get(matchID)
	if err != nil {
		return nil, err
	}
	if !m.Status().Reviewable() {
		return nil, fmt.Errorf("%w: match %s is %s, not reviewable", shared.ErrInvalidInput, matchID, m.Status())
	}

	now := time.Now()
	m.SetStatus(models.MatchUserSkipped)
	m.SetReviewedAt(&now)

	if err := r.matches.Update(m); err != nil {
		return nil, err
	}

	r.logger.Info("match skipped", "match", matchID, "job", m.JobID(), "track", m.Source().Name)

	if err := r.recompute(m.JobID()); err != nil {
		return nil, err
	}
	return m, nil
}

// ManualSearch runs a raw query against the job's destination platform so the
// reviewer can pick a track by hand. Candidates are returned unscored.
func (r *Reviewer) ManualSearch(ctx context.Context, jobID, query string) ([]models.Track, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", shared.ErrInvalidInput)
	}

	job, err := r.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}

	svc, credential, err := r.destination(job)
	if err != nil {
		return nil, err
	}

	results, err := svc.SearchTracks(ctx, credential, query)
	if err != nil {
		if errors.Is(err, shared.ErrSessionExpired) {
			return nil, r.expireSession(job.DestinationPlatform(), err)
		}
		return nil, err
	}
	return results, nil
}

// recompute checks whether the job still has unresolved matches and completes
// it when none remain. Serialized per job.
func (r *Reviewer) recompute(jobID string) error {
	lock := r.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	remaining, err := r.matches.CountByJobAndStatus(jobID, models.MatchPendingReview, models.MatchFailed)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}

	job, err := r.jobs.Get(jobID)
	if err != nil {
		return err
	}
	if job.Status() != models.JobReviewPending {
		return nil
	}

	job.SetStatus(models.JobCompleted)
	now := time.Now()
	job.SetCompletedAt(&now)

	if err := r.jobs.Update(job); err != nil {
		return err
	}

	r.logger.Info("review finished, job completed", "job", jobID)
	return nil
}

func (r *Reviewer) lockFor(jobID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.jobLocks[jobID]
	if !ok {
		lock = &sync.Mutex{}
		r.jobLocks[jobID] = lock
	}
	return lock
}

// expireSession clears the stored credential so the next call forces a fresh
// authentication, and surfaces the expiry distinctly to the caller.
func (r *Reviewer) expireSession(platform models.Platform, cause error) error {
	if err := r.creds.Invalidate(platform); err != nil {
		r.logger.Error("failed to invalidate credential", "platform", platform, "error", err)
	}
	return fmt.Errorf("reconnect %s and retry: %w", platform, cause)
}

func (r *Reviewer) destination(job *models.ConversionJob) (services.Service, string, error) {
	platform := job.DestinationPlatform()

	svc, ok := r.registry[platform]
	if !ok || svc == nil {
		return nil, "", fmt.Errorf("%w: no client for platform %s", shared.ErrServiceUnavailable, platform)
	}

	credential, err := r.creds.Resolve(platform)
	if err != nil {
		return nil, "", err
	}
	return svc, credential, nil
}
