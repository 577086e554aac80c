// package tasks implements asynchronous playlist conversion processing.
//
// The core abstraction is Orchestrator, which drives one conversion job end to
// end: fetch the source track list, match every track against the destination
// platform, persist match rows, apply confident matches, and finalize the job
// status. A Dispatcher runs orchestrator jobs on a bounded worker pool.
// Progress is published through a ProgressSink for non-blocking status
// reporting to CLI/SSE layers.
package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"crossfade/internal/match"
	"crossfade/internal/models"
	"crossfade/internal/repositories"
	"crossfade/internal/services"
	"crossfade/internal/shared"
	"github.com/charmbracelet/log"
)

// checkpointInterval is how many tracks are processed between persisted
// counter checkpoints and progress broadcasts. The last track always
// checkpoints regardless of position.
const checkpointInterval = 5

// CreateJobRequest is a validated request for a new conversion job.
type CreateJobRequest struct {
	SourcePlatform          models.Platform
	SourcePlaylistID        string
	Mode                    models.Mode
	DestinationPlaylistID   string // Required for UPDATE mode
	DestinationPlaylistName string // Defaults to the source playlist name in CREATE mode
}

// Orchestrator drives conversion jobs through their processing pipeline.
type Orchestrator struct {
	jobs     *repositories.JobRepository
	matches  *repositories.MatchRepository
	engine   *match.Engine
	registry map[models.Platform]services.Service
	creds    services.CredentialResolver
	sink     ProgressSink
	logger   *log.Logger
}

// NewOrchestrator creates an orchestrator over the given collaborators.
// sink may be nil, in which case progress updates are discarded.
func NewOrchestrator(
	jobs *repositories.JobRepository,
	matches *repositories.MatchRepository,
	engine *match.Engine,
	registry map[models.Platform]services.Service,
	creds services.CredentialResolver,
	sink ProgressSink,
	logger *log.Logger,
) *Orchestrator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Orchestrator{
		jobs:     jobs,
		matches:  matches,
		engine:   engine,
		registry: registry,
		creds:    creds,
		sink:     sink,
		logger:   logger,
	}
}

// CreateJob validates the request, resolves the source playlist's metadata,
// and persists a QUEUED job. The caller decides when to enqueue it for
// processing; the orchestrator never starts a job it cannot re-read from
// storage.
func (o *Orchestrator) CreateJob(ctx context.Context, req CreateJobRequest) (*models.ConversionJob, error) {
	if !req.SourcePlatform.Valid() {
		return nil, fmt.Errorf("%w: unknown source platform %q", shared.ErrInvalidInput, req.SourcePlatform)
	}
	if req.SourcePlaylistID == "" {
		return nil, fmt.Errorf("%w: source playlist id is required", shared.ErrInvalidInput)
	}
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", shared.ErrInvalidInput, req.Mode)
	}
	if req.Mode == models.ModeUpdate && req.DestinationPlaylistID == "" {
		return nil, fmt.Errorf("%w: destination playlist id is required for %s mode", shared.ErrInvalidInput, models.ModeUpdate)
	}

	svc, err := o.service(req.SourcePlatform)
	if err != nil {
		return nil, err
	}

	credential, err := o.creds.Resolve(req.SourcePlatform)
	if err != nil {
		return nil, err
	}

	info, err := svc.Playlist(ctx, credential, req.SourcePlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source playlist: %w", err)
	}

	job := models.NewConversionJob(0, req.SourcePlatform, req.SourcePlaylistID, info.Name, req.Mode)
	job.SetTotalTracks(info.TrackCount)
	job.SetDestinationPlaylistID(req.DestinationPlaylistID)

	destName := req.DestinationPlaylistName
	if destName == "" {
		destName = info.Name
	}
	job.SetDestinationPlaylistName(destName)

	if err := o.jobs.Create(job); err != nil {
		return nil, err
	}

	o.logger.Info("conversion job created", "job", job.ID(), "source", req.SourcePlatform, "playlist", info.Name, "mode", req.Mode)
	return job, nil
}

// Process runs one QUEUED job to a terminal or review state.
//
// Any error after the job enters PROCESSING marks it FAILED with the failure
// message; already-persisted match rows survive, partial progress is kept.
func (o *Orchestrator) Process(ctx context.Context, jobID string) error {
	job, err := o.jobs.Get(jobID)
	if err != nil {
		return err
	}
	if job.Status() != models.JobQueued {
		return fmt.Errorf("%w: job %s is %s, only %s jobs can be processed",
			shared.ErrInvalidInput, jobID, job.Status(), models.JobQueued)
	}

	job.SetStatus(models.JobProcessing)
	if err := o.jobs.Update(job); err != nil {
		return err
	}
	o.publish(fetchingSourceUpdate(job.ID(), job.SourcePlaylistName()))

	if err := o.run(ctx, job); err != nil {
		o.fail(job, err)
		return err
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, job *models.ConversionJob) error {
	sourceSvc, err := o.service(job.SourcePlatform())
	if err != nil {
		return err
	}
	destSvc, err := o.service(job.DestinationPlatform())
	if err != nil {
		return err
	}

	sourceCred, err := o.creds.Resolve(job.SourcePlatform())
	if err != nil {
		return err
	}
	destCred, err := o.creds.Resolve(job.DestinationPlatform())
	if err != nil {
		return err
	}

	if job.Mode() == models.ModeCreate {
		o.publish(creatingDestinationUpdate(job.ID(), job.DestinationPlaylistName()))

		playlistID, err := destSvc.CreatePlaylist(ctx, destCred, job.DestinationPlaylistName())
		if err != nil {
			return fmt.Errorf("failed to create destination playlist: %w", err)
		}
		job.SetDestinationPlaylistID(playlistID)
		if err := o.jobs.Update(job); err != nil {
			return err
		}
	}

	tracks, err := sourceSvc.PlaylistTracks(ctx, sourceCred, job.SourcePlaylistID())
	if err != nil {
		return fmt.Errorf("failed to fetch source tracks: %w", err)
	}

	job.SetTotalTracks(len(tracks))
	if err := o.jobs.Update(job); err != nil {
		return err
	}

	// UPDATE mode matches against the destination's current tracks first,
	// so tracks already present are detected without a search round-trip.
	var pool []models.Track
	if job.Mode() == models.ModeUpdate {
		pool, err = destSvc.PlaylistTracks(ctx, destCred, job.DestinationPlaylistID())
		if err != nil {
			return fmt.Errorf("failed to fetch destination tracks: %w", err)
		}
	}
	excluded := make(map[string]struct{})

	var toAdd []string
	var applied []*models.TrackMatch

	for i, track := range tracks {
		m := models.NewTrackMatch(i+1, job.ID(), track)

		if len(pool) > 0 && o.engine.MatchInPool(m, pool, excluded) {
			// Already at the destination. Claim it so no other source
			// track can match the same row, and never re-add it.
			excluded[m.Destination().ID] = struct{}{}
			now := time.Now()
			m.SetAppliedAt(&now)
		} else {
			if err := o.engine.MatchViaSearch(ctx, m, destSvc, destCred); err != nil {
				return fmt.Errorf("failed to match track %q: %w", track.Name, err)
			}
			if m.Status() == models.MatchAutoMatched {
				toAdd = append(toAdd, m.Destination().ID)
				applied = append(applied, m)
			}
		}

		if err := o.matches.Create(m); err != nil {
			return err
		}
		job.RecordMatch(m.Status())

		if (i+1)%checkpointInterval == 0 || i == len(tracks)-1 {
			if err := o.jobs.Update(job); err != nil {
				return err
			}
			o.publish(matchingUpdate(job.ID(), i+1, len(tracks), job))
		}
	}

	if len(toAdd) > 0 {
		o.publish(applyingMatchesUpdate(job.ID(), len(toAdd)))

		if err := destSvc.AddTracks(ctx, destCred, job.DestinationPlaylistID(), toAdd); err != nil {
			return fmt.Errorf("failed to add matched tracks: %w", err)
		}

		now := time.Now()
		for _, m := range applied {
			m.SetAppliedAt(&now)
			if err := o.matches.Update(m); err != nil {
				return err
			}
		}
	}

	if job.NeedsReview() {
		job.SetStatus(models.JobReviewPending)
	} else {
		job.SetStatus(models.JobCompleted)
		now := time.Now()
		job.SetCompletedAt(&now)
	}

	if err := o.jobs.Update(job); err != nil {
		return err
	}

	o.logger.Info("conversion job finished",
		"job", job.ID(),
		"status", job.Status(),
		"total", job.TotalTracks(),
		"auto", job.AutoMatched(),
		"review", job.ReviewPending(),
		"failed", job.FailedTracks(),
	)
	o.publish(finishedUpdate(job.ID(), job))
	return nil
}

// fail marks the job FAILED with the error message. Persisted match rows are
// kept; partial progress survives a failure.
func (o *Orchestrator) fail(job *models.ConversionJob, cause error) {
	o.logger.Error("conversion job failed", "job", job.ID(), "error", cause)

	job.SetStatus(models.JobFailed)
	job.SetErrorMessage(cause.Error())
	now := time.Now()
	job.SetCompletedAt(&now)

	if err := o.jobs.Update(job); err != nil {
		o.logger.Error("failed to persist job failure", "job", job.ID(), "error", err)
	}
	o.publish(failedUpdate(job.ID(), job, cause))
}

func (o *Orchestrator) service(platform models.Platform) (services.Service, error) {
	svc, ok := o.registry[platform]
	if !ok || svc == nil {
		return nil, fmt.Errorf("%w: no client for platform %s", shared.ErrServiceUnavailable, platform)
	}
	return svc, nil
}

func (o *Orchestrator) publish(update ProgressUpdate) {
	if o.sink == nil {
		return
	}
	o.sink.Publish(update)
}
