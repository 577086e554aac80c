package tasks

import (
	"fmt"

	"crossfade/internal/models"
)

// ProgressUpdate represents a progress event during job processing.
//
// Sent to the CLI or SSE layer for display. Delivery is best-effort; slow
// consumers miss updates rather than stalling the orchestrator.
type ProgressUpdate struct {
	JobID    string    // Job the update belongs to
	Phase    Phase     // Processing phase
	Step     int       // Current step number within phase
	Total    int       // Total steps in this phase
	Message  string    // Human-readable message for display
	Snapshot *Snapshot // Job counters at the time of the update, when meaningful
}

// Snapshot carries a job's counters for progress consumers.
type Snapshot struct {
	Status          models.JobStatus `json:"status"`
	TotalTracks     int              `json:"total_tracks"`
	ProcessedTracks int              `json:"processed_tracks"`
	AutoMatched     int              `json:"auto_matched"`
	ReviewPending   int              `json:"review_pending"`
	FailedTracks    int              `json:"failed_tracks"`
}

func snapshotOf(job *models.ConversionJob) *Snapshot {
	return &Snapshot{
		Status:          job.Status(),
		TotalTracks:     job.TotalTracks(),
		ProcessedTracks: job.ProcessedTracks(),
		AutoMatched:     job.AutoMatched(),
		ReviewPending:   job.ReviewPending(),
		FailedTracks:    job.FailedTracks(),
	}
}

// Processing phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	MatchTracks
	CreateDestination
	ApplyMatches
	Finished
	Failed
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case MatchTracks:
		return "match_tracks"
	case CreateDestination:
		return "create_destination"
	case ApplyMatches:
		return "apply_matches"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// ProgressSink receives progress updates from the orchestrator.
//
// Publish must not block; implementations drop updates for slow consumers.
type ProgressSink interface {
	Publish(update ProgressUpdate)
}

// ChannelSink adapts a channel to ProgressSink with non-blocking sends.
type ChannelSink struct {
	ch chan<- ProgressUpdate
}

// NewChannelSink wraps a channel for progress delivery. Updates are dropped
// when the channel is full.
func NewChannelSink(ch chan<- ProgressUpdate) *ChannelSink {
	return &ChannelSink{ch: ch}
}

func (s *ChannelSink) Publish(update ProgressUpdate) {
	select {
	case s.ch <- update:
		// Sent successfully
	default:
		// Channel full, skip this update rather than blocking processing
	}
}

func fetchingSourceUpdate(jobID, playlistName string) ProgressUpdate {
	return ProgressUpdate{
		JobID:   jobID,
		Phase:   FetchSource,
		Message: fmt.Sprintf("Fetching source playlist (%s)...", playlistName),
	}
}

func matchingUpdate(jobID string, step, total int, job *models.ConversionJob) ProgressUpdate {
	return ProgressUpdate{
		JobID:    jobID,
		Phase:    MatchTracks,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("Matched %d of %d tracks", step, total),
		Snapshot: snapshotOf(job),
	}
}

func creatingDestinationUpdate(jobID, playlistName string) ProgressUpdate {
	return ProgressUpdate{
		JobID:   jobID,
		Phase:   CreateDestination,
		Message: fmt.Sprintf("Creating destination playlist (%s)...", playlistName),
	}
}

func applyingMatchesUpdate(jobID string, count int) ProgressUpdate {
	return ProgressUpdate{
		JobID:   jobID,
		Phase:   ApplyMatches,
		Total:   count,
		Message: fmt.Sprintf("Adding %d matched tracks...", count),
	}
}

func finishedUpdate(jobID string, job *models.ConversionJob) ProgressUpdate {
	return ProgressUpdate{
		JobID:    jobID,
		Phase:    Finished,
		Message:  fmt.Sprintf("Conversion finished with status %s", job.Status()),
		Snapshot: snapshotOf(job),
	}
}

func failedUpdate(jobID string, job *models.ConversionJob, err error) ProgressUpdate {
	update := ProgressUpdate{
		JobID:   jobID,
		Phase:   Failed,
		Message: fmt.Sprintf("Conversion failed: %v", err),
	}
	if job != nil {
		update.Snapshot = snapshotOf(job)
	}
	return update
}
