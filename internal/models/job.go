package models

import (
	"fmt"
	"time"
)

// ConversionJob tracks one playlist conversion request from creation through
// processing and review.
//
// Counters hold the invariant processed <= total and
// autoMatched + reviewPending + failedTracks == processed. The job is mutated
// only by the orchestrator during processing and by the review workflow after.
type ConversionJob struct {
	id                      string
	sequence                int
	sourcePlatform          Platform
	sourcePlaylistID        string
	sourcePlaylistName      string
	destinationPlatform     Platform
	destinationPlaylistID   string // empty until created in CREATE mode
	destinationPlaylistName string
	mode                    Mode
	status                  JobStatus
	totalTracks             int
	processedTracks         int
	autoMatched             int
	reviewPending           int
	failedTracks            int
	errorMessage            string
	createdAt               time.Time
	updatedAt               time.Time
	completedAt             *time.Time
}

// NewConversionJob creates a QUEUED job for the given source playlist.
// The destination platform is always the opposite of the source.
func NewConversionJob(sequence int, source Platform, playlistID, playlistName string, mode Mode) *ConversionJob {
	now := time.Now()
	return &ConversionJob{
		sequence:            sequence,
		sourcePlatform:      source,
		sourcePlaylistID:    playlistID,
		sourcePlaylistName:  playlistName,
		destinationPlatform: source.Opposite(),
		mode:                mode,
		status:              JobQueued,
		createdAt:           now,
		updatedAt:           now,
	}
}

func (j *ConversionJob) ID() string           { return j.id }
func (j *ConversionJob) Sequence() int        { return j.sequence }
func (j *ConversionJob) CreatedAt() time.Time { return j.createdAt }
func (j *ConversionJob) UpdatedAt() time.Time { return j.updatedAt }

func (j *ConversionJob) SetID(id string)          { j.id = id }
func (j *ConversionJob) SetCreatedAt(t time.Time) { j.createdAt = t }
func (j *ConversionJob) SetUpdatedAt(t time.Time) { j.updatedAt = t }

func (j *ConversionJob) SourcePlatform() Platform      { return j.sourcePlatform }
func (j *ConversionJob) SourcePlaylistID() string      { return j.sourcePlaylistID }
func (j *ConversionJob) SourcePlaylistName() string    { return j.sourcePlaylistName }
func (j *ConversionJob) DestinationPlatform() Platform { return j.destinationPlatform }
func (j *ConversionJob) Mode() Mode                    { return j.mode }

func (j *ConversionJob) DestinationPlaylistID() string       { return j.destinationPlaylistID }
func (j *ConversionJob) SetDestinationPlaylistID(id string)  { j.destinationPlaylistID = id }
func (j *ConversionJob) DestinationPlaylistName() string     { return j.destinationPlaylistName }
func (j *ConversionJob) SetDestinationPlaylistName(n string) { j.destinationPlaylistName = n }

func (j *ConversionJob) Status() JobStatus          { return j.status }
func (j *ConversionJob) SetStatus(s JobStatus)      { j.status = s }
func (j *ConversionJob) ErrorMessage() string       { return j.errorMessage }
func (j *ConversionJob) SetErrorMessage(msg string) { j.errorMessage = msg }

func (j *ConversionJob) TotalTracks() int         { return j.totalTracks }
func (j *ConversionJob) SetTotalTracks(n int)     { j.totalTracks = n }
func (j *ConversionJob) ProcessedTracks() int     { return j.processedTracks }
func (j *ConversionJob) SetProcessedTracks(n int) { j.processedTracks = n }
func (j *ConversionJob) AutoMatched() int         { return j.autoMatched }
func (j *ConversionJob) SetAutoMatched(n int)     { j.autoMatched = n }
func (j *ConversionJob) ReviewPending() int       { return j.reviewPending }
func (j *ConversionJob) SetReviewPending(n int)   { j.reviewPending = n }
func (j *ConversionJob) FailedTracks() int        { return j.failedTracks }
func (j *ConversionJob) SetFailedTracks(n int)    { j.failedTracks = n }

func (j *ConversionJob) CompletedAt() *time.Time     { return j.completedAt }
func (j *ConversionJob) SetCompletedAt(t *time.Time) { j.completedAt = t }

// RecordMatch increments the processed counter and the bucket for the match outcome.
func (j *ConversionJob) RecordMatch(status MatchStatus) {
	j.processedTracks++
	switch status {
	case MatchAutoMatched:
		j.autoMatched++
	case MatchPendingReview:
		j.reviewPending++
	default:
		j.failedTracks++
	}
}

// NeedsReview reports whether any processed track was left for a human to resolve.
func (j *ConversionJob) NeedsReview() bool {
	return j.reviewPending > 0 || j.failedTracks > 0
}

// Validate checks the model's data including the counter invariants.
func (j *ConversionJob) Validate() error {
	if !j.sourcePlatform.Valid() {
		return fmt.Errorf("invalid source platform: %q", j.sourcePlatform)
	}
	if !j.destinationPlatform.Valid() {
		return fmt.Errorf("invalid destination platform: %q", j.destinationPlatform)
	}
	if j.sourcePlaylistID == "" {
		return fmt.Errorf("source playlist id is required")
	}
	if !j.mode.Valid() {
		return fmt.Errorf("invalid mode: %q", j.mode)
	}
	if !j.status.Valid() {
		return fmt.Errorf("invalid status: %q", j.status)
	}
	if j.mode == ModeUpdate && j.destinationPlaylistID == "" {
		return fmt.Errorf("destination playlist id is required for %s mode", ModeUpdate)
	}
	if j.mode == ModeCreate && j.destinationPlaylistName == "" {
		return fmt.Errorf("destination playlist name is required for %s mode", ModeCreate)
	}
	if j.processedTracks > j.totalTracks {
		return fmt.Errorf("processed tracks (%d) exceeds total (%d)", j.processedTracks, j.totalTracks)
	}
	if j.autoMatched+j.reviewPending+j.failedTracks != j.processedTracks {
		return fmt.Errorf("match counters (%d+%d+%d) do not sum to processed (%d)",
			j.autoMatched, j.reviewPending, j.failedTracks, j.processedTracks)
	}
	return nil
}
