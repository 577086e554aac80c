package models

import (
	"fmt"
	"time"
)

// TrackMatch is the outcome of matching one source track for a conversion job.
//
// Carries a snapshot of the source track and, when a candidate was found, a
// snapshot of the matched destination track. A match is created once during
// job processing; its status may later transition exactly once via the review
// workflow (PENDING_REVIEW/FAILED → USER_APPROVED/USER_SKIPPED).
type TrackMatch struct {
	id          string
	sequence    int
	jobID       string
	source      Track
	destination *Track
	confidence  float64
	status      MatchStatus
	reviewedAt  *time.Time
	appliedAt   *time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// NewTrackMatch creates a match skeleton for the given source track.
// Status and destination are filled in by the matching engine.
func NewTrackMatch(sequence int, jobID string, source Track) *TrackMatch {
	now := time.Now()
	return &TrackMatch{
		sequence:  sequence,
		jobID:     jobID,
		source:    source,
		status:    MatchFailed,
		createdAt: now,
		updatedAt: now,
	}
}

func (m *TrackMatch) ID() string           { return m.id }
func (m *TrackMatch) Sequence() int        { return m.sequence }
func (m *TrackMatch) JobID() string        { return m.jobID }
func (m *TrackMatch) CreatedAt() time.Time { return m.createdAt }
func (m *TrackMatch) UpdatedAt() time.Time { return m.updatedAt }

func (m *TrackMatch) SetID(id string)          { m.id = id }
func (m *TrackMatch) SetJobID(id string)       { m.jobID = id }
func (m *TrackMatch) SetCreatedAt(t time.Time) { m.createdAt = t }
func (m *TrackMatch) SetUpdatedAt(t time.Time) { m.updatedAt = t }

func (m *TrackMatch) Source() Track { return m.source }

// Destination returns the matched destination track snapshot, nil if unmatched.
func (m *TrackMatch) Destination() *Track     { return m.destination }
func (m *TrackMatch) SetDestination(t *Track) { m.destination = t }

func (m *TrackMatch) Confidence() float64     { return m.confidence }
func (m *TrackMatch) SetConfidence(c float64) { m.confidence = c }

func (m *TrackMatch) Status() MatchStatus     { return m.status }
func (m *TrackMatch) SetStatus(s MatchStatus) { m.status = s }

func (m *TrackMatch) ReviewedAt() *time.Time     { return m.reviewedAt }
func (m *TrackMatch) SetReviewedAt(t *time.Time) { m.reviewedAt = t }
func (m *TrackMatch) AppliedAt() *time.Time      { return m.appliedAt }
func (m *TrackMatch) SetAppliedAt(t *time.Time)  { m.appliedAt = t }

// Validate checks the model's data.
func (m *TrackMatch) Validate() error {
	if m.jobID == "" {
		return fmt.Errorf("job id is required")
	}
	if m.source.ID == "" {
		return fmt.Errorf("source track id is required")
	}
	if !m.status.Valid() {
		return fmt.Errorf("invalid status: %q", m.status)
	}
	if m.confidence < 0 || m.confidence > 1 {
		return fmt.Errorf("confidence %f out of range [0,1]", m.confidence)
	}
	if (m.status == MatchAutoMatched || m.status == MatchUserApproved) && (m.destination == nil || m.destination.ID == "") {
		return fmt.Errorf("%s match requires a destination track", m.status)
	}
	return nil
}
