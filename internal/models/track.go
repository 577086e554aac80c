package models

// Platform identifies a music streaming platform.
type Platform string

const (
	PlatformSpotify Platform = "SPOTIFY"
	PlatformNetease Platform = "NETEASE"
)

// Valid reports whether p names a supported platform.
func (p Platform) Valid() bool {
	return p == PlatformSpotify || p == PlatformNetease
}

// Opposite returns the other platform of the pair.
func (p Platform) Opposite() Platform {
	if p == PlatformSpotify {
		return PlatformNetease
	}
	return PlatformSpotify
}

// Mode selects whether the destination playlist is newly created or appended to.
type Mode string

const (
	ModeCreate Mode = "CREATE"
	ModeUpdate Mode = "UPDATE"
)

func (m Mode) Valid() bool {
	return m == ModeCreate || m == ModeUpdate
}

// JobStatus is the conversion job state machine.
//
// QUEUED → PROCESSING → {REVIEW_PENDING | COMPLETED}, with FAILED terminal
// from PROCESSING. The only transition out of REVIEW_PENDING is to COMPLETED
// via the review workflow.
type JobStatus string

const (
	JobQueued        JobStatus = "QUEUED"
	JobProcessing    JobStatus = "PROCESSING"
	JobReviewPending JobStatus = "REVIEW_PENDING"
	JobCompleted     JobStatus = "COMPLETED"
	JobFailed        JobStatus = "FAILED"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobProcessing, JobReviewPending, JobCompleted, JobFailed:
		return true
	}
	return false
}

// Terminal reports whether the job can change state again outside the review workflow.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// MatchStatus is the track match lifecycle.
type MatchStatus string

const (
	MatchAutoMatched   MatchStatus = "AUTO_MATCHED"
	MatchPendingReview MatchStatus = "PENDING_REVIEW"
	MatchFailed        MatchStatus = "FAILED"
	MatchUserApproved  MatchStatus = "USER_APPROVED"
	MatchUserSkipped   MatchStatus = "USER_SKIPPED"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchAutoMatched, MatchPendingReview, MatchFailed, MatchUserApproved, MatchUserSkipped:
		return true
	}
	return false
}

// Reviewable reports whether a match in this status can still be resolved by a human.
func (s MatchStatus) Reviewable() bool {
	return s == MatchPendingReview || s == MatchFailed
}

// Track represents a music track from any platform.
//
// Populated by the platform clients; the core never owns a Track beyond the
// current operation. Optional fields use their zero value for "unknown".
type Track struct {
	ID         string   `json:"id"`                    // Platform-specific track identifier
	Name       string   `json:"name"`                  // Track title
	Artists    []string `json:"artists,omitempty"`     // Ordered artist names; may be empty
	Album      string   `json:"album,omitempty"`       // Album name, "" if unknown
	DurationMS int      `json:"duration_ms,omitempty"` // Duration in milliseconds, 0 if unknown
	ISRC       string   `json:"isrc,omitempty"`        // External catalog id, "" if unavailable
	ImageURL   string   `json:"image_url,omitempty"`   // Cover art URL, "" if unavailable
}

// FirstArtist returns the primary artist name, or "" when no artists are known.
func (t Track) FirstArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// DurationSeconds returns the track length in whole seconds, 0 if unknown.
func (t Track) DurationSeconds() int {
	return t.DurationMS / 1000
}

// PlaylistInfo represents basic playlist metadata from any platform.
type PlaylistInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TrackCount int    `json:"track_count"`
}
