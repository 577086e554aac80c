package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"crossfade/internal/models"
	"crossfade/internal/shared"
)

// MatchRepository implements models.Repository[*models.TrackMatch], plus the
// per-job queries the review workflow and report formatter need.
type MatchRepository struct {
	db *sql.DB
}

// NewMatchRepository creates a new MatchRepository with the given database connection
func NewMatchRepository(db *sql.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Create inserts a new match into the database with a generated ID.
// The sequence is the source track's playlist position, set by the caller.
func (r *MatchRepository) Create(match *models.TrackMatch) error {
	id := shared.GenerateID()
	match.SetID(id)

	if err := match.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	source := match.Source()
	dest := match.Destination()

	var destID, destName, destArtist, destImage sql.NullString
	var destDuration sql.NullInt64
	if dest != nil {
		destID = sql.NullString{String: dest.ID, Valid: true}
		destName = sql.NullString{String: dest.Name, Valid: true}
		destArtist = sql.NullString{String: joinArtists(dest.Artists), Valid: true}
		destImage = sql.NullString{String: dest.ImageURL, Valid: true}
		destDuration = sql.NullInt64{Int64: int64(dest.DurationMS), Valid: true}
	}

	query := `
		INSERT INTO track_matches (
			id, sequence, job_id, source_track_id, source_name, source_artist,
			source_album, source_duration, source_isrc, source_image_url,
			destination_track_id, destination_name, destination_artist,
			destination_duration, destination_image_url,
			confidence, status, reviewed_at, applied_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		id,
		match.Sequence(),
		match.JobID(),
		source.ID,
		source.Name,
		joinArtists(source.Artists),
		source.Album,
		source.DurationMS,
		source.ISRC,
		source.ImageURL,
		destID,
		destName,
		destArtist,
		destDuration,
		destImage,
		match.Confidence(),
		match.Status(),
		match.ReviewedAt(),
		match.AppliedAt(),
		match.CreatedAt(),
		match.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}

	return nil
}

// Get retrieves a match by ID
func (r *MatchRepository) Get(id string) (*models.TrackMatch, error) {
	query := selectMatchColumns + ` WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// Update persists the match's mutable state (destination, confidence, status, timestamps)
func (r *MatchRepository) Update(match *models.TrackMatch) error {
	if err := match.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	match.SetUpdatedAt(now)

	dest := match.Destination()

	var destID, destName, destArtist, destImage sql.NullString
	var destDuration sql.NullInt64
	if dest != nil {
		destID = sql.NullString{String: dest.ID, Valid: true}
		destName = sql.NullString{String: dest.Name, Valid: true}
		destArtist = sql.NullString{String: joinArtists(dest.Artists), Valid: true}
		destImage = sql.NullString{String: dest.ImageURL, Valid: true}
		destDuration = sql.NullInt64{Int64: int64(dest.DurationMS), Valid: true}
	}

	query := `
		UPDATE track_matches
		SET destination_track_id = ?, destination_name = ?, destination_artist = ?,
		    destination_duration = ?, destination_image_url = ?,
		    confidence = ?, status = ?, reviewed_at = ?, applied_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		destID,
		destName,
		destArtist,
		destDuration,
		destImage,
		match.Confidence(),
		match.Status(),
		match.ReviewedAt(),
		match.AppliedAt(),
		now,
		match.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrMatchNotFound, match.ID())
	}

	return nil
}

// List retrieves matches for the given criteria in playlist order
func (r *MatchRepository) List(criteria map[string]any) ([]*models.TrackMatch, error) {
	query := selectMatchColumns + ` WHERE 1=1`
	args := []any{}

	if jobID, ok := criteria["job_id"].(string); ok && jobID != "" {
		query += " AND job_id = ?"
		args = append(args, jobID)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence ASC"

	return r.queryMatches(query, args...)
}

// ListByJob retrieves every match of a job in playlist order
func (r *MatchRepository) ListByJob(jobID string) ([]*models.TrackMatch, error) {
	return r.List(map[string]any{"job_id": jobID})
}

// ListByJobAndStatus retrieves a job's matches in any of the given statuses, in playlist order
func (r *MatchRepository) ListByJobAndStatus(jobID string, statuses ...models.MatchStatus) ([]*models.TrackMatch, error) {
	if len(statuses) == 0 {
		return r.ListByJob(jobID)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	query := selectMatchColumns + ` WHERE job_id = ? AND status IN (` + placeholders + `) ORDER BY sequence ASC`

	args := []any{jobID}
	for _, s := range statuses {
		args = append(args, s)
	}

	return r.queryMatches(query, args...)
}

// CountByJobAndStatus counts a job's matches in any of the given statuses
func (r *MatchRepository) CountByJobAndStatus(jobID string, statuses ...models.MatchStatus) (int, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	query := `SELECT COUNT(*) FROM track_matches WHERE job_id = ? AND status IN (` + placeholders + `)`

	args := []any{jobID}
	for _, s := range statuses {
		args = append(args, s)
	}

	var count int
	if err := r.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return count, nil
}

func (r *MatchRepository) queryMatches(query string, args ...any) ([]*models.TrackMatch, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.TrackMatch
	for rows.Next() {
		match, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return matches, nil
}

const selectMatchColumns = `
	SELECT id, sequence, job_id, source_track_id, source_name, source_artist,
	       source_album, source_duration, source_isrc, source_image_url,
	       destination_track_id, destination_name, destination_artist,
	       destination_duration, destination_image_url,
	       confidence, status, reviewed_at, applied_at, created_at, updated_at
	FROM track_matches
`

// scanOne scans a single row into a [models.TrackMatch]
func (r *MatchRepository) scanOne(row *sql.Row) (*models.TrackMatch, error) {
	match, err := scanMatch(row.Scan)
	if err == sql.ErrNoRows {
		return nil, shared.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	return match, nil
}

// scanRow scans a row from a result set into a [models.TrackMatch]
func (r *MatchRepository) scanRow(rows *sql.Rows) (*models.TrackMatch, error) {
	match, err := scanMatch(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	return match, nil
}

func scanMatch(scan func(...any) error) (*models.TrackMatch, error) {
	var (
		id             string
		sequence       int
		jobID          string
		sourceID       string
		sourceName     string
		sourceArtist   string
		sourceAlbum    sql.NullString
		sourceDuration sql.NullInt64
		sourceISRC     sql.NullString
		sourceImage    sql.NullString
		destID         sql.NullString
		destName       sql.NullString
		destArtist     sql.NullString
		destDuration   sql.NullInt64
		destImage      sql.NullString
		confidence     float64
		status         string
		reviewedAt     sql.NullTime
		appliedAt      sql.NullTime
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := scan(&id, &sequence, &jobID, &sourceID, &sourceName, &sourceArtist,
		&sourceAlbum, &sourceDuration, &sourceISRC, &sourceImage,
		&destID, &destName, &destArtist, &destDuration, &destImage,
		&confidence, &status, &reviewedAt, &appliedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	source := models.Track{
		ID:         sourceID,
		Name:       sourceName,
		Artists:    splitArtists(sourceArtist),
		Album:      sourceAlbum.String,
		DurationMS: int(sourceDuration.Int64),
		ISRC:       sourceISRC.String,
		ImageURL:   sourceImage.String,
	}

	match := models.NewTrackMatch(sequence, jobID, source)
	match.SetID(id)
	match.SetConfidence(confidence)
	match.SetStatus(models.MatchStatus(status))
	match.SetCreatedAt(createdAt)
	match.SetUpdatedAt(updatedAt)

	if destID.Valid {
		match.SetDestination(&models.Track{
			ID:         destID.String,
			Name:       destName.String,
			Artists:    splitArtists(destArtist.String),
			DurationMS: int(destDuration.Int64),
			ImageURL:   destImage.String,
		})
	}

	if reviewedAt.Valid {
		t := reviewedAt.Time
		match.SetReviewedAt(&t)
	}
	if appliedAt.Valid {
		t := appliedAt.Time
		match.SetAppliedAt(&t)
	}

	return match, nil
}
