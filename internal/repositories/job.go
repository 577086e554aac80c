package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"crossfade/internal/models"
	"crossfade/internal/shared"
)

// JobRepository implements models.Repository[*models.ConversionJob].
//
// Jobs are never deleted; terminal jobs stay queryable as conversion history.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job into the database with generated ID and sequence
func (r *JobRepository) Create(job *models.ConversionJob) error {
	sequence, err := NextSequence(r.db, "conversion_jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	job.SetID(id)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO conversion_jobs (
			id, sequence, source_platform, source_playlist_id, source_playlist_name,
			destination_platform, destination_playlist_id, destination_playlist_name,
			mode, status, total_tracks, processed_tracks, auto_matched, review_pending,
			failed_tracks, error_message, created_at, updated_at, completed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		job.SourcePlatform(),
		job.SourcePlaylistID(),
		job.SourcePlaylistName(),
		job.DestinationPlatform(),
		job.DestinationPlaylistID(),
		job.DestinationPlaylistName(),
		job.Mode(),
		job.Status(),
		job.TotalTracks(),
		job.ProcessedTracks(),
		job.AutoMatched(),
		job.ReviewPending(),
		job.FailedTracks(),
		job.ErrorMessage(),
		job.CreatedAt(),
		job.UpdatedAt(),
		job.CompletedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// Get retrieves a job by ID
func (r *JobRepository) Get(id string) (*models.ConversionJob, error) {
	query := selectJobColumns + ` WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// Update persists the job's mutable state (status, counters, destination, timestamps)
func (r *JobRepository) Update(job *models.ConversionJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.SetUpdatedAt(now)

	query := `
		UPDATE conversion_jobs
		SET status = ?, destination_playlist_id = ?, destination_playlist_name = ?,
		    total_tracks = ?, processed_tracks = ?, auto_matched = ?, review_pending = ?,
		    failed_tracks = ?, error_message = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		job.Status(),
		job.DestinationPlaylistID(),
		job.DestinationPlaylistName(),
		job.TotalTracks(),
		job.ProcessedTracks(),
		job.AutoMatched(),
		job.ReviewPending(),
		job.FailedTracks(),
		job.ErrorMessage(),
		now,
		job.CompletedAt(),
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, job.ID())
	}

	return nil
}

// List retrieves jobs matching the given criteria, newest first
func (r *JobRepository) List(criteria map[string]any) ([]*models.ConversionJob, error) {
	query := selectJobColumns + ` WHERE 1=1`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if platform, ok := criteria["source_platform"].(string); ok && platform != "" {
		query += " AND source_platform = ?"
		args = append(args, platform)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ConversionJob
	for rows.Next() {
		job, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

const selectJobColumns = `
	SELECT id, sequence, source_platform, source_playlist_id, source_playlist_name,
	       destination_platform, destination_playlist_id, destination_playlist_name,
	       mode, status, total_tracks, processed_tracks, auto_matched, review_pending,
	       failed_tracks, error_message, created_at, updated_at, completed_at
	FROM conversion_jobs
`

// scanOne scans a single row into a [models.ConversionJob]
func (r *JobRepository) scanOne(row *sql.Row) (*models.ConversionJob, error) {
	job, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return nil, shared.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return job, nil
}

// scanRow scans a row from a result set into a [models.ConversionJob]
func (r *JobRepository) scanRow(rows *sql.Rows) (*models.ConversionJob, error) {
	job, err := scanJob(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return job, nil
}

func scanJob(scan func(...any) error) (*models.ConversionJob, error) {
	var (
		id              string
		sequence        int
		sourcePlatform  string
		sourceID        string
		sourceName      string
		destPlatform    string
		destID          sql.NullString
		destName        string
		mode            string
		status          string
		totalTracks     int
		processedTracks int
		autoMatched     int
		reviewPending   int
		failedTracks    int
		errorMessage    sql.NullString
		createdAt       time.Time
		updatedAt       time.Time
		completedAt     sql.NullTime
	)

	err := scan(&id, &sequence, &sourcePlatform, &sourceID, &sourceName,
		&destPlatform, &destID, &destName, &mode, &status, &totalTracks,
		&processedTracks, &autoMatched, &reviewPending, &failedTracks,
		&errorMessage, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	job := models.NewConversionJob(sequence, models.Platform(sourcePlatform), sourceID, sourceName, models.Mode(mode))
	job.SetID(id)
	job.SetDestinationPlaylistID(destID.String)
	job.SetDestinationPlaylistName(destName)
	job.SetStatus(models.JobStatus(status))
	job.SetTotalTracks(totalTracks)
	job.SetProcessedTracks(processedTracks)
	job.SetAutoMatched(autoMatched)
	job.SetReviewPending(reviewPending)
	job.SetFailedTracks(failedTracks)
	job.SetErrorMessage(errorMessage.String)
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)
	if completedAt.Valid {
		t := completedAt.Time
		job.SetCompletedAt(&t)
	}

	return job, nil
}
