package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crossfade/internal/models"
	"crossfade/internal/repositories"
	"crossfade/internal/shared"
	"crossfade/internal/ui"

	"github.com/urfave/cli/v3"
)

// jobView is the JSON projection of a conversion job for CLI output.
type jobView struct {
	ID                      string     `json:"id"`
	Status                  string     `json:"status"`
	SourcePlatform          string     `json:"source_platform"`
	SourcePlaylistID        string     `json:"source_playlist_id"`
	SourcePlaylistName      string     `json:"source_playlist_name"`
	DestinationPlatform     string     `json:"destination_platform"`
	DestinationPlaylistID   string     `json:"destination_playlist_id,omitempty"`
	DestinationPlaylistName string     `json:"destination_playlist_name"`
	Mode                    string     `json:"mode"`
	TotalTracks             int        `json:"total_tracks"`
	ProcessedTracks         int        `json:"processed_tracks"`
	AutoMatched             int        `json:"auto_matched"`
	ReviewPending           int        `json:"review_pending"`
	FailedTracks            int        `json:"failed_tracks"`
	ErrorMessage            string     `json:"error_message,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	CompletedAt             *time.Time `json:"completed_at,omitempty"`
}

func toJobView(job *models.ConversionJob) jobView {
	return jobView{
		ID:                      job.ID(),
		Status:                  string(job.Status()),
		SourcePlatform:          string(job.SourcePlatform()),
		SourcePlaylistID:        job.SourcePlaylistID(),
		SourcePlaylistName:      job.SourcePlaylistName(),
		DestinationPlatform:     string(job.DestinationPlatform()),
		DestinationPlaylistID:   job.DestinationPlaylistID(),
		DestinationPlaylistName: job.DestinationPlaylistName(),
		Mode:                    string(job.Mode()),
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

// matchView is the JSON projection of a track match for CLI output.
type matchView struct {
	ID          string        `json:"id"`
	Position    int           `json:"position"`
	Source      models.Track  `json:"source"`
	Destination *models.Track `json:"destination,omitempty"`
	Confidence  float64       `json:"confidence"`
	Status      string        `json:"status"`
}

func toMatchView(m *models.TrackMatch) matchView {
	return matchView{
		ID:          m.ID(),
		Position:    m.Sequence(),
		Source:      m.Source(),
		Destination: m.Destination(),
		Confidence:  m.Confidence(),
		Status:      string(m.Status()),
	}
}

// JobsList lists conversion jobs, newest first.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	criteria := map[string]any{
		"limit": int(cmd.Int("limit")),
	}
	if name := cmd.String("status"); name != "" {
		status, err := parseJobStatus(name)
		if err != nil {
			return err
		}
		criteria["status"] = string(status)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	jobs, err := repositories.NewJobRepository(db).List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]jobView, 0, len(jobs))
		for _, job := range jobs {
			views = append(views, toJobView(job))
		}
		return r.writeJSON(views, true)
	}

	if len(jobs) == 0 {
		r.writePlain("no jobs found\n")
		return nil
	}

	for _, job := range jobs {
		r.writePlain("%s  %s  %s -> %s  %q  %d/%d tracks\n",
			job.ID(), ui.JobStatus(job.Status()),
			job.SourcePlatform(), job.DestinationPlatform(),
			job.SourcePlaylistName(), job.ProcessedTracks(), job.TotalTracks())
	}
	return nil
}

// JobsShow prints a single job and its matches.
func (r *Runner) JobsShow(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.StringArg("id")
	if jobID == "" {
		return fmt.Errorf("%w: job ID", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	job, err := repositories.NewJobRepository(db).Get(jobID)
	if err != nil {
		return err
	}
	matches, err := repositories.NewMatchRepository(db).ListByJob(jobID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]matchView, 0, len(matches))
		for _, m := range matches {
			views = append(views, toMatchView(m))
		}
		return r.writeJSON(struct {
			Job     jobView     `json:"job"`
			Matches []matchView `json:"matches"`
		}{toJobView(job), views}, true)
	}

	r.writePlainHeader(fmt.Sprintf("Job %s", job.ID()))
	r.writePlain("Status: %s\n", ui.JobStatus(job.Status()))
	r.writePlain("Source: %q on %s\n", job.SourcePlaylistName(), job.SourcePlatform())
	r.writePlain("Destination: %q on %s\n", job.DestinationPlaylistName(), job.DestinationPlatform())
	r.writePlain("Mode: %s\n", job.Mode())
	if job.ErrorMessage() != "" {
		r.writePlain("Error: %s\n", job.ErrorMessage())
	}
	r.writePlain("\n")

	for _, m := range matches {
		r.writePlain("%3d. %s", m.Sequence(), trackLabel(m.Source()))
		if dest := m.Destination(); dest != nil {
			r.writePlain(" => %s", trackLabel(*dest))
		}
		r.writePlain("  %s %s\n", ui.Confidence(m.Confidence()), ui.MatchStatus(m.Status()))
	}
	return nil
}

// trackLabel renders a track as "Artist - Name" for terminal output.
func trackLabel(t models.Track) string {
	if artist := t.FirstArtist(); artist != "" {
		return fmt.Sprintf("%s - %s", artist, t.Name)
	}
	return t.Name
}

// parseJobStatus maps a user-supplied status name to its canonical value.
func parseJobStatus(name string) (models.JobStatus, error) {
	status := models.JobStatus(strings.ToUpper(strings.TrimSpace(name)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", shared.ErrInvalidFlag, name)
	}
	return status, nil
}
