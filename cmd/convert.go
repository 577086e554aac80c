package main

import (
	"context"
	"fmt"
	"strings"

	"crossfade/internal/models"
	"crossfade/internal/shared"
	"crossfade/internal/tasks"
	"crossfade/internal/ui"

	"github.com/urfave/cli/v3"
)

// ConvertRun creates a conversion job and processes it to completion,
// streaming progress to the terminal.
func (r *Runner) ConvertRun(ctx context.Context, cmd *cli.Command) error {
	source, err := parsePlatform(cmd.String("source"))
	if err != nil {
		return err
	}
	mode, err := parseMode(cmd.String("mode"))
	if err != nil {
		return err
	}
	useJSON := cmd.Bool("json")

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	progressCh := make(chan tasks.ProgressUpdate, 64)
	orchestrator, jobs, _ := r.orchestrator(db, tasks.NewChannelSink(progressCh))

	job, err := orchestrator.CreateJob(ctx, tasks.CreateJobRequest{
		SourcePlatform:          source,
		SourcePlaylistID:        cmd.String("playlist"),
		Mode:                    mode,
		DestinationPlaylistID:   cmd.String("dest-id"),
		DestinationPlaylistName: cmd.String("name"),
	})
	if err != nil {
		return err
	}

	r.logger.Info("job created", "job_id", job.ID(), "tracks", job.TotalTracks())
	if !useJSON {
		r.writePlain("%s\n", ui.Title(fmt.Sprintf("Converting %q (%d tracks)", job.SourcePlaylistName(), job.TotalTracks())))
		r.writePlain("%s -> %s\n\n", job.SourcePlatform(), job.DestinationPlatform())
	}

	// Progress goroutine drains the channel until Process returns and we close it.
	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		for update := range progressCh {
			if useJSON {
				continue
			}
			switch update.Phase {
			case tasks.FetchSource, tasks.CreateDestination, tasks.ApplyMatches:
				r.writePlain("%s\n", update.Message)
			case tasks.MatchTracks:
				r.writePlain("  [%d/%d] %s\n", update.Step, update.Total, update.Message)
			}
		}
	}()

	processErr := orchestrator.Process(ctx, job.ID())
	close(progressCh)
	<-printerDone

	job, err = jobs.Get(job.ID())
	if err != nil {
		return err
	}

	if useJSON {
		if err := r.writeJSON(toJobView(job), true); err != nil {
			return err
		}
		return processErr
	}

	r.writePlain("\n")
	r.writePlainHeader("Conversion Summary")
	r.writePlain("Job: %s\n", job.ID())
	r.writePlain("Status: %s\n", ui.JobStatus(job.Status()))
	r.writePlain("Processed: %d/%d tracks\n", job.ProcessedTracks(), job.TotalTracks())
	r.writePlain("Auto matched: %d\n", job.AutoMatched())
	r.writePlain("Needs review: %d\n", job.ReviewPending())
	r.writePlain("Failed: %d\n", job.FailedTracks())

	if job.Status() == models.JobReviewPending {
		r.writePlainln("%s", ui.Help(fmt.Sprintf("run `crossfade review pending --job %s` to resolve the remaining tracks", job.ID())))
	}

	return processErr
}

// parsePlatform maps a user-supplied platform name to its canonical value.
func parsePlatform(name string) (models.Platform, error) {
	platform := models.Platform(strings.ToUpper(strings.TrimSpace(name)))
	if !platform.Valid() {
		return "", fmt.Errorf("%w: unknown platform %q (want spotify or netease)", shared.ErrInvalidFlag, name)
	}
	return platform, nil
}

// parseMode maps a user-supplied mode name to its canonical value.
func parseMode(name string) (models.Mode, error) {
	mode := models.Mode(strings.ToUpper(strings.TrimSpace(name)))
	if !mode.Valid() {
		return "", fmt.Errorf("%w: unknown mode %q (want create or update)", shared.ErrInvalidFlag, name)
	}
	return mode, nil
}
