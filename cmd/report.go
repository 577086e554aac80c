package main

import (
	"context"
	"fmt"

	"crossfade/internal/formatter"
	"crossfade/internal/repositories"

	"github.com/urfave/cli/v3"
)

// ReportWrite renders a job's match report to a file or stdout.
func (r *Runner) ReportWrite(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.String("job")

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
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

	report := formatter.Report{Job: job, Matches: matches}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteReport(report, format, path); err != nil {
			return err
		}
		r.logger.Info("report written", "path", path, "format", format)
		return r.writePlain("report written to %s\n", path)
	}

	data, err := formatter.Render(report, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
