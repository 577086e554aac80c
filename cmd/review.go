package main

import (
	"context"
	"fmt"

	"crossfade/internal/repositories"
	"crossfade/internal/review"
	"crossfade/internal/shared"
	"crossfade/internal/ui"

	"github.com/urfave/cli/v3"
)

// ReviewPending lists a job's unresolved matches in playlist order.
func (r *Runner) ReviewPending(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.String("job")

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	reviewer := r.reviewer(repositories.NewJobRepository(db), repositories.NewMatchRepository(db))
	matches, err := reviewer.Pending(jobID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]matchView, 0, len(matches))
		for _, m := range matches {
			views = append(views, toMatchView(m))
		}
		return r.writeJSON(views, true)
	}

	if len(matches) == 0 {
		r.writePlain("nothing to review\n")
		return nil
	}

	r.writePlain("%s\n\n", ui.Title(fmt.Sprintf("%d tracks awaiting review", len(matches))))
	for _, m := range matches {
		r.writePlain("%s\n", m.ID())
		r.writePlain("  %3d. %s", m.Sequence(), trackLabel(m.Source()))
		if dest := m.Destination(); dest != nil {
			r.writePlain(" => %s", trackLabel(*dest))
		} else {
			r.writePlain(" => no candidate")
		}
		r.writePlain("  %s %s\n", ui.Confidence(m.Confidence()), ui.MatchStatus(m.Status()))
	}
	r.writePlain("\n%s\n", ui.Help("approve with `review approve --match <id>`, or skip with `review skip --match <id>`"))
	return nil
}

// ReviewApprove approves a match, optionally overriding the destination track.
func (r *Runner) ReviewApprove(ctx context.Context, cmd *cli.Command) error {
	matchID := cmd.String("match")

	var override *review.Override
	if trackID := cmd.String("track"); trackID != "" {
		override = &review.Override{
			DestinationID: trackID,
			Name:          cmd.String("name"),
			DurationMS:    int(cmd.Int("duration-ms")),
		}
		if artist := cmd.String("artist"); artist != "" {
			override.Artists = []string{artist}
		}
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	reviewer := r.reviewer(repositories.NewJobRepository(db), repositories.NewMatchRepository(db))
	match, err := reviewer.Approve(ctx, matchID, override)
	if err != nil {
		return err
	}

	dest := match.Destination()
	r.writePlain("approved %s => %s %s\n", trackLabel(match.Source()), trackLabel(*dest), ui.MatchStatus(match.Status()))
	return nil
}

// ReviewSkip skips a match, leaving its track out of the destination playlist.
func (r *Runner) ReviewSkip(ctx context.Context, cmd *cli.Command) error {
	matchID := cmd.String("match")

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	reviewer := r.reviewer(repositories.NewJobRepository(db), repositories.NewMatchRepository(db))
	match, err := reviewer.Skip(matchID)
	if err != nil {
		return err
	}

	r.writePlain("skipped %s %s\n", trackLabel(match.Source()), ui.MatchStatus(match.Status()))
	return nil
}

// ReviewSearch searches the destination platform for replacement candidates.
func (r *Runner) ReviewSearch(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.String("job")
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	reviewer := r.reviewer(repositories.NewJobRepository(db), repositories.NewMatchRepository(db))
	tracks, err := reviewer.ManualSearch(ctx, jobID, query)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}

	if len(tracks) == 0 {
		r.writePlain("no results for %q\n", query)
		return nil
	}

	for i, track := range tracks {
		r.writePlain("%2d. %s", i+1, trackLabel(track))
		if track.DurationMS > 0 {
			r.writePlain(" [%s]", shared.FormatDuration(track.DurationMS))
		}
		r.writePlain("  id=%s\n", track.ID)
	}
	r.writePlain("\n%s\n", ui.Help("approve a candidate with `review approve --match <id> --track <track-id>`"))
	return nil
}
