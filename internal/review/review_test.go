package review

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"crossfade/internal/models"
	"crossfade/internal/repositories"
	"crossfade/internal/services"
	"crossfade/internal/shared"
	mocks "crossfade/internal/testing"
)

type testEnv struct {
	db       *sql.DB
	jobs     *repositories.JobRepository
	matches  *repositories.MatchRepository
	netease  *mocks.MockService
	resolver *mocks.MockResolver
	reviewer *Reviewer
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	jobs := repositories.NewJobRepository(db)
	matches := repositories.NewMatchRepository(db)
	netease := &mocks.MockService{PlatformName: "NetEase Cloud Music", PlatformID: models.PlatformNetease}
	resolver := &mocks.MockResolver{}

	reviewer := NewReviewer(jobs, matches,
		map[models.Platform]services.Service{models.PlatformNetease: netease},
		resolver, nil)

	return &testEnv{
		db:       db,
		jobs:     jobs,
		matches:  matches,
		netease:  netease,
		resolver: resolver,
		reviewer: reviewer,
	}
}

// seedReviewJob persists a REVIEW_PENDING job with one pending and one failed
// match, mirroring the state processing leaves behind.
func seedReviewJob(t *testing.T, env *testEnv) (*models.ConversionJob, *models.TrackMatch, *models.TrackMatch) {
	t.Helper()

	job := models.NewConversionJob(0, models.PlatformSpotify, "pl-src", "Mixed Bag", models.ModeCreate)
	job.SetDestinationPlaylistName("Mixed Bag")
	if err := env.jobs.Create(job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	job.SetDestinationPlaylistID("pl-dst")
	job.SetTotalTracks(2)
	job.RecordMatch(models.MatchPendingReview)
	job.RecordMatch(models.MatchFailed)
	job.SetStatus(models.JobReviewPending)
	if err := env.jobs.Update(job); err != nil {
		t.Fatalf("failed to update job: %v", err)
	}

	pending := models.NewTrackMatch(1, job.ID(), models.Track{ID: "s1", Name: "Close Enough", Artists: []string{"Band A"}})
	pending.SetDestination(&models.Track{ID: "d1", Name: "Close Enough (Remastered)", Artists: []string{"Band A"}})
	pending.SetConfidence(0.7)
	pending.SetStatus(models.MatchPendingReview)
	if err := env.matches.Create(pending); err != nil {
		t.Fatalf("failed to create match: %v", err)
	}

	failed := models.NewTrackMatch(2, job.ID(), models.Track{ID: "s2", Name: "Obscure B-Side", Artists: []string{"Unknown"}})
	if err := env.matches.Create(failed); err != nil {
		t.Fatalf("failed to create match: %v", err)
	}

	return job, pending, failed
}

func TestPending(t *testing.T) {
	env := setupEnv(t)
	job, _, _ := seedReviewJob(t, env)

	pending, err := env.reviewer.Pending(job.ID())
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending matches = %d, want 2", len(pending))
	}

	if _, err := env.reviewer.Pending("missing"); !errors.Is(err, shared.ErrJobNotFound) {
		t.Errorf("Pending(missing) error = %v, want %v", err, shared.ErrJobNotFound)
	}
}

func TestApprove(t *testing.T) {
	t.Run("ExistingDestination", func(t *testing.T) {
		env := setupEnv(t)
		_, pending, _ := seedReviewJob(t, env)

		approved, err := env.reviewer.Approve(context.Background(), pending.ID(), nil)
		if err != nil {
			t.Fatalf("Approve() error = %v", err)
		}

		if approved.Status() != models.MatchUserApproved {
			t.Errorf("status = %s, want %s", approved.Status(), models.MatchUserApproved)
		}
		if approved.ReviewedAt() == nil || approved.AppliedAt() == nil {
			t.Error("reviewed and applied timestamps should be stamped")
		}

		if len(env.netease.AddCalls) != 1 {
			t.Fatalf("add calls = %d, want 1", len(env.netease.AddCalls))
		}
		call := env.netease.AddCalls[0]
		if call.PlaylistID != "pl-dst" || len(call.TrackIDs) != 1 || call.TrackIDs[0] != "d1" {
			t.Errorf("add call = %+v, want d1 into pl-dst", call)
		}
	})

	t.Run("OverrideForcesConfidence", func(t *testing.T) {
		env := setupEnv(t)
		_, _, failed := seedReviewJob(t, env)

		approved, err := env.reviewer.Approve(context.Background(), failed.ID(), &Override{
			DestinationID: "d-manual",
			Name:          "Obscure B-Side",
			Artists:       []string{"Unknown"},
		})
		if err != nil {
			t.Fatalf("Approve() error = %v", err)
		}

		if approved.Confidence() != 1.0 {
			t.Errorf("confidence = %f, want 1.0", approved.Confidence())
		}
		if approved.Destination() == nil || approved.Destination().ID != "d-manual" {
			t.Errorf("destination = %+v, want d-manual", approved.Destination())
		}

		persisted, err := env.matches.Get(failed.ID())
		if err != nil {
			t.Fatalf("failed to get match: %v", err)
		}
		if persisted.Status() != models.MatchUserApproved {
			t.Errorf("persisted status = %s, want %s", persisted.Status(), models.MatchUserApproved)
		}
	})

	t.Run("NoDestinationWithoutOverride", func(t *testing.T) {
		env := setupEnv(t)
		_, _, failed := seedReviewJob(t, env)

		if _, err := env.reviewer.Approve(context.Background(), failed.ID(), nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("Approve() error = %v, want %v", err, shared.ErrInvalidInput)
		}
	})

	t.Run("OverrideRequiresID", func(t *testing.T) {
		env := setupEnv(t)
		_, pending, _ := seedReviewJob(t, env)

		if _, err := env.reviewer.Approve(context.Background(), pending.ID(), &Override{Name: "No ID"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("Approve() error = %v, want %v", err, shared.ErrInvalidInput)
		}
	})

	t.Run("NotReviewable", func(t *testing.T) {
		env := setupEnv(t)
		job, _, _ := seedReviewJob(t, env)

		auto := models.NewTrackMatch(3, job.ID(), models.Track{ID: "s3", Name: "Sure Thing"})
		auto.SetDestination(&models.Track{ID: "d3", Name: "Sure Thing"})
		auto.SetConfidence(0.95)
		auto.SetStatus(models.MatchAutoMatched)
		if err := env.matches.Create(auto); err != nil {
			t.Fatalf("failed to create match: %v", err)
		}

		if _, err := env.reviewer.Approve(context.Background(), auto.ID(), nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("Approve() error = %v, want %v", err, shared.ErrInvalidInput)
		}
	})

	t.Run("SessionExpiredInvalidatesCredential", func(t *testing.T) {
		env := setupEnv(t)
		_, pending, _ := seedReviewJob(t, env)
		env.netease.AddErr = shared.ErrSessionExpired

		_, err := env.reviewer.Approve(context.Background(), pending.ID(), nil)
		if !errors.Is(err, shared.ErrSessionExpired) {
			t.Fatalf("Approve() error = %v, want %v", err, shared.ErrSessionExpired)
		}

		if len(env.resolver.Invalidated) != 1 || env.resolver.Invalidated[0] != models.PlatformNetease {
			t.Errorf("invalidated = %v, want the destination platform", env.resolver.Invalidated)
		}

		// The match is untouched and still reviewable
		persisted, err := env.matches.Get(pending.ID())
		if err != nil {
			t.Fatalf("failed to get match: %v", err)
		}
		if persisted.Status() != models.MatchPendingReview {
			t.Errorf("status = %s, want %s", persisted.Status(), models.MatchPendingReview)
		}
	})
}

func TestSkip(t *testing.T) {
	env := setupEnv(t)
	_, pending, _ := seedReviewJob(t, env)

	skipped, err := env.reviewer.Skip(pending.ID())
	if err != nil {
		t.Fatalf("Skip() error = %v", err)
	}

	if skipped.Status() != models.MatchUserSkipped {
		t.Errorf("status = %s, want %s", skipped.Status(), models.MatchUserSkipped)
	}
	if skipped.ReviewedAt() == nil {
		t.Error("reviewed timestamp should be stamped")
	}
	if skipped.AppliedAt() != nil {
		t.Error("skip must not stamp an applied timestamp")
	}
	if len(env.netease.AddCalls) != 0 {
		t.Errorf("add calls = %d, want 0 for a skip", len(env.netease.AddCalls))
	}
}

func TestReviewCompletesJob(t *testing.T) {
	env := setupEnv(t)
	job, pending, failed := seedReviewJob(t, env)

	if _, err := env.reviewer.Approve(context.Background(), pending.ID(), nil); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	// One unresolved match left, job stays in review
	mid, err := env.jobs.Get(job.ID())
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if mid.Status() != models.JobReviewPending {
		t.Errorf("status after first decision = %s, want %s", mid.Status(), models.JobReviewPending)
	}

	if _, err := env.reviewer.Skip(failed.ID()); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}

	final, err := env.jobs.Get(job.ID())
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if final.Status() != models.JobCompleted {
		t.Errorf("status after last decision = %s, want %s", final.Status(), models.JobCompleted)
	}
	if final.CompletedAt() == nil {
		t.Error("completed_at should be stamped")
	}
}

func TestManualSearch(t *testing.T) {
	env := setupEnv(t)
	job, _, _ := seedReviewJob(t, env)

	want := []models.Track{
		{ID: "c1", Name: "Candidate One"},
		{ID: "c2", Name: "Candidate Two"},
	}
	env.netease.SearchResults = map[string][]models.Track{"obscure b-side": want}

	results, err := env.reviewer.ManualSearch(context.Background(), job.ID(), "obscure b-side")
	if err != nil {
		t.Fatalf("ManualSearch() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}

	if _, err := env.reviewer.ManualSearch(context.Background(), job.ID(), ""); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("ManualSearch(empty) error = %v, want %v", err, shared.ErrInvalidInput)
	}
}
