package service

import (
	"errors"
	"testing"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

func draftReview(t *testing.T, svc *Service, score float64) domain.PerformanceReview {
	t.Helper()
	review, err := svc.CreatePerformanceReview(adminCtx(), domain.PerformanceReviewCreateRequest{
		EmployeeID: "emp-ana",
		ReviewerID: "emp-luis",
		Score:      score,
	})
	if err != nil {
		t.Fatalf("create review failed: %v", err)
	}
	return review
}

func TestSelfReviewRejected(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreatePerformanceReview(adminCtx(), domain.PerformanceReviewCreateRequest{
		EmployeeID: "emp-ana",
		ReviewerID: "emp-ana",
		Score:      7,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for self review, got %v", err)
	}
}

func TestReviewScoreBounds(t *testing.T) {
	svc := newTestService()

	for _, score := range []float64{-1, 10.5} {
		_, err := svc.CreatePerformanceReview(adminCtx(), domain.PerformanceReviewCreateRequest{
			EmployeeID: "emp-ana",
			ReviewerID: "emp-luis",
			Score:      score,
		})
		if !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected ErrValidation for score %.1f, got %v", score, err)
		}
	}
}

func TestReviewScorePercentageMirrorsScore(t *testing.T) {
	svc := newTestService()

	review := draftReview(t, svc, 7.5)
	if review.ScorePercentage != 75 {
		t.Fatalf("expected 75%% for score 7.5, got %.2f", review.ScorePercentage)
	}

	updated, err := svc.SetReviewScore(adminCtx(), review.ID, domain.ReviewScoreRequest{Score: 9})
	if err != nil {
		t.Fatalf("set score failed: %v", err)
	}
	if updated.ScorePercentage != 90 {
		t.Fatalf("expected 90%% after rescore, got %.2f", updated.ScorePercentage)
	}
}

func TestSetReviewScoreKeepsEvaluationNotes(t *testing.T) {
	svc := newTestService()

	review := draftReview(t, svc, 0)
	updated, err := svc.SetReviewScore(adminCtx(), review.ID, domain.ReviewScoreRequest{
		Score:           8,
		Comments:        "buen trimestre",
		GoalsNextPeriod: "liderar el cierre mensual",
		Strengths:       "atencion al cliente",
	})
	if err != nil {
		t.Fatalf("set score failed: %v", err)
	}
	if updated.GoalsNextPeriod != "liderar el cierre mensual" {
		t.Fatalf("expected goals to persist, got %q", updated.GoalsNextPeriod)
	}
	if updated.Comments != "buen trimestre" || updated.Strengths != "atencion al cliente" {
		t.Fatalf("expected notes to persist, got %+v", updated)
	}
}

func TestCompleteRequiresNonZeroScore(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	review := draftReview(t, svc, 0)
	if _, err := svc.StartReview(ctx, review.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, err := svc.CompleteReview(ctx, review.ID); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected completion with zero score to fail, got %v", err)
	}

	if _, err := svc.SetReviewScore(ctx, review.ID, domain.ReviewScoreRequest{Score: 8}); err != nil {
		t.Fatalf("set score failed: %v", err)
	}
	done, err := svc.CompleteReview(ctx, review.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.State != domain.ReviewStateDone {
		t.Fatalf("expected done state, got %s", done.State)
	}
}

func TestReviewTransitionGuards(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	review := draftReview(t, svc, 6)

	// Completing a draft skips in_progress and must fail.
	if _, err := svc.CompleteReview(ctx, review.ID); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected draft completion to fail, got %v", err)
	}

	if _, err := svc.StartReview(ctx, review.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := svc.StartReview(ctx, review.ID); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected second start to fail, got %v", err)
	}

	cancelled, err := svc.CancelReview(ctx, review.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.State != domain.ReviewStateCancelled {
		t.Fatalf("expected cancelled state, got %s", cancelled.State)
	}
	if _, err := svc.CancelReview(ctx, review.ID); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected cancel of cancelled review to fail, got %v", err)
	}

	reset, err := svc.ResetReview(ctx, review.ID)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if reset.State != domain.ReviewStateDraft {
		t.Fatalf("expected draft after reset, got %s", reset.State)
	}
}

func TestEmployeePerformanceAveragesDoneReviews(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	complete := func(score float64, date string) {
		t.Helper()
		review, err := svc.CreatePerformanceReview(ctx, domain.PerformanceReviewCreateRequest{
			EmployeeID: "emp-ana",
			ReviewerID: "emp-luis",
			ReviewDate: date,
			Score:      score,
		})
		if err != nil {
			t.Fatalf("create review failed: %v", err)
		}
		if _, err := svc.StartReview(ctx, review.ID); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if _, err := svc.CompleteReview(ctx, review.ID); err != nil {
			t.Fatalf("complete failed: %v", err)
		}
	}

	complete(6, "2026-01-15")
	complete(9, "2026-04-20")

	// A draft review must not count toward the average.
	draftReview(t, svc, 2)

	stats, err := svc.EmployeePerformance(ctx, "emp-ana")
	if err != nil {
		t.Fatalf("performance failed: %v", err)
	}
	if stats.ReviewCount != 3 {
		t.Fatalf("expected 3 reviews total, got %d", stats.ReviewCount)
	}
	if stats.AverageScore != 7.5 {
		t.Fatalf("expected average 7.5 over done reviews, got %.2f", stats.AverageScore)
	}
	if stats.AverageScorePercentage != 75 {
		t.Fatalf("expected 75%%, got %.2f", stats.AverageScorePercentage)
	}
	if stats.LastReviewScore != 9 {
		t.Fatalf("expected last score 9, got %.2f", stats.LastReviewScore)
	}
	if stats.LastReviewDate == nil || stats.LastReviewDate.Format("2006-01-02") != "2026-04-20" {
		t.Fatalf("unexpected last review date: %v", stats.LastReviewDate)
	}
}

func TestEmployeePerformanceUnknownEmployee(t *testing.T) {
	svc := newTestService()

	_, err := svc.EmployeePerformance(adminCtx(), "emp-nadie")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
