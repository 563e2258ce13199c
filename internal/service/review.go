package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

func (s *Service) CreateEmployee(ctx context.Context, req domain.EmployeeCreateRequest) (domain.Employee, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Employee{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Employee{}, store.ErrValidation
	}

	created, err := s.repo.CreateEmployee(ctx, domain.Employee{
		Name:       req.Name,
		Department: strings.TrimSpace(req.Department),
		Job:        strings.TrimSpace(req.Job),
		Active:     true,
	})
	if err != nil {
		return domain.Employee{}, err
	}

	s.logAudit(ctx, "", "employee_create", "employee", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	return s.repo.ListEmployees(ctx)
}

// CreatePerformanceReview opens a draft review. Reviewing yourself is
// rejected, and the score must land in [0, 10] even at draft time.
func (s *Service) CreatePerformanceReview(ctx context.Context, req domain.PerformanceReviewCreateRequest) (domain.PerformanceReview, error) {
	if req.EmployeeID == "" || req.ReviewerID == "" {
		return domain.PerformanceReview{}, store.ErrValidation
	}
	if req.EmployeeID == req.ReviewerID {
		return domain.PerformanceReview{}, store.ErrValidation
	}
	if req.Score < 0 || req.Score > 10 {
		return domain.PerformanceReview{}, store.ErrValidation
	}

	reviewDate := time.Now().UTC()
	if req.ReviewDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ReviewDate)
		if err != nil {
			return domain.PerformanceReview{}, store.ErrValidation
		}
		reviewDate = parsed
	}

	created, err := s.repo.CreatePerformanceReview(ctx, domain.PerformanceReview{
		EmployeeID:      req.EmployeeID,
		ReviewerID:      req.ReviewerID,
		ReviewDate:      reviewDate,
		Score:           req.Score,
		ScorePercentage: req.Score * 10,
		Comments:        req.Comments,
		State:           domain.ReviewStateDraft,
		CompanyID:       s.companyOrDefault(req.CompanyID),
	})
	if err != nil {
		return domain.PerformanceReview{}, err
	}

	s.logAudit(ctx, created.CompanyID, "review_create", "performance_review", created.ID,
		fmt.Sprintf("employee=%s,reviewer=%s", created.EmployeeID, created.ReviewerID))
	return *created, nil
}

func (s *Service) GetPerformanceReview(ctx context.Context, id string) (domain.PerformanceReview, error) {
	review, err := s.repo.GetPerformanceReview(ctx, id)
	if err != nil {
		return domain.PerformanceReview{}, err
	}
	return *review, nil
}

// SetReviewScore records the evaluation on a draft or in-progress review.
func (s *Service) SetReviewScore(ctx context.Context, id string, req domain.ReviewScoreRequest) (domain.PerformanceReview, error) {
	if req.Score < 0 || req.Score > 10 {
		return domain.PerformanceReview{}, store.ErrValidation
	}

	review, err := s.repo.GetPerformanceReview(ctx, id)
	if err != nil {
		return domain.PerformanceReview{}, err
	}
	if review.State != domain.ReviewStateDraft && review.State != domain.ReviewStateInProgress {
		return domain.PerformanceReview{}, store.ErrValidation
	}

	review.Score = req.Score
	review.ScorePercentage = req.Score * 10
	if req.Comments != "" {
		review.Comments = req.Comments
	}
	if req.GoalsNextPeriod != "" {
		review.GoalsNextPeriod = req.GoalsNextPeriod
	}
	if req.Strengths != "" {
		review.Strengths = req.Strengths
	}
	if req.Weaknesses != "" {
		review.Weaknesses = req.Weaknesses
	}

	saved, err := s.repo.UpdatePerformanceReview(ctx, *review)
	if err != nil {
		return domain.PerformanceReview{}, err
	}
	return *saved, nil
}

func (s *Service) StartReview(ctx context.Context, id string) (domain.PerformanceReview, error) {
	return s.transitionReview(ctx, id, "review_start", func(review *domain.PerformanceReview) error {
		if review.State != domain.ReviewStateDraft {
			return store.ErrValidation
		}
		review.State = domain.ReviewStateInProgress
		return nil
	})
}

// CompleteReview closes an in-progress review. A zero score means nothing was
// evaluated, so completion is refused until a score is set.
func (s *Service) CompleteReview(ctx context.Context, id string) (domain.PerformanceReview, error) {
	return s.transitionReview(ctx, id, "review_complete", func(review *domain.PerformanceReview) error {
		if review.State != domain.ReviewStateInProgress {
			return store.ErrValidation
		}
		if review.Score == 0 {
			return store.ErrValidation
		}
		review.State = domain.ReviewStateDone
		return nil
	})
}

func (s *Service) CancelReview(ctx context.Context, id string) (domain.PerformanceReview, error) {
	return s.transitionReview(ctx, id, "review_cancel", func(review *domain.PerformanceReview) error {
		if review.State != domain.ReviewStateDraft && review.State != domain.ReviewStateInProgress {
			return store.ErrValidation
		}
		review.State = domain.ReviewStateCancelled
		return nil
	})
}

// ResetReview returns a finished or cancelled review to draft for rework.
func (s *Service) ResetReview(ctx context.Context, id string) (domain.PerformanceReview, error) {
	return s.transitionReview(ctx, id, "review_reset", func(review *domain.PerformanceReview) error {
		if review.State != domain.ReviewStateDone && review.State != domain.ReviewStateCancelled {
			return store.ErrValidation
		}
		review.State = domain.ReviewStateDraft
		return nil
	})
}

func (s *Service) transitionReview(ctx context.Context, id string, action string, apply func(*domain.PerformanceReview) error) (domain.PerformanceReview, error) {
	review, err := s.repo.GetPerformanceReview(ctx, id)
	if err != nil {
		return domain.PerformanceReview{}, err
	}
	if err := apply(review); err != nil {
		return domain.PerformanceReview{}, err
	}

	saved, err := s.repo.UpdatePerformanceReview(ctx, *review)
	if err != nil {
		return domain.PerformanceReview{}, err
	}

	s.logAudit(ctx, saved.CompanyID, action, "performance_review", saved.ID, "state="+saved.State)
	return *saved, nil
}

// EmployeePerformance aggregates an employee's completed reviews.
func (s *Service) EmployeePerformance(ctx context.Context, employeeID string) (domain.EmployeePerformance, error) {
	if _, err := s.repo.GetEmployee(ctx, employeeID); err != nil {
		return domain.EmployeePerformance{}, err
	}

	reviews, err := s.repo.ListReviewsByEmployee(ctx, employeeID)
	if err != nil {
		return domain.EmployeePerformance{}, err
	}

	stats := domain.EmployeePerformance{EmployeeID: employeeID, ReviewCount: len(reviews)}
	var sum float64
	var done int
	for _, review := range reviews {
		if review.State != domain.ReviewStateDone {
			continue
		}
		done++
		sum += review.Score
		if stats.LastReviewDate == nil || review.ReviewDate.After(*stats.LastReviewDate) {
			date := review.ReviewDate
			stats.LastReviewDate = &date
			stats.LastReviewScore = review.Score
		}
	}
	if done > 0 {
		stats.AverageScore = sum / float64(done)
		stats.AverageScorePercentage = stats.AverageScore / 10 * 100
	}
	return stats, nil
}
