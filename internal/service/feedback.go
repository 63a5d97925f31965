package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utellme/utellme/internal/apperr"
	"github.com/utellme/utellme/internal/metrics"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/repository"
	"github.com/utellme/utellme/internal/validation"
)

// NewFeedback is a public feedback submission.
type NewFeedback struct {
	ProjectID string `json:"projectId" validate:"required"`
	Rating    int    `json:"rating" validate:"min=1,max=5"`
	Title     string `json:"title" validate:"max=100"`
	Content   string `json:"content" validate:"required,max=2000"`
	Author    string `json:"author" validate:"max=50"`
}

type FeedbackService struct {
	feedbackRepository repository.FeedbackRepository
	projectRepository  repository.ProjectRepository
}

func NewFeedbackService(feedbackRepository repository.FeedbackRepository, projectRepository repository.ProjectRepository) *FeedbackService {
	return &FeedbackService{
		feedbackRepository: feedbackRepository,
		projectRepository:  projectRepository,
	}
}

// List returns the caller's feedback. With a project id the entries are
// ordered by that project's preference; a foreign or unknown project gives
// an empty list.
func (s *FeedbackService) List(ctx context.Context, callerID, projectID string) ([]*model.Feedback, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	if projectID == "" {
		feedback, err := s.feedbackRepository.ByUser(ctx, callerID)
		if err != nil {
			return nil, fmt.Errorf("failed to list feedback: %w", err)
		}
		return feedback, nil
	}

	project, err := s.projectRepository.ByID(ctx, projectID)
	if errors.Is(err, repository.ErrProjectNotFound) {
		return []*model.Feedback{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if !requireOwnerOrNoop(project.UserID, callerID) {
		return []*model.Feedback{}, nil
	}

	feedback, err := s.feedbackRepository.ByProject(ctx, callerID, projectID, project.OrderBy)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}

	return feedback, nil
}

// Create stores an anonymous submission. Only the project's existence is
// checked.
func (s *FeedbackService) Create(ctx context.Context, in NewFeedback) (*model.Feedback, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Author = strings.TrimSpace(in.Author)

	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	_, err := s.projectRepository.ByID(ctx, in.ProjectID)
	if errors.Is(err, repository.ErrProjectNotFound) {
		return nil, apperr.NotFound("Project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	feedback := &model.Feedback{
		ID:        uuid.New().String(),
		ProjectID: in.ProjectID,
		Rating:    in.Rating,
		Title:     optionalText(in.Title),
		Content:   in.Content,
		Author:    optionalText(in.Author),
		CreatedAt: time.Now().UTC(),
	}

	err = s.feedbackRepository.Create(ctx, feedback)
	if err != nil {
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}

	metrics.FeedbackSubmitted(feedback.Rating)
	slog.InfoContext(ctx, "feedback submitted",
		"project_id", feedback.ProjectID,
		"rating", feedback.Rating,
		"anonymous", feedback.IsAnonymous(),
	)
	return feedback, nil
}

// Delete removes a feedback entry. Unlike projects, a missing entry or a
// foreign owner is reported as FORBIDDEN.
func (s *FeedbackService) Delete(ctx context.Context, callerID, feedbackID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}

	feedback, err := s.feedbackRepository.WithOwner(ctx, feedbackID)
	if errors.Is(err, repository.ErrFeedbackNotFound) {
		return apperr.Forbidden("You are not allowed to do this")
	}
	if err != nil {
		return fmt.Errorf("failed to get feedback: %w", err)
	}

	if err := requireOwnerOrForbid(feedback.OwnerID, callerID); err != nil {
		return err
	}

	err = s.feedbackRepository.Delete(ctx, feedbackID)
	if errors.Is(err, repository.ErrFeedbackNotFound) {
		// Deleted concurrently; the end state is what the caller asked for
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}

	return nil
}
