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
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/repository"
	"github.com/utellme/utellme/internal/validation"
)

// recentFeedbackPerProject is how many entries the project list embeds.
const recentFeedbackPerProject = 3

type ProjectService struct {
	projectRepository  repository.ProjectRepository
	feedbackRepository repository.FeedbackRepository
}

func NewProjectService(projectRepository repository.ProjectRepository, feedbackRepository repository.FeedbackRepository) *ProjectService {
	return &ProjectService{
		projectRepository:  projectRepository,
		feedbackRepository: feedbackRepository,
	}
}

func (s *ProjectService) List(ctx context.Context, callerID string) ([]*model.ProjectWithFeedback, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	projects, err := s.projectRepository.ByUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	recent, err := s.feedbackRepository.RecentByUser(ctx, callerID, recentFeedbackPerProject)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent feedback: %w", err)
	}

	result := make([]*model.ProjectWithFeedback, 0, len(projects))
	for _, p := range projects {
		feedback := recent[p.ID]
		if feedback == nil {
			feedback = []*model.Feedback{}
		}
		result = append(result, &model.ProjectWithFeedback{Project: p, Feedbacks: feedback})
	}

	return result, nil
}

func (s *ProjectService) Create(ctx context.Context, callerID, name, description string) (*model.Project, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if err := validation.ValidateProjectName(name); err != nil {
		return nil, apperr.InvalidField("name", err.Error())
	}

	project := &model.Project{
		ID:          uuid.New().String(),
		UserID:      callerID,
		Name:        name,
		Description: optionalText(description),
		OrderBy:     model.OrderByCreatedDesc,
		CreatedAt:   time.Now().UTC(),
	}

	err := s.projectRepository.Create(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	slog.InfoContext(ctx, "project created", "project_id", project.ID, "user_id", callerID)
	return project, nil
}

// Edit applies a partial update and returns the number of rows changed.
// A missing or foreign project is a no-op with count 0.
func (s *ProjectService) Edit(ctx context.Context, callerID, projectID string, changes model.ProjectChanges) (int64, error) {
	if err := requireCaller(callerID); err != nil {
		return 0, err
	}

	changes, err := normalizeChanges(changes)
	if err != nil {
		return 0, err
	}

	project, err := s.projectRepository.ByID(ctx, projectID)
	if errors.Is(err, repository.ErrProjectNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get project: %w", err)
	}

	if !requireOwnerOrNoop(project.UserID, callerID) {
		slog.DebugContext(ctx, "project edit ignored for non-owner", "project_id", projectID, "user_id", callerID)
		return 0, nil
	}

	count, err := s.projectRepository.Update(ctx, callerID, projectID, changes)
	if err != nil {
		return 0, fmt.Errorf("failed to update project: %w", err)
	}

	return count, nil
}

// Delete removes a project and its feedback. Like Edit, a missing or foreign
// project is silently ignored.
func (s *ProjectService) Delete(ctx context.Context, callerID, projectID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}

	project, err := s.projectRepository.ByID(ctx, projectID)
	if errors.Is(err, repository.ErrProjectNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}

	if !requireOwnerOrNoop(project.UserID, callerID) {
		slog.DebugContext(ctx, "project delete ignored for non-owner", "project_id", projectID, "user_id", callerID)
		return nil
	}

	_, err = s.projectRepository.Delete(ctx, callerID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	slog.InfoContext(ctx, "project deleted", "project_id", projectID, "user_id", callerID)
	return nil
}

// GetOne is the public read used by the feedback submission page.
func (s *ProjectService) GetOne(ctx context.Context, projectID string) (*model.PublicProject, error) {
	project, err := s.projectRepository.ByID(ctx, projectID)
	if errors.Is(err, repository.ErrProjectNotFound) {
		return nil, apperr.NotFound("Project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project.Public(), nil
}

func (s *ProjectService) GetInfo(ctx context.Context, callerID, projectID string) (*model.ProjectInfo, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	project, err := s.projectRepository.ByID(ctx, projectID)
	if errors.Is(err, repository.ErrProjectNotFound) {
		return nil, apperr.NotFound("Project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	// Foreign projects look exactly like missing ones
	if !requireOwnerOrNoop(project.UserID, callerID) {
		return nil, apperr.NotFound("Project not found")
	}

	count, average, err := s.projectRepository.Stats(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute project stats: %w", err)
	}

	return &model.ProjectInfo{
		Project:       project,
		FeedbackCount: count,
		AverageRating: average,
	}, nil
}

// normalizeChanges trims text, turns empty strings into "unchanged" and
// validates what is left.
func normalizeChanges(c model.ProjectChanges) (model.ProjectChanges, error) {
	fields := map[string]string{}

	c.Name = trimField(c.Name)
	if c.Name.IsReset() {
		c.Name = model.Unchanged[string]()
	}
	if c.Name.IsSet() {
		if err := validation.ValidateProjectName(c.Name.Value()); err != nil {
			fields["newName"] = err.Error()
		}
	}

	c.Description = trimField(c.Description)
	c.Message = trimField(c.Message)

	colors := []struct {
		field *model.Field[string]
		name  string
	}{
		{&c.PrimaryColor, "newPrimaryColor"},
		{&c.TextColor, "newTextColor"},
		{&c.BackgroundColor, "newBackgroundColor"},
	}
	for _, color := range colors {
		*color.field = trimField(*color.field)
		if color.field.IsSet() {
			if err := validation.ValidateColor(color.field.Value()); err != nil {
				fields[color.name] = err.Error()
			}
		}
	}

	if c.OrderBy.IsReset() || (c.OrderBy.IsSet() && c.OrderBy.Value() == "") {
		c.OrderBy = model.Unchanged[model.OrderBy]()
	}
	if c.OrderBy.IsSet() && !c.OrderBy.Value().Valid() {
		fields["newOrderBy"] = "must be one of: createdDesc, createdAsc, ratingDesc, ratingAsc"
	}

	if len(fields) > 0 {
		return c, apperr.Validation("Invalid project changes", fields)
	}
	return c, nil
}

func trimField(f model.Field[string]) model.Field[string] {
	if !f.IsSet() {
		return f
	}
	v := strings.TrimSpace(f.Value())
	if v == "" {
		return model.Unchanged[string]()
	}
	return model.Set(v)
}

// optionalText maps blank input to an absent value.
func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
