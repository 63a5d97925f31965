package handler

import (
	"context"

	"github.com/utellme/utellme/internal/ctxkeys"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/rpc"
	"github.com/utellme/utellme/internal/service"
)

type ProjectHandler struct {
	projectService *service.ProjectService
}

func NewProjectHandler(projectService *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

type createProjectInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type projectIDInput struct {
	ProjectID string `json:"projectId" validate:"required"`
}

// editProjectInput distinguishes an omitted key (unchanged) from null (reset).
type editProjectInput struct {
	ProjectID          string                     `json:"projectId" validate:"required"`
	NewName            model.Field[string]        `json:"newName"`
	NewDescription     model.Field[string]        `json:"newDescription"`
	NewMessage         model.Field[string]        `json:"newMessage"`
	NewPrimaryColor    model.Field[string]        `json:"newPrimaryColor"`
	NewTextColor       model.Field[string]        `json:"newTextColor"`
	NewBackgroundColor model.Field[string]        `json:"newBackgroundColor"`
	NewOrderBy         model.Field[model.OrderBy] `json:"newOrderBy"`
}

type countResult struct {
	Count int64 `json:"count"`
}

func (h *ProjectHandler) GetAll(ctx context.Context, _ rpc.Empty) ([]*model.ProjectWithFeedback, error) {
	return h.projectService.List(ctx, ctxkeys.UserID(ctx))
}

func (h *ProjectHandler) Create(ctx context.Context, in createProjectInput) (*model.Project, error) {
	return h.projectService.Create(ctx, ctxkeys.UserID(ctx), in.Name, in.Description)
}

func (h *ProjectHandler) Edit(ctx context.Context, in editProjectInput) (*countResult, error) {
	count, err := h.projectService.Edit(ctx, ctxkeys.UserID(ctx), in.ProjectID, model.ProjectChanges{
		Name:            in.NewName,
		Description:     in.NewDescription,
		Message:         in.NewMessage,
		PrimaryColor:    in.NewPrimaryColor,
		TextColor:       in.NewTextColor,
		BackgroundColor: in.NewBackgroundColor,
		OrderBy:         in.NewOrderBy,
	})
	if err != nil {
		return nil, err
	}
	return &countResult{Count: count}, nil
}

func (h *ProjectHandler) Delete(ctx context.Context, in projectIDInput) (any, error) {
	return nil, h.projectService.Delete(ctx, ctxkeys.UserID(ctx), in.ProjectID)
}

func (h *ProjectHandler) GetOne(ctx context.Context, in projectIDInput) (*model.PublicProject, error) {
	return h.projectService.GetOne(ctx, in.ProjectID)
}

func (h *ProjectHandler) GetInfo(ctx context.Context, in projectIDInput) (*model.ProjectInfo, error) {
	return h.projectService.GetInfo(ctx, ctxkeys.UserID(ctx), in.ProjectID)
}
