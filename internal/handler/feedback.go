package handler

import (
	"context"

	"github.com/utellme/utellme/internal/ctxkeys"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/service"
)

type FeedbackHandler struct {
	feedbackService *service.FeedbackService
}

func NewFeedbackHandler(feedbackService *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

type listFeedbackInput struct {
	ProjectID string `json:"projectId"`
}

type feedbackIDInput struct {
	FeedbackID string `json:"feedbackId" validate:"required"`
}

func (h *FeedbackHandler) GetAll(ctx context.Context, in listFeedbackInput) ([]*model.Feedback, error) {
	return h.feedbackService.List(ctx, ctxkeys.UserID(ctx), in.ProjectID)
}

// Create accepts anonymous submissions.
func (h *FeedbackHandler) Create(ctx context.Context, in service.NewFeedback) (*model.Feedback, error) {
	return h.feedbackService.Create(ctx, in)
}

func (h *FeedbackHandler) Delete(ctx context.Context, in feedbackIDInput) (any, error) {
	return nil, h.feedbackService.Delete(ctx, ctxkeys.UserID(ctx), in.FeedbackID)
}
