package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/utellme/utellme/internal/apperr"
	"github.com/utellme/utellme/internal/ctxkeys"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/rpc"
	"github.com/utellme/utellme/internal/service"
	"github.com/utellme/utellme/internal/validation"
)

type UserHandler struct {
	userService *service.UserService
	authService *service.AuthService
}

func NewUserHandler(userService *service.UserService, authService *service.AuthService) *UserHandler {
	return &UserHandler{
		userService: userService,
		authService: authService,
	}
}

type updateNameInput struct {
	NewName string `json:"newName"`
}

func (h *UserHandler) UpdateName(ctx context.Context, in updateNameInput) (*model.User, error) {
	return h.userService.UpdateName(ctx, ctxkeys.UserID(ctx), in.NewName)
}

func (h *UserHandler) SubscriptionStatus(ctx context.Context, _ rpc.Empty) (*model.SubscriptionInfo, error) {
	return h.userService.SubscriptionStatus(ctx, ctxkeys.UserID(ctx))
}

// DeleteAccount also drops the session cookie since the session row is gone.
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	err := h.userService.DeleteAccount(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		rpc.WriteError(w, r, err)
		return
	}

	h.authService.ClearJWTCookie(w)
	rpc.WriteData(w, http.StatusOK, nil)
}

// UploadImage takes a multipart form with a single "image" file.
func (h *UserHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.ImageConstraints.MaxSize+1<<20)

	err := r.ParseMultipartForm(validation.ImageConstraints.MaxSize)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rpc.WriteError(w, r, apperr.InvalidField("image", "file is too large"))
			return
		}
		rpc.WriteError(w, r, apperr.InvalidField("image", "expected a multipart form"))
		return
	}

	_, header, err := r.FormFile("image")
	if err != nil {
		rpc.WriteError(w, r, apperr.InvalidField("image", "is required"))
		return
	}

	user, err := h.userService.UploadImage(r.Context(), ctxkeys.UserID(r.Context()), header)
	if err != nil {
		rpc.WriteError(w, r, err)
		return
	}

	rpc.WriteData(w, http.StatusOK, user)
}
