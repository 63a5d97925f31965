package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/utellme/utellme/internal/apperr"
	"github.com/utellme/utellme/internal/metrics"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/repository"
	"github.com/utellme/utellme/internal/storage"
	"github.com/utellme/utellme/internal/validation"
)

// BillingCustomers removes a customer record at the billing provider.
type BillingCustomers interface {
	DeleteCustomer(ctx context.Context, customerID string) error
}

type UserService struct {
	userRepository repository.UserRepository
	storage        storage.Storage
	emailService   *EmailService
	billing        BillingCustomers
}

// NewUserService wires the user service. store may be nil when no object
// storage is configured.
func NewUserService(
	userRepository repository.UserRepository,
	store storage.Storage,
	emailService *EmailService,
	billing BillingCustomers,
) *UserService {
	return &UserService{
		userRepository: userRepository,
		storage:        store,
		emailService:   emailService,
		billing:        billing,
	}
}

func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.populateImage(user)
	return user, nil
}

// populateImage reports an uploaded image in place of the OAuth avatar.
func (s *UserService) populateImage(user *model.User) {
	if user.ImageKey == nil || s.storage == nil {
		return
	}
	url := s.storage.URL(*user.ImageKey)
	user.Image = &url
}

func (s *UserService) UpdateName(ctx context.Context, callerID, newName string) (*model.User, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	name := validation.NormalizeName(newName)
	if err := validation.ValidateUserName(name); err != nil {
		return nil, apperr.InvalidField("newName", err.Error())
	}

	err := s.userRepository.UpdateName(ctx, callerID, name)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.Unauthenticated("Your account no longer exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update name: %w", err)
	}

	return s.ByID(ctx, callerID)
}

func (s *UserService) UploadImage(ctx context.Context, callerID string, header *multipart.FileHeader) (*model.User, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	if s.storage == nil {
		return nil, apperr.InvalidField("image", "image uploads are not available")
	}

	contentType, err := validation.ValidateFile(header, validation.ImageConstraints)
	if err != nil {
		return nil, apperr.InvalidField("image", err.Error())
	}

	user, err := s.userRepository.ByID(ctx, callerID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.Unauthenticated("Your account no longer exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = file.Close() }()

	key := filepath.ToSlash(filepath.Join("public", "images", uuid.New().String()+filepath.Ext(header.Filename)))
	err = s.storage.Save(ctx, key, file, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	err = s.userRepository.UpdateImageKey(ctx, callerID, &key)
	if err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			slog.ErrorContext(ctx, "failed to delete image during cleanup", "error", delErr, "key", key)
		}
		return nil, fmt.Errorf("failed to store image key: %w", err)
	}

	if user.ImageKey != nil {
		if err := s.storage.Delete(ctx, *user.ImageKey); err != nil {
			slog.WarnContext(ctx, "failed to delete previous image", "error", err, "key", *user.ImageKey)
		}
	}

	return s.ByID(ctx, callerID)
}

func (s *UserService) SubscriptionStatus(ctx context.Context, callerID string) (*model.SubscriptionInfo, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	user, err := s.userRepository.ByID(ctx, callerID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.Unauthenticated("Your account no longer exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return model.NewSubscriptionInfo(user.SubscriptionStatus), nil
}

// DeleteAccount removes the caller and everything they own. External
// clean-up only starts once the database transaction has committed and
// never fails the request.
func (s *UserService) DeleteAccount(ctx context.Context, callerID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}

	user, err := s.userRepository.DeleteAccount(ctx, callerID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperr.Unauthenticated("Your account no longer exists")
	}
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	slog.InfoContext(ctx, "account deleted", "user_id", user.ID)

	if user.HasBillingCustomer() && s.billing != nil {
		err = s.billing.DeleteCustomer(ctx, *user.BillingCustomerID)
		metrics.BillingCustomerDeleted(err == nil)
		if err != nil {
			slog.ErrorContext(ctx, "failed to delete billing customer",
				"error", err,
				"user_id", user.ID,
				"customer_id", *user.BillingCustomerID,
			)
		}
	}

	if user.ImageKey != nil && s.storage != nil {
		if err := s.storage.Delete(ctx, *user.ImageKey); err != nil {
			slog.WarnContext(ctx, "failed to delete image from storage", "error", err, "key", *user.ImageKey)
		}
	}

	if err := s.emailService.SendAccountDeletedEmail(ctx, user.Email, user.Name); err != nil {
		slog.WarnContext(ctx, "failed to send account deleted email", "error", err, "user_id", user.ID)
	}

	return nil
}
