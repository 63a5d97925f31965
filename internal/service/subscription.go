package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/repository"
)

var ErrUnknownCustomer = errors.New("no user for billing customer")

// SubscriptionService keeps the cached subscription status on users in sync
// with billing webhooks.
type SubscriptionService struct {
	userRepository repository.UserRepository
}

func NewSubscriptionService(userRepository repository.UserRepository) *SubscriptionService {
	return &SubscriptionService{userRepository: userRepository}
}

// AttachCustomer records the billing customer created for a user at checkout.
func (s *SubscriptionService) AttachCustomer(ctx context.Context, userID, customerID string) error {
	if userID == "" || customerID == "" {
		return fmt.Errorf("attach customer: user id and customer id are required")
	}

	err := s.userRepository.SetBillingCustomerID(ctx, userID, customerID)
	if err != nil {
		return fmt.Errorf("failed to attach billing customer: %w", err)
	}

	slog.InfoContext(ctx, "billing customer attached", "user_id", userID, "customer_id", customerID)
	return nil
}

func (s *SubscriptionService) SetStatus(ctx context.Context, userID string, status model.SubscriptionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid subscription status %q", status)
	}

	err := s.userRepository.SetSubscriptionStatus(ctx, userID, status)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}

	slog.InfoContext(ctx, "subscription status updated", "user_id", userID, "status", status)
	return nil
}

// SetStatusByCustomer updates the user linked to a billing customer.
func (s *SubscriptionService) SetStatusByCustomer(ctx context.Context, customerID string, status model.SubscriptionStatus) error {
	user, err := s.userRepository.ByBillingCustomerID(ctx, customerID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownCustomer, customerID)
	}
	if err != nil {
		return fmt.Errorf("failed to find user for customer: %w", err)
	}

	return s.SetStatus(ctx, user.ID, status)
}
