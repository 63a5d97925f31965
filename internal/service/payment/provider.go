package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utellme/utellme/internal/idempotency"
	"github.com/utellme/utellme/internal/metrics"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/repository"
)

// Provider defines the interface that all payment providers must implement
type Provider interface {
	// CreateCheckoutURL starts a Pro subscription checkout for the user
	CreateCheckoutURL(ctx context.Context, user *model.User) (string, error)

	// CustomerPortalURL opens the self-service billing portal for the user
	CustomerPortalURL(ctx context.Context, user *model.User) (string, error)

	// DeleteCustomer removes the customer (and cancels its subscriptions)
	DeleteCustomer(ctx context.Context, customerID string) error

	// HandleWebhook verifies and processes a webhook delivery
	HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error

	// Name returns the provider name (e.g., "polar", "stripe")
	Name() string
}

// webhookDeduper runs each delivered event at most once. Repeated deliveries
// of a processed event are acknowledged without side effects.
type webhookDeduper struct {
	provider string
	store    idempotency.Store
	ttl      time.Duration
}

func (d webhookDeduper) process(ctx context.Context, eventID, eventType string, fn func() error) error {
	if eventID == "" {
		return d.run(eventType, fn)
	}

	key := d.provider + ":" + eventID
	ok, err := d.store.Claim(ctx, key, d.ttl)
	if err != nil {
		return fmt.Errorf("failed to claim webhook event: %w", err)
	}
	if !ok {
		slog.InfoContext(ctx, "duplicate webhook skipped", "provider", d.provider, "event_id", eventID, "event_type", eventType)
		metrics.WebhookEvent(d.provider, eventType, "duplicate")
		return nil
	}

	err = d.run(eventType, fn)
	if err != nil {
		// Let the provider's retry reprocess the event.
		if relErr := d.store.Release(ctx, key); relErr != nil {
			slog.WarnContext(ctx, "failed to release webhook event", "event_id", eventID, "error", relErr)
		}
	}
	return err
}

func (d webhookDeduper) run(eventType string, fn func() error) error {
	if err := fn(); err != nil {
		metrics.WebhookEvent(d.provider, eventType, "error")
		return err
	}
	metrics.WebhookEvent(d.provider, eventType, "processed")
	return nil
}

// skipDeletedUser acknowledges events for users that no longer exist.
func skipDeletedUser(ctx context.Context, err error, userID string) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		slog.WarnContext(ctx, "billing event for unknown user, skipping", "user_id", userID)
		return nil
	}
	return err
}

// mapSubscriptionStatus collapses provider subscription states to the local enum.
func mapSubscriptionStatus(status string) model.SubscriptionStatus {
	switch status {
	case "active", "trialing":
		return model.SubscriptionStatusActive
	case "past_due", "unpaid":
		return model.SubscriptionStatusPastDue
	default:
		return model.SubscriptionStatusInactive
	}
}

func billingReturnURL(appURL string) string {
	return fmt.Sprintf("%s/dashboard/billing", appURL)
}
