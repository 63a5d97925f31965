package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	portalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/customer"
	"github.com/stripe/stripe-go/v81/webhook"
	"github.com/utellme/utellme/internal/apperr"
	"github.com/utellme/utellme/internal/config"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/service"
)

type StripeProvider struct {
	cfg                 *config.Config
	subscriptionService *service.SubscriptionService
	dedupe              webhookDeduper
}

func NewStripeProvider(cfg *config.Config, subscriptionService *service.SubscriptionService, dedupe webhookDeduper) *StripeProvider {
	// Set Stripe API key
	stripe.Key = cfg.StripeSecretKey

	slog.Info("stripe provider initialized", "app_env", cfg.AppEnv)

	return &StripeProvider{
		cfg:                 cfg,
		subscriptionService: subscriptionService,
		dedupe:              dedupe,
	}
}

func (s *StripeProvider) Name() string {
	return model.ProviderStripe
}

func (s *StripeProvider) CreateCheckoutURL(ctx context.Context, user *model.User) (string, error) {
	if s.cfg.StripePriceIDPro == "" {
		return "", apperr.Internal(fmt.Errorf("STRIPE_PRICE_ID_PRO is not configured"))
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(billingReturnURL(s.cfg.AppURL) + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(billingReturnURL(s.cfg.AppURL)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.StripePriceIDPro),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(user.ID),
		Metadata: map[string]string{
			"user_id": user.ID,
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": user.ID,
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx

	// Reuse the customer from an earlier checkout so the portal shows one history
	if user.HasBillingCustomer() {
		params.Customer = stripe.String(*user.BillingCustomerID)
	} else {
		params.CustomerEmail = stripe.String(user.Email)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", stripeError("failed to create checkout session", err)
	}

	slog.InfoContext(ctx, "stripe checkout created", "user_id", user.ID, "session_id", sess.ID)
	return sess.URL, nil
}

func (s *StripeProvider) CustomerPortalURL(ctx context.Context, user *model.User) (string, error) {
	if !user.HasBillingCustomer() {
		return "", apperr.NotFound("No billing account found for this user")
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*user.BillingCustomerID),
		ReturnURL: stripe.String(billingReturnURL(s.cfg.AppURL)),
	}
	params.Context = ctx

	portalSession, err := portalsession.New(params)
	if err != nil {
		return "", stripeError("failed to create customer portal session", err)
	}

	slog.InfoContext(ctx, "stripe customer portal session created", "user_id", user.ID)
	return portalSession.URL, nil
}

// DeleteCustomer deletes the Stripe customer, which cancels its subscriptions.
func (s *StripeProvider) DeleteCustomer(ctx context.Context, customerID string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	_, err := customer.Del(customerID, params)
	if err != nil {
		return stripeError("failed to delete customer", err)
	}

	slog.InfoContext(ctx, "stripe customer deleted", "customer_id", customerID)
	return nil
}

func (s *StripeProvider) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	signature := headers.Get("Stripe-Signature")

	// Stripe's API versions are backwards compatible for the fields read here
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		s.cfg.StripeWebhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		slog.WarnContext(ctx, "stripe webhook rejected", "error", err)
		return apperr.Validation("Invalid webhook signature", nil)
	}

	eventType := string(event.Type)
	slog.InfoContext(ctx, "stripe webhook received", "event_id", event.ID, "event_type", eventType)

	return s.dedupe.process(ctx, event.ID, eventType, func() error {
		switch eventType {
		case "checkout.session.completed":
			return s.handleCheckoutSessionCompleted(ctx, event.Data.Raw)
		case "customer.subscription.created", "customer.subscription.updated":
			return s.handleSubscriptionChanged(ctx, event.Data.Raw, false)
		case "customer.subscription.deleted":
			return s.handleSubscriptionChanged(ctx, event.Data.Raw, true)
		default:
			slog.DebugContext(ctx, "stripe webhook event ignored", "event_type", eventType)
			return nil
		}
	})
}

func (s *StripeProvider) handleCheckoutSessionCompleted(ctx context.Context, data json.RawMessage) error {
	var checkoutSession struct {
		ID                string            `json:"id"`
		CustomerID        string            `json:"customer"`
		ClientReferenceID string            `json:"client_reference_id"`
		Metadata          map[string]string `json:"metadata"`
	}

	err := json.Unmarshal(data, &checkoutSession)
	if err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	userID := checkoutSession.Metadata["user_id"]
	if userID == "" {
		userID = checkoutSession.ClientReferenceID
	}
	if userID == "" || checkoutSession.CustomerID == "" {
		slog.WarnContext(ctx, "stripe checkout session has no user_id or customer, skipping", "session_id", checkoutSession.ID)
		return nil
	}

	err = s.subscriptionService.AttachCustomer(ctx, userID, checkoutSession.CustomerID)
	return skipDeletedUser(ctx, err, userID)
}

func (s *StripeProvider) handleSubscriptionChanged(ctx context.Context, data json.RawMessage, deleted bool) error {
	var subscription struct {
		ID         string            `json:"id"`
		CustomerID string            `json:"customer"`
		Status     string            `json:"status"`
		Metadata   map[string]string `json:"metadata"`
	}

	err := json.Unmarshal(data, &subscription)
	if err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	status := mapSubscriptionStatus(subscription.Status)
	if deleted {
		status = model.SubscriptionStatusInactive
	}

	if userID := subscription.Metadata["user_id"]; userID != "" {
		if err := s.subscriptionService.AttachCustomer(ctx, userID, subscription.CustomerID); err != nil {
			return skipDeletedUser(ctx, err, userID)
		}
		err = s.subscriptionService.SetStatus(ctx, userID, status)
		return skipDeletedUser(ctx, err, userID)
	}

	err = s.subscriptionService.SetStatusByCustomer(ctx, subscription.CustomerID, status)
	if errors.Is(err, service.ErrUnknownCustomer) {
		slog.WarnContext(ctx, "stripe subscription has unknown customer, skipping", "customer_id", subscription.CustomerID, "stripe_sub_id", subscription.ID)
		return nil
	}
	return err
}

// stripeError surfaces Stripe's own message to the caller when there is one.
func stripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return apperr.External(stripeErr.Msg, fmt.Errorf("%s: %w", op, err))
	}
	return apperr.External("", fmt.Errorf("%s: %w", op, err))
}
