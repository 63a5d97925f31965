package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	polargo "github.com/polarsource/polar-go"
	"github.com/polarsource/polar-go/models/components"
	"github.com/polarsource/polar-go/models/operations"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"github.com/utellme/utellme/internal/apperr"
	"github.com/utellme/utellme/internal/config"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/service"
)

type PolarProvider struct {
	cfg                 *config.Config
	subscriptionService *service.SubscriptionService
	client              *polargo.Polar
	dedupe              webhookDeduper
}

func NewPolarProvider(cfg *config.Config, subscriptionService *service.SubscriptionService, dedupe webhookDeduper) *PolarProvider {
	var serverOption polargo.SDKOption
	if cfg.PolarSandboxMode {
		serverOption = polargo.WithServer(polargo.ServerSandbox)
		slog.Info("polar using sandbox mode", "app_env", cfg.AppEnv)
	} else {
		serverOption = polargo.WithServer(polargo.ServerProduction)
		slog.Info("polar using production mode", "app_env", cfg.AppEnv)
	}

	client := polargo.New(
		polargo.WithSecurity(cfg.PolarAPIKey),
		serverOption,
	)

	return &PolarProvider{
		cfg:                 cfg,
		subscriptionService: subscriptionService,
		client:              client,
		dedupe:              dedupe,
	}
}

func (p *PolarProvider) Name() string {
	return model.ProviderPolar
}

func (p *PolarProvider) CreateCheckoutURL(ctx context.Context, user *model.User) (string, error) {
	if p.cfg.PolarProductIDPro == "" {
		return "", apperr.Internal(fmt.Errorf("POLAR_PRODUCT_ID_PRO is not configured"))
	}

	metadata := map[string]components.CheckoutCreateMetadata{
		"user_id": components.CreateCheckoutCreateMetadataStr(user.ID),
	}

	res, err := p.client.Checkouts.Create(ctx, components.CheckoutCreate{
		Products:           []string{p.cfg.PolarProductIDPro},
		SuccessURL:         polargo.String(billingReturnURL(p.cfg.AppURL)),
		ReturnURL:          polargo.String(billingReturnURL(p.cfg.AppURL)),
		CustomerEmail:      polargo.String(user.Email),
		CustomerName:       polargo.String(user.Name),
		AllowDiscountCodes: polargo.Bool(true),
		Metadata:           metadata,
	})
	if err != nil {
		return "", apperr.External("", fmt.Errorf("failed to create checkout: %w", err))
	}

	if res == nil || res.Checkout == nil {
		return "", apperr.External("", errors.New("checkout response is nil"))
	}

	slog.InfoContext(ctx, "polar checkout created", "user_id", user.ID, "checkout_id", res.Checkout.ID)
	return res.Checkout.URL, nil
}

func (p *PolarProvider) CustomerPortalURL(ctx context.Context, user *model.User) (string, error) {
	if !user.HasBillingCustomer() {
		return "", apperr.NotFound("No billing account found for this user")
	}

	sessionCreate := operations.CreateCustomerSessionsCreateCustomerSessionCreateCustomerSessionCustomerIDCreate(
		components.CustomerSessionCustomerIDCreate{
			CustomerID: *user.BillingCustomerID,
			ReturnURL:  polargo.String(billingReturnURL(p.cfg.AppURL)),
		},
	)
	res, err := p.client.CustomerSessions.Create(ctx, sessionCreate)
	if err != nil {
		return "", apperr.External("", fmt.Errorf("failed to create customer portal session: %w", err))
	}

	if res == nil || res.CustomerSession == nil {
		return "", apperr.External("", errors.New("customer portal response is nil"))
	}

	slog.InfoContext(ctx, "polar customer portal session created", "user_id", user.ID)
	return res.CustomerSession.CustomerPortalURL, nil
}

// DeleteCustomer deletes the Polar customer, which revokes its subscriptions.
func (p *PolarProvider) DeleteCustomer(ctx context.Context, customerID string) error {
	_, err := p.client.Customers.Delete(ctx, customerID)
	if err != nil {
		return apperr.External("", fmt.Errorf("failed to delete customer: %w", err))
	}

	slog.InfoContext(ctx, "polar customer deleted", "customer_id", customerID)
	return nil
}

func (p *PolarProvider) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	webhookID := headers.Get("webhook-id")

	if p.cfg.PolarWebhookSecret == "" {
		if p.cfg.IsProduction() {
			return apperr.Validation("Webhook signature cannot be verified", nil)
		}
		slog.WarnContext(ctx, "polar no webhook secret configured, skipping signature verification")
	} else {
		wh, err := standardwebhooks.NewWebhookRaw([]byte(p.cfg.PolarWebhookSecret))
		if err != nil {
			return fmt.Errorf("failed to create webhook verifier: %w", err)
		}

		httpHeaders := http.Header{}
		httpHeaders.Set("webhook-id", webhookID)
		httpHeaders.Set("webhook-timestamp", headers.Get("webhook-timestamp"))
		httpHeaders.Set("webhook-signature", headers.Get("webhook-signature"))

		err = wh.Verify(payload, httpHeaders)
		if err != nil {
			slog.WarnContext(ctx, "polar webhook rejected", "error", err)
			return apperr.Validation("Invalid webhook signature", nil)
		}
	}

	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	err := json.Unmarshal(payload, &event)
	if err != nil {
		return apperr.Validation("Invalid webhook payload", nil)
	}

	slog.InfoContext(ctx, "polar webhook received", "event_id", webhookID, "event_type", event.Type)

	return p.dedupe.process(ctx, webhookID, event.Type, func() error {
		switch event.Type {
		case "subscription.created", "subscription.updated", "subscription.active", "subscription.uncanceled":
			return p.handleSubscription(ctx, event.Data, model.SubscriptionStatusActive)
		case "subscription.canceled", "subscription.revoked":
			return p.handleSubscription(ctx, event.Data, model.SubscriptionStatusInactive)
		default:
			slog.DebugContext(ctx, "polar webhook event ignored", "event_type", event.Type)
			return nil
		}
	})
}

func (p *PolarProvider) handleSubscription(ctx context.Context, data json.RawMessage, status model.SubscriptionStatus) error {
	var subscription struct {
		ID         string            `json:"id"`
		CustomerID string            `json:"customer_id"`
		Metadata   map[string]string `json:"metadata"`
	}

	err := json.Unmarshal(data, &subscription)
	if err != nil {
		return fmt.Errorf("failed to parse subscription data: %w", err)
	}

	userID := subscription.Metadata["user_id"]
	if userID == "" {
		err = p.subscriptionService.SetStatusByCustomer(ctx, subscription.CustomerID, status)
		if errors.Is(err, service.ErrUnknownCustomer) {
			slog.WarnContext(ctx, "polar subscription has unknown customer, skipping", "customer_id", subscription.CustomerID, "polar_sub_id", subscription.ID)
			return nil
		}
		return err
	}

	if status == model.SubscriptionStatusActive && subscription.CustomerID != "" {
		if err := p.subscriptionService.AttachCustomer(ctx, userID, subscription.CustomerID); err != nil {
			return skipDeletedUser(ctx, err, userID)
		}
	}

	err = p.subscriptionService.SetStatus(ctx, userID, status)
	return skipDeletedUser(ctx, err, userID)
}
