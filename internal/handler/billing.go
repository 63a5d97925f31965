package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/utellme/utellme/internal/apperr"
	"github.com/utellme/utellme/internal/ctxkeys"
	"github.com/utellme/utellme/internal/rpc"
	"github.com/utellme/utellme/internal/service/payment"
)

const maxWebhookBytes = 1 << 20

var errNoProvider = errors.New("no payment provider configured")

type BillingHandler struct {
	paymentService payment.Provider
}

// NewBillingHandler wires billing procedures. paymentService may be nil when
// billing is not configured; calls then fail as unavailable.
func NewBillingHandler(paymentService payment.Provider) *BillingHandler {
	return &BillingHandler{paymentService: paymentService}
}

type checkoutSession struct {
	CheckoutURL string `json:"checkoutUrl"`
}

type billingPortalSession struct {
	BillingPortalURL string `json:"billingPortalUrl"`
}

func (h *BillingHandler) CreateCheckoutSession(ctx context.Context, _ rpc.Empty) (*checkoutSession, error) {
	user := ctxkeys.User(ctx)
	if user == nil {
		return nil, apperr.Unauthenticated("You must be signed in")
	}
	if h.paymentService == nil {
		return nil, apperr.External("", errNoProvider)
	}

	checkoutURL, err := h.paymentService.CreateCheckoutURL(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "checkout session created", "user_id", user.ID, "provider", h.paymentService.Name())
	return &checkoutSession{CheckoutURL: checkoutURL}, nil
}

func (h *BillingHandler) CreateBillingPortalSession(ctx context.Context, _ rpc.Empty) (*billingPortalSession, error) {
	user := ctxkeys.User(ctx)
	if user == nil {
		return nil, apperr.Unauthenticated("You must be signed in")
	}
	if h.paymentService == nil {
		return nil, apperr.External("", errNoProvider)
	}

	portalURL, err := h.paymentService.CustomerPortalURL(ctx, user)
	if err != nil {
		return nil, err
	}

	return &billingPortalSession{BillingPortalURL: portalURL}, nil
}

func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.paymentService == nil {
		http.NotFound(w, r)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read webhook payload", "error", err)
		http.Error(w, "Failed to read payload", http.StatusBadRequest)
		return
	}
	defer func() {
		closeErr := r.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close request body", "error", closeErr)
		}
	}()

	err = h.paymentService.HandleWebhook(r.Context(), payload, r.Header)
	if err != nil {
		rpc.WriteError(w, r, err)
		return
	}

	rpc.WriteData(w, http.StatusOK, map[string]bool{"received": true})
}
