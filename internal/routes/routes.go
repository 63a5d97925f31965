package routes

import (
	"net/http"
	"time"

	"github.com/utellme/utellme/internal/app"
	"github.com/utellme/utellme/internal/handler"
	"github.com/utellme/utellme/internal/metrics"
	"github.com/utellme/utellme/internal/middleware"
	"github.com/utellme/utellme/internal/rpc"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService, app.Cfg)
	projects := handler.NewProjectHandler(app.ProjectService)
	feedbacks := handler.NewFeedbackHandler(app.FeedbackService)
	user := handler.NewUserHandler(app.UserService, app.AuthService)
	billing := handler.NewBillingHandler(app.PaymentService)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// PROCEDURES (/api/*)
	// ============================================================================

	api := &procedures{mux: mux}

	// Projects
	api.query("projects.getAll", middleware.RequireAuth(rpc.Handle(projects.GetAll)))
	api.mutation("projects.create", middleware.RequireAuth(rpc.Handle(projects.Create)))
	api.mutation("projects.edit", middleware.RequireAuth(rpc.Handle(projects.Edit)))
	api.mutation("projects.delete", middleware.RequireAuth(rpc.Handle(projects.Delete)))
	api.query("projects.getOne", rpc.Handle(projects.GetOne))
	api.query("projects.getInfo", middleware.RequireAuth(rpc.Handle(projects.GetInfo)))

	// Feedback (submission is public; throttling is left to the hosting platform)
	api.query("feedbacks.getAll", middleware.RequireAuth(rpc.Handle(feedbacks.GetAll)))
	api.mutation("feedbacks.create", rpc.Handle(feedbacks.Create))
	api.mutation("feedbacks.delete", middleware.RequireAuth(rpc.Handle(feedbacks.Delete)))

	// User
	api.mutation("user.updateName", middleware.RequireAuth(rpc.Handle(user.UpdateName)))
	api.mutation("user.uploadImage", middleware.RequireAuth(user.UploadImage))
	api.mutation("user.deleteAccount", middleware.RequireAuth(user.DeleteAccount))
	api.query("user.subscriptionStatus", middleware.RequireAuth(rpc.Handle(user.SubscriptionStatus)))

	// Billing
	api.mutation("stripe.createCheckoutSession", middleware.RequireAuth(rpc.Handle(billing.CreateCheckoutSession)))
	api.mutation("stripe.createBillingPortalSession", middleware.RequireAuth(rpc.Handle(billing.CreateBillingPortalSession)))

	// ============================================================================
	// AUTH (/auth/*)
	// ============================================================================

	authLimiter := middleware.RateLimit(5, 15*time.Minute)

	// OAuth
	mux.HandleFunc("GET /auth/google", authLimiter(auth.GoogleAuth))
	mux.HandleFunc("GET /auth/google/callback", authLimiter(auth.GoogleCallback))
	mux.HandleFunc("GET /auth/github", authLimiter(auth.GitHubAuth))
	mux.HandleFunc("GET /auth/github/callback", authLimiter(auth.GitHubCallback))

	// Magic link
	mux.HandleFunc("POST /auth/magic-link", authLimiter(auth.SendMagicLink))
	mux.HandleFunc("GET /auth/magic-link/{token}", auth.VerifyMagicLink)

	// Session
	mux.HandleFunc("GET /auth/session", auth.Session)
	mux.HandleFunc("GET /auth/csrf", auth.CSRFToken)
	mux.HandleFunc("POST /auth/logout", auth.Logout)

	// ============================================================================
	// WEBHOOKS & OPERATIONS
	// ============================================================================

	// Payment provider webhook (works with both Polar and Stripe)
	mux.HandleFunc("POST /webhooks/payment", billing.Webhook)

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", health.Check)

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.Config(app.Cfg), // Config must be first (needed by CSRF for the cookie flags)
		middleware.RequestLogging,
		middleware.CSRFProtection, // CSRF protection for cookie-authenticated state changes
		middleware.AuthMiddleware(app.AuthService, app.UserService),
	)
}

// procedures mounts handlers under /api/<name>. Queries also answer GET so
// their input can travel in the query string.
type procedures struct {
	mux *http.ServeMux
}

func (p *procedures) query(name string, h http.HandlerFunc) {
	p.mux.HandleFunc("GET /api/"+name, h)
	p.mux.HandleFunc("POST /api/"+name, h)
}

func (p *procedures) mutation(name string, h http.HandlerFunc) {
	p.mux.HandleFunc("POST /api/"+name, h)
}
