package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/utellme/utellme/internal/apperr"
	"github.com/utellme/utellme/internal/config"
	"github.com/utellme/utellme/internal/ctxkeys"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/rpc"
	"github.com/utellme/utellme/internal/service"
)

const oauthStateCookie = "oauth_state"

type authHandler struct {
	authService       *service.AuthService
	appURL            string
	isProduction      bool
	googleOAuthConfig *oauth2.Config
	githubOAuthConfig *oauth2.Config
}

func NewAuthHandler(authService *service.AuthService, cfg *config.Config) *authHandler {
	return &authHandler{
		authService:  authService,
		appURL:       cfg.AppURL,
		isProduction: cfg.IsProduction(),
		googleOAuthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.AppURL + "/auth/google/callback",
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		githubOAuthConfig: &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.AppURL + "/auth/github/callback",
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

type magicLinkInput struct {
	Email string `json:"email"`
}

// SendMagicLink always reports success for a well-formed address so the
// endpoint cannot be used to probe for accounts.
func (h *authHandler) SendMagicLink(w http.ResponseWriter, r *http.Request) {
	var in magicLinkInput
	if err := rpc.Decode(r, &in); err != nil {
		rpc.WriteError(w, r, err)
		return
	}

	err := h.authService.SendMagicLink(r.Context(), in.Email)
	if apperr.Is(err, apperr.CodeBadRequest) {
		rpc.WriteError(w, r, err)
		return
	}
	if err != nil {
		slog.WarnContext(r.Context(), "magic link send failed", "error", err)
	}

	rpc.WriteData(w, http.StatusOK, map[string]bool{"sent": true})
}

func (h *authHandler) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	user, err := h.authService.VerifyMagicLink(r.Context(), token)
	if err != nil {
		slog.WarnContext(r.Context(), "magic link verification failed", "error", err)
		h.redirectSignIn(w, r, "invalid_link")
		return
	}

	h.signIn(w, r, user, "magic_link")
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.authService.EndSession(r.Context(), ctxkeys.SessionID(r.Context()))
	if err != nil {
		slog.WarnContext(r.Context(), "failed to end session", "error", err)
	}

	h.authService.ClearJWTCookie(w)
	rpc.WriteData(w, http.StatusOK, nil)
}

// CSRFToken hands the double-submit token to the browser client.
func (h *authHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	rpc.WriteData(w, http.StatusOK, map[string]string{"csrfToken": ctxkeys.CSRFToken(r.Context())})
}

// Session reports the signed-in user, or null.
func (h *authHandler) Session(w http.ResponseWriter, r *http.Request) {
	rpc.WriteData(w, http.StatusOK, ctxkeys.User(r.Context()))
}

// GoogleAuth redirects user to Google OAuth consent screen
func (h *authHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	h.startOAuth(w, r, h.googleOAuthConfig)
}

// GoogleCallback handles the OAuth callback from Google
func (h *authHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	h.finishOAuth(w, r, model.AccountProviderGoogle, h.googleOAuthConfig, fetchGoogleProfile)
}

// GitHubAuth redirects user to GitHub OAuth consent screen
func (h *authHandler) GitHubAuth(w http.ResponseWriter, r *http.Request) {
	h.startOAuth(w, r, h.githubOAuthConfig)
}

// GitHubCallback handles the OAuth callback from GitHub
func (h *authHandler) GitHubCallback(w http.ResponseWriter, r *http.Request) {
	h.finishOAuth(w, r, model.AccountProviderGitHub, h.githubOAuthConfig, fetchGitHubProfile)
}

func (h *authHandler) startOAuth(w http.ResponseWriter, r *http.Request, oauthConfig *oauth2.Config) {
	state := generateOAuthState()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})

	http.Redirect(w, r, oauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

type profileFetcher func(ctx context.Context, client *http.Client) (service.OAuthProfile, error)

func (h *authHandler) finishOAuth(w http.ResponseWriter, r *http.Request, provider string, oauthConfig *oauth2.Config, fetch profileFetcher) {
	ctx := r.Context()

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value != state || state == "" {
		slog.WarnContext(ctx, "oauth state validation failed", "provider", provider, "error", err)
		h.redirectSignIn(w, r, "oauth_failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		slog.WarnContext(ctx, "oauth callback missing code", "provider", provider)
		h.redirectSignIn(w, r, "oauth_failed")
		return
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "oauth token exchange failed", "provider", provider, "error", err)
		h.redirectSignIn(w, r, "oauth_failed")
		return
	}

	profile, err := fetch(ctx, oauthConfig.Client(ctx, token))
	if err != nil {
		slog.ErrorContext(ctx, "failed to get oauth profile", "provider", provider, "error", err)
		h.redirectSignIn(w, r, "oauth_failed")
		return
	}
	profile.Provider = provider

	user, err := h.authService.AuthenticateOAuth(ctx, profile)
	if err != nil {
		slog.ErrorContext(ctx, "oauth authentication failed", "provider", provider, "error", err)
		h.redirectSignIn(w, r, "oauth_failed")
		return
	}

	h.signIn(w, r, user, provider)
}

func (h *authHandler) signIn(w http.ResponseWriter, r *http.Request, user *model.User, method string) {
	token, expires, err := h.authService.StartSession(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to start session", "error", err, "user_id", user.ID)
		h.redirectSignIn(w, r, "server_error")
		return
	}

	h.authService.SetJWTCookie(w, token, expires)

	slog.InfoContext(r.Context(), "user signed in", "user_id", user.ID, "method", method)
	http.Redirect(w, r, h.appURL+"/dashboard", http.StatusSeeOther)
}

func (h *authHandler) redirectSignIn(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, fmt.Sprintf("%s/signin?error=%s", h.appURL, reason), http.StatusSeeOther)
}

func fetchGoogleProfile(ctx context.Context, client *http.Client) (service.OAuthProfile, error) {
	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, client, "https://www.googleapis.com/oauth2/v2/userinfo", &info); err != nil {
		return service.OAuthProfile{}, err
	}

	return service.OAuthProfile{
		ProviderAccountID: info.ID,
		Email:             info.Email,
		Name:              info.Name,
		Image:             info.Picture,
	}, nil
}

func fetchGitHubProfile(ctx context.Context, client *http.Client) (service.OAuthProfile, error) {
	var info struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user", &info); err != nil {
		return service.OAuthProfile{}, err
	}

	// The profile omits the email when it is private
	if info.Email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, "https://api.github.com/user/emails", &emails); err != nil {
			return service.OAuthProfile{}, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				info.Email = e.Email
				break
			}
		}
	}

	if info.Email == "" {
		return service.OAuthProfile{}, errors.New("github account has no verified primary email")
	}

	name := info.Name
	if name == "" {
		name = info.Login
	}

	return service.OAuthProfile{
		ProviderAccountID: strconv.FormatInt(info.ID, 10),
		Email:             info.Email,
		Name:              name,
		Image:             info.AvatarURL,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %d", url, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// generateOAuthState creates cryptographically secure random state token for OAuth CSRF protection
func generateOAuthState() string {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		panic("failed to generate oauth state: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
