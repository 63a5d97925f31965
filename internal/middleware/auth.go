package middleware

import (
	"net/http"
	"strings"

	"github.com/utellme/utellme/internal/apperr"
	"github.com/utellme/utellme/internal/ctxkeys"
	"github.com/utellme/utellme/internal/rpc"
	"github.com/utellme/utellme/internal/service"
)

// AuthMiddleware resolves the session token (cookie or bearer header) to a
// user and adds it to the context. Requests without a valid session pass
// through anonymously.
func AuthMiddleware(authService *service.AuthService, userService *service.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := sessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, sessionID, err := authService.Authenticate(r.Context(), token)
			if err != nil {
				// Invalid or revoked token, clear cookie and continue
				if fromCookie {
					authService.ClearJWTCookie(w)
				}
				next.ServeHTTP(w, r)
				return
			}

			user, err := userService.ByID(r.Context(), userID)
			if err != nil {
				if fromCookie {
					authService.ClearJWTCookie(w)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithUser(r.Context(), user)
			ctx = ctxkeys.WithSessionID(ctx, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionToken prefers the Authorization header over the cookie.
func sessionToken(r *http.Request) (token string, fromCookie bool) {
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(bearer), false
	}

	cookie, err := r.Cookie(service.AuthCookieName)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

// RequireAuth answers 401 when the request has no signed-in user
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil {
			rpc.WriteError(w, r, apperr.Unauthenticated("You must be signed in"))
			return
		}
		next.ServeHTTP(w, r)
	}
}
