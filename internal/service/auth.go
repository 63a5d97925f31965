package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/utellme/utellme/internal/apperr"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/repository"
	"github.com/utellme/utellme/internal/validation"
)

const AuthCookieName = "auth_token"

var (
	ErrInvalidMagicLink = errors.New("invalid or expired magic link")
	ErrInvalidSession   = errors.New("invalid session")
)

// OAuthProfile is the identity returned by an OAuth provider.
type OAuthProfile struct {
	Provider          string
	ProviderAccountID string
	Email             string
	Name              string
	Image             string
}

type sessionClaims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type AuthService struct {
	userRepository       repository.UserRepository
	accountRepository    repository.AccountRepository
	sessionRepository    repository.SessionRepository
	tokenRepository      repository.TokenRepository
	emailService         *EmailService
	jwtSecret            string
	isProduction         bool
	jwtExpiry            time.Duration
	tokenMagicLinkExpiry time.Duration
}

func NewAuthService(
	userRepository repository.UserRepository,
	accountRepository repository.AccountRepository,
	sessionRepository repository.SessionRepository,
	tokenRepository repository.TokenRepository,
	emailService *EmailService,
	jwtSecret string,
	isProduction bool,
	jwtExpiry time.Duration,
	tokenMagicLinkExpiry time.Duration,
) *AuthService {
	return &AuthService{
		userRepository:       userRepository,
		accountRepository:    accountRepository,
		sessionRepository:    sessionRepository,
		tokenRepository:      tokenRepository,
		emailService:         emailService,
		jwtSecret:            jwtSecret,
		isProduction:         isProduction,
		jwtExpiry:            jwtExpiry,
		tokenMagicLinkExpiry: tokenMagicLinkExpiry,
	}
}

func (s *AuthService) GenerateToken() (string, error) {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// StartSession creates a session row and returns the signed JWT for it.
func (s *AuthService) StartSession(ctx context.Context, userID string) (string, time.Time, error) {
	now := time.Now().UTC()
	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		ExpiresAt: now.Add(s.jwtExpiry),
		CreatedAt: now,
	}

	err := s.sessionRepository.Create(ctx, session)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create session: %w", err)
	}

	claims := sessionClaims{
		UserID:    userID,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return token, session.ExpiresAt, nil
}

// Authenticate verifies a JWT and its backing session. It returns the user
// id and session id.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (string, string, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(s.jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	if claims.UserID == "" || claims.SessionID == "" {
		return "", "", fmt.Errorf("%w: missing claims", ErrInvalidSession)
	}

	session, err := s.sessionRepository.Valid(ctx, claims.SessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return "", "", fmt.Errorf("%w: session revoked or expired", ErrInvalidSession)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to load session: %w", err)
	}

	if session.UserID != claims.UserID {
		return "", "", fmt.Errorf("%w: session user mismatch", ErrInvalidSession)
	}

	return session.UserID, session.ID, nil
}

func (s *AuthService) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	err := s.sessionRepository.Delete(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *AuthService) SetJWTCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearJWTCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

// SendMagicLink emails a single-use sign-in link. The account itself is
// created when the link is used.
func (s *AuthService) SendMagicLink(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	if err := validation.ValidateEmail(email); err != nil {
		return apperr.InvalidField("email", err.Error())
	}

	err := s.tokenRepository.DeleteUnused(ctx, email)
	if err != nil {
		slog.WarnContext(ctx, "failed to delete old magic link tokens", "error", err, "email", email)
	}

	magicToken, err := s.GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	err = s.tokenRepository.Create(ctx, &model.VerificationToken{
		Identifier: email,
		Token:      magicToken,
		ExpiresAt:  time.Now().UTC().Add(s.tokenMagicLinkExpiry),
	})
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	err = s.emailService.SendMagicLinkEmail(ctx, email, magicToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to send magic link email", "error", err, "email", email)
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.InfoContext(ctx, "magic link sent", "email", email)
	return nil
}

// VerifyMagicLink consumes the token and returns the user, creating the
// account on first sign-in.
func (s *AuthService) VerifyMagicLink(ctx context.Context, token string) (*model.User, error) {
	verification, err := s.tokenRepository.Consume(ctx, token)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, ErrInvalidMagicLink
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}

	user, err := s.userRepository.ByEmail(ctx, verification.Identifier)
	if errors.Is(err, repository.ErrUserNotFound) {
		user, err = s.createUser(ctx, verification.Identifier, "", "")
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "new user created", "user_id", user.ID, "method", "magic_link")
		return user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.EmailVerifiedAt == nil {
		if err := s.userRepository.MarkEmailVerified(ctx, user.ID); err != nil {
			slog.WarnContext(ctx, "failed to mark email as verified", "error", err, "user_id", user.ID)
		}
	}

	slog.InfoContext(ctx, "user authenticated via magic link", "user_id", user.ID)
	return user, nil
}

// AuthenticateOAuth resolves an OAuth identity to a user: by linked account,
// then by email (linking the account), else a new user.
func (s *AuthService) AuthenticateOAuth(ctx context.Context, profile OAuthProfile) (*model.User, error) {
	email := strings.TrimSpace(strings.ToLower(profile.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperr.InvalidField("email", err.Error())
	}

	account, err := s.accountRepository.ByProvider(ctx, profile.Provider, profile.ProviderAccountID)
	if err == nil {
		user, err := s.userRepository.ByID(ctx, account.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get linked user: %w", err)
		}
		slog.InfoContext(ctx, "user authenticated via OAuth", "user_id", user.ID, "provider", profile.Provider)
		return user, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to lookup account: %w", err)
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		user, err = s.createUser(ctx, email, profile.Name, profile.Image)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "new user created", "user_id", user.ID, "method", profile.Provider)
	} else if err != nil {
		return nil, fmt.Errorf("failed to lookup user: %w", err)
	} else if user.EmailVerifiedAt == nil {
		// The provider has verified the address
		if err := s.userRepository.MarkEmailVerified(ctx, user.ID); err != nil {
			slog.WarnContext(ctx, "failed to mark email as verified", "error", err, "user_id", user.ID)
		}
	}

	err = s.accountRepository.Create(ctx, &model.Account{
		ID:                uuid.New().String(),
		UserID:            user.ID,
		Provider:          profile.Provider,
		ProviderAccountID: profile.ProviderAccountID,
		CreatedAt:         time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to link account: %w", err)
	}

	slog.InfoContext(ctx, "user authenticated via OAuth", "user_id", user.ID, "provider", profile.Provider)
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, email, name, image string) (*model.User, error) {
	now := time.Now().UTC()
	user := &model.User{
		ID:                 uuid.New().String(),
		Name:               strings.TrimSpace(name),
		Email:              email,
		EmailVerifiedAt:    &now,
		Image:              optionalText(image),
		SubscriptionStatus: model.SubscriptionStatusInactive,
		CreatedAt:          now,
	}

	err := s.userRepository.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		// Lost a race with a concurrent first sign-in
		return s.userRepository.ByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.emailService.SendWelcomeEmail(ctx, user.Email, user.Name); err != nil {
		slog.WarnContext(ctx, "failed to send welcome email", "error", err, "user_id", user.ID)
	}

	return user, nil
}
