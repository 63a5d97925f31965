package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/utellme/utellme/internal/repository"
	"github.com/utellme/utellme/internal/testutil"
)

type testServices struct {
	db           *sqlx.DB
	auth         *AuthService
	users        *UserService
	projects     *ProjectService
	feedback     *FeedbackService
	subscription *SubscriptionService
	billing      *spyBilling
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	conn := testutil.NewDB(t)

	userRepository := repository.NewUserRepository(conn)
	projectRepository := repository.NewProjectRepository(conn)
	feedbackRepository := repository.NewFeedbackRepository(conn)

	emailService := NewEmailService("", "noreply@test.local", "http://localhost:8090", "uTellMe", true)
	billing := &spyBilling{}

	return &testServices{
		db: conn,
		auth: NewAuthService(
			userRepository,
			repository.NewAccountRepository(conn),
			repository.NewSessionRepository(conn),
			repository.NewTokenRepository(conn),
			emailService,
			"test-secret",
			false,
			time.Hour,
			10*time.Minute,
		),
		users:        NewUserService(userRepository, nil, emailService, billing),
		projects:     NewProjectService(projectRepository, feedbackRepository),
		feedback:     NewFeedbackService(feedbackRepository, projectRepository),
		subscription: NewSubscriptionService(userRepository),
		billing:      billing,
	}
}

// spyBilling records DeleteCustomer calls.
type spyBilling struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (b *spyBilling) DeleteCustomer(_ context.Context, customerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, customerID)
	return b.err
}

func (b *spyBilling) calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

func countRows(t *testing.T, conn *sqlx.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := conn.Get(&n, query, args...); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
