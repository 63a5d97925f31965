// Package testutil provides a migrated SQLite database and fixtures for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/utellme/utellme/internal/db"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/repository"
)

// NewDB opens a fresh SQLite database under t.TempDir with all migrations applied.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := db.Init(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.RunMigrations(conn.DB, "sqlite"))
	return conn
}

// CreateUser inserts a user with the given email.
func CreateUser(t *testing.T, conn *sqlx.DB, email string) *model.User {
	t.Helper()

	user := &model.User{
		ID:                 uuid.New().String(),
		Name:               "Test User",
		Email:              email,
		SubscriptionStatus: model.SubscriptionStatusInactive,
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, repository.NewUserRepository(conn).Create(context.Background(), user))
	return user
}

// CreateProject inserts a project owned by userID.
func CreateProject(t *testing.T, conn *sqlx.DB, userID, name string) *model.Project {
	t.Helper()

	project := &model.Project{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		OrderBy:   model.OrderByCreatedDesc,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repository.NewProjectRepository(conn).Create(context.Background(), project))
	return project
}

// CreateFeedback inserts a feedback entry with the given rating.
func CreateFeedback(t *testing.T, conn *sqlx.DB, projectID string, rating int) *model.Feedback {
	t.Helper()
	return CreateFeedbackAt(t, conn, projectID, rating, time.Now().UTC())
}

// CreateFeedbackAt inserts a feedback entry with a fixed creation time.
func CreateFeedbackAt(t *testing.T, conn *sqlx.DB, projectID string, rating int, createdAt time.Time) *model.Feedback {
	t.Helper()

	feedback := &model.Feedback{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Rating:    rating,
		Content:   "feedback",
		CreatedAt: createdAt.UTC(),
	}
	require.NoError(t, repository.NewFeedbackRepository(conn).Create(context.Background(), feedback))
	return feedback
}
