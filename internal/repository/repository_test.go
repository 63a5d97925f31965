package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/repository"
	"github.com/utellme/utellme/internal/testutil"
)

func TestTokenConsumeOnce(t *testing.T) {
	conn := testutil.NewDB(t)
	tokens := repository.NewTokenRepository(conn)
	ctx := context.Background()

	require.NoError(t, tokens.Create(ctx, &model.VerificationToken{
		Identifier: "a@example.com",
		Token:      "tok",
		ExpiresAt:  time.Now().UTC().Add(time.Minute),
	}))

	var wg sync.WaitGroup
	results := make(chan error, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tokens.Consume(ctx, "tok")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, repository.ErrTokenNotFound)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestTokenConsumeExpired(t *testing.T) {
	conn := testutil.NewDB(t)
	tokens := repository.NewTokenRepository(conn)
	ctx := context.Background()

	require.NoError(t, tokens.Create(ctx, &model.VerificationToken{
		Identifier: "a@example.com",
		Token:      "old",
		ExpiresAt:  time.Now().UTC().Add(-time.Minute),
	}))

	_, err := tokens.Consume(ctx, "old")
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)

	removed, err := tokens.CleanupExpired(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestSessionValidAndExpired(t *testing.T) {
	conn := testutil.NewDB(t)
	user := testutil.CreateUser(t, conn, "a@example.com")
	sessions := repository.NewSessionRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	live := &model.Session{ID: "live", UserID: user.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	dead := &model.Session{ID: "dead", UserID: user.ID, ExpiresAt: now.Add(-time.Hour), CreatedAt: now}
	require.NoError(t, sessions.Create(ctx, live))
	require.NoError(t, sessions.Create(ctx, dead))

	got, err := sessions.Valid(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)

	_, err = sessions.Valid(ctx, "dead")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)

	removed, err := sessions.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestFeedbackOrdering(t *testing.T) {
	conn := testutil.NewDB(t)
	user := testutil.CreateUser(t, conn, "a@example.com")
	project := testutil.CreateProject(t, conn, user.ID, "Shop")

	// Created in index order, 300ms apart
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := map[string]int{}
	for i, rating := range []int{3, 5, 3, 5, 1} {
		f := testutil.CreateFeedbackAt(t, conn, project.ID, rating, base.Add(time.Duration(i)*300*time.Millisecond))
		ids[f.ID] = i
	}
	feedback := repository.NewFeedbackRepository(conn)

	tests := []struct {
		orderBy model.OrderBy
		want    []int
	}{
		{model.OrderByCreatedDesc, []int{4, 3, 2, 1, 0}},
		{model.OrderByCreatedAsc, []int{0, 1, 2, 3, 4}},
		{model.OrderByRatingDesc, []int{3, 1, 2, 0, 4}},
		{model.OrderByRatingAsc, []int{4, 2, 0, 3, 1}},
	}

	for _, tt := range tests {
		t.Run(string(tt.orderBy), func(t *testing.T) {
			list, err := feedback.ByProject(context.Background(), user.ID, project.ID, tt.orderBy)
			require.NoError(t, err)

			order := make([]int, 0, len(list))
			for _, f := range list {
				order = append(order, ids[f.ID])
			}
			assert.Equal(t, tt.want, order)
		})
	}
}

func TestProjectUpdateScopedToOwner(t *testing.T) {
	conn := testutil.NewDB(t)
	owner := testutil.CreateUser(t, conn, "a@example.com")
	other := testutil.CreateUser(t, conn, "b@example.com")
	project := testutil.CreateProject(t, conn, owner.ID, "Shop")
	projects := repository.NewProjectRepository(conn)
	ctx := context.Background()

	count, err := projects.Update(ctx, other.ID, project.ID, model.ProjectChanges{Name: model.Set("x")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = projects.Update(ctx, owner.ID, project.ID, model.ProjectChanges{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = projects.Delete(ctx, other.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestUserDuplicateEmail(t *testing.T) {
	conn := testutil.NewDB(t)
	testutil.CreateUser(t, conn, "a@example.com")

	err := repository.NewUserRepository(conn).Create(context.Background(), &model.User{
		ID:                 "second",
		Email:              "a@example.com",
		SubscriptionStatus: model.SubscriptionStatusInactive,
		CreatedAt:          time.Now().UTC(),
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}
