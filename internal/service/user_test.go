package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utellme/utellme/internal/apperr"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/testutil"
)

func TestUpdateName(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")

	updated, err := s.users.UpdateName(ctx, user.ID, "  Ada Lovelace ")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)

	_, err = s.users.UpdateName(ctx, user.ID, "")
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))
}

func TestSubscriptionStatus(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")

	info, err := s.users.SubscriptionStatus(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusInactive, info.Status)
	assert.False(t, info.IsPro)
	assert.Empty(t, info.Features)

	require.NoError(t, s.subscription.SetStatus(ctx, user.ID, model.SubscriptionStatusActive))

	info, err = s.users.SubscriptionStatus(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, info.IsPro)
	assert.ElementsMatch(t, model.ProFeatures, info.Features)
}

func TestUploadImageWithoutStorage(t *testing.T) {
	s := newTestServices(t)
	user := testutil.CreateUser(t, s.db, "owner@example.com")

	_, err := s.users.UploadImage(context.Background(), user.ID, nil)
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))
}

func TestDeleteAccountCascades(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")
	other := testutil.CreateUser(t, s.db, "other@example.com")

	for _, name := range []string{"One", "Two"} {
		project := testutil.CreateProject(t, s.db, user.ID, name)
		for range 2 {
			testutil.CreateFeedback(t, s.db, project.ID, 4)
		}
	}
	testutil.CreateFeedback(t, s.db, testutil.CreateProject(t, s.db, user.ID, "Three").ID, 5)
	kept := testutil.CreateProject(t, s.db, other.ID, "Kept")
	testutil.CreateFeedback(t, s.db, kept.ID, 1)

	_, _, err := s.auth.StartSession(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, s.subscription.AttachCustomer(ctx, user.ID, "cus_123"))

	require.NoError(t, s.users.DeleteAccount(ctx, user.ID))

	assert.Equal(t, 0, countRows(t, s.db, `SELECT COUNT(*) FROM users WHERE id = $1`, user.ID))
	assert.Equal(t, 0, countRows(t, s.db, `SELECT COUNT(*) FROM projects WHERE user_id = $1`, user.ID))
	assert.Equal(t, 0, countRows(t, s.db, `SELECT COUNT(*) FROM sessions WHERE user_id = $1`, user.ID))
	assert.Equal(t, 1, countRows(t, s.db, `SELECT COUNT(*) FROM projects`))
	assert.Equal(t, 1, countRows(t, s.db, `SELECT COUNT(*) FROM feedback`))
	assert.Equal(t, []string{"cus_123"}, s.billing.calls())

	err = s.users.DeleteAccount(ctx, user.ID)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
	assert.Len(t, s.billing.calls(), 1)
}

func TestDeleteAccountWithoutBillingCustomer(t *testing.T) {
	s := newTestServices(t)
	user := testutil.CreateUser(t, s.db, "owner@example.com")

	require.NoError(t, s.users.DeleteAccount(context.Background(), user.ID))
	assert.Empty(t, s.billing.calls())
}

func TestDeleteAccountIgnoresBillingFailure(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")
	require.NoError(t, s.subscription.AttachCustomer(ctx, user.ID, "cus_123"))
	s.billing.err = errors.New("provider down")

	require.NoError(t, s.users.DeleteAccount(ctx, user.ID))
	assert.Equal(t, 0, countRows(t, s.db, `SELECT COUNT(*) FROM users WHERE id = $1`, user.ID))
}
