package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/testutil"
)

func TestSetStatusByCustomer(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")

	require.NoError(t, s.subscription.AttachCustomer(ctx, user.ID, "cus_1"))
	require.NoError(t, s.subscription.SetStatusByCustomer(ctx, "cus_1", model.SubscriptionStatusPastDue))

	got, err := s.users.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusPastDue, got.SubscriptionStatus)
	assert.False(t, got.HasPro())
}

func TestSetStatusByUnknownCustomer(t *testing.T) {
	s := newTestServices(t)

	err := s.subscription.SetStatusByCustomer(context.Background(), "cus_missing", model.SubscriptionStatusActive)
	assert.ErrorIs(t, err, ErrUnknownCustomer)
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	s := newTestServices(t)
	user := testutil.CreateUser(t, s.db, "owner@example.com")

	err := s.subscription.SetStatus(context.Background(), user.ID, model.SubscriptionStatus("trialing"))
	assert.Error(t, err)
}
