package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/invite"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

func newTestInviteService(t *testing.T, events *recordingEvents) (*InviteService, *invite.Signer) {
	t.Helper()
	signer, err := invite.NewSigner([]byte("0123456789abcdef0123456789abcdef"), invite.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return NewInviteService(signer, 30*24*time.Hour, events, logger.Discard()), signer
}

func TestInviteIssue_NormalizesSlug(t *testing.T) {
	svc, signer := newTestInviteService(t, &recordingEvents{})

	inv, err := svc.Issue(context.Background(), "acct-1", "prod-1", "  Linen Shirt ")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(30*24*time.Hour).Unix(), inv.ExpiresAt.Unix())

	payload, err := signer.Verify(inv.Token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", payload.AccountID)
	assert.Equal(t, "prod-1", payload.ProductID)
	assert.Equal(t, "linen-shirt", payload.Slug)
}

func TestInviteIssue_InvalidInput(t *testing.T) {
	svc, _ := newTestInviteService(t, &recordingEvents{})

	tests := []struct {
		name, account, product, slug string
	}{
		{"missing account", "", "prod-1", "shirt"},
		{"missing product", "acct-1", "", "shirt"},
		{"slug without letters", "acct-1", "prod-1", "!!!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Issue(context.Background(), tt.account, tt.product, tt.slug)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestIssueForOrder_Publishes(t *testing.T) {
	events := &recordingEvents{}
	svc, _ := newTestInviteService(t, events)

	_, err := svc.IssueForOrder(context.Background(), "order-9", "acct-1", "prod-1", "mug")
	require.NoError(t, err)
	assert.Equal(t, []string{"order-9:prod-1"}, events.invites)
}

func TestIssueForOrder_PublishFailure(t *testing.T) {
	svc, _ := newTestInviteService(t, &recordingEvents{err: errors.New("broker down")})

	_, err := svc.IssueForOrder(context.Background(), "order-9", "acct-1", "prod-1", "mug")
	assert.ErrorContains(t, err, "broker down")
}
