package billing_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/pkg/billing"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCustomer(ctx context.Context, params billing.CreateCustomerParams) (*billing.Customer, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Customer), args.Error(1)
}

func (m *mockGateway) GetSubscription(ctx context.Context, id string) (*billing.GatewaySubscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.GatewaySubscription), args.Error(1)
}

func (m *mockGateway) GetPrice(ctx context.Context, id string) (*billing.Price, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Price), args.Error(1)
}

func (m *mockGateway) GetCoupon(ctx context.Context, id string) (*billing.Coupon, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Coupon), args.Error(1)
}

type mockSubscriptionStore struct {
	mock.Mock
}

func (m *mockSubscriptionStore) UpdateSubscriptionForWebhook(ctx context.Context, params billing.UpdateSubscriptionParams) (*billing.Subscription, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *mockSubscriptionStore) CreateSubscriptionFromGateway(ctx context.Context, params billing.CreateSubscriptionParams) (*billing.Subscription, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *mockSubscriptionStore) GetByGatewaySubscriptionID(ctx context.Context, gatewaySubID string) (*billing.Subscription, error) {
	args := m.Called(ctx, gatewaySubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *mockSubscriptionStore) SyncStatusByGatewayID(ctx context.Context, gatewaySubID string, params billing.SyncStatusParams) (*billing.Subscription, error) {
	args := m.Called(ctx, gatewaySubID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

type recordingNotifier struct {
	notices []billing.ActivationNotice
	err     error
}

func (n *recordingNotifier) SubscriptionActivated(_ context.Context, notice billing.ActivationNotice) error {
	n.notices = append(n.notices, notice)
	return n.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func checkoutEvent(t *testing.T, id string, session billing.CheckoutSession) *billing.Event {
	t.Helper()
	data, err := json.Marshal(session)
	require.NoError(t, err)
	return &billing.Event{ID: id, Type: billing.EventCheckoutCompleted, Data: data}
}

func subscriptionEvent(t *testing.T, id string, typ billing.EventType, payload map[string]any) *billing.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &billing.Event{ID: id, Type: typ, Data: data}
}
