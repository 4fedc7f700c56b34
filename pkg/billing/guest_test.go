package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/pkg/billing"
	store "github.com/meridianhq/meridian/svc/billing"
)

func TestGuestResolverCreatesUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	gateway := new(mockGateway)
	users := store.NewMemoryUserStore()
	resolver := billing.NewGuestResolver(gateway, users, discardLogger())

	resolved, err := resolver.Resolve(ctx, billing.GuestIdentity{
		Email:             "a@b.com",
		Name:              "Ada",
		GatewayCustomerID: "cus_123",
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_123", resolved.GatewayCustomerID)
	assert.Equal(t, 1, users.Len())

	u, err := users.GetUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, resolved.UserID, u.ID)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, "cus_123", u.GatewayCustomerID)

	// No customer id on the event means no gateway call either.
	gateway.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestGuestResolverIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	gateway := new(mockGateway)
	users := store.NewMemoryUserStore()
	resolver := billing.NewGuestResolver(gateway, users, discardLogger())

	identity := billing.GuestIdentity{Email: "a@b.com", GatewayCustomerID: "cus_123"}

	first, err := resolver.Resolve(ctx, identity)
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, identity)
	require.NoError(t, err)

	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, first.GatewayCustomerID, second.GatewayCustomerID)
	assert.Equal(t, 1, users.Len())
}

func TestGuestResolverDriftCorrection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	gateway := new(mockGateway)
	users := store.NewMemoryUserStore()
	resolver := billing.NewGuestResolver(gateway, users, discardLogger())

	_, err := users.CreateUserFromGateway(ctx, billing.CreateUserParams{
		Email:             "a@b.com",
		Name:              "Ada",
		GatewayCustomerID: "cus_old",
	})
	require.NoError(t, err)

	resolved, err := resolver.Resolve(ctx, billing.GuestIdentity{
		Email:             "a@b.com",
		GatewayCustomerID: "cus_new",
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_new", resolved.GatewayCustomerID)
	assert.Equal(t, 1, users.Len())

	u, err := users.GetUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "cus_new", u.GatewayCustomerID)
}

func TestGuestResolverCreatesGatewayCustomer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	gateway := new(mockGateway)
	gateway.On("CreateCustomer", mock.Anything, mock.MatchedBy(func(params billing.CreateCustomerParams) bool {
		return params.Email == "a@b.com" &&
			params.Metadata["managed_by"] == "webhook_guest_checkout"
	})).Return(&billing.Customer{ID: "cus_new", Email: "a@b.com"}, nil).Once()

	users := store.NewMemoryUserStore()
	resolver := billing.NewGuestResolver(gateway, users, discardLogger())

	resolved, err := resolver.Resolve(ctx, billing.GuestIdentity{Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, "cus_new", resolved.GatewayCustomerID)

	u, err := users.GetUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "cus_new", u.GatewayCustomerID)

	gateway.AssertExpectations(t)
}

func TestGuestResolverMissingEmail(t *testing.T) {
	t.Parallel()

	gateway := new(mockGateway)
	users := store.NewMemoryUserStore()
	resolver := billing.NewGuestResolver(gateway, users, discardLogger())

	_, err := resolver.Resolve(context.Background(), billing.GuestIdentity{GatewayCustomerID: "cus_1"})
	require.ErrorIs(t, err, billing.ErrMissingRequiredField)
	assert.Equal(t, 0, users.Len())
	gateway.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestGuestResolverDisplayNameFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	gateway := new(mockGateway)
	users := store.NewMemoryUserStore()
	resolver := billing.NewGuestResolver(gateway, users, discardLogger())

	_, err := resolver.Resolve(ctx, billing.GuestIdentity{
		Email:             "grace@example.org",
		GatewayCustomerID: "cus_1",
	})
	require.NoError(t, err)

	u, err := users.GetUserByEmail(ctx, "grace@example.org")
	require.NoError(t, err)
	assert.Equal(t, "grace", u.Name)
}

func TestGuestResolverNormalizesEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	gateway := new(mockGateway)
	users := store.NewMemoryUserStore()
	resolver := billing.NewGuestResolver(gateway, users, discardLogger())

	first, err := resolver.Resolve(ctx, billing.GuestIdentity{Email: "A@B.com", GatewayCustomerID: "cus_1"})
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, billing.GuestIdentity{Email: "a@b.com ", GatewayCustomerID: "cus_1"})
	require.NoError(t, err)

	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, 1, users.Len())
}
