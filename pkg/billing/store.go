package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore persists the minimal identity records used by guest resolution.
type UserStore interface {
	// GetUserByEmail returns ErrUserNotFound when no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// CreateUserFromGateway creates a user record seeded from a gateway
	// checkout. Email must be unique.
	CreateUserFromGateway(ctx context.Context, params CreateUserParams) (*User, error)

	// UpdateUserByID applies a partial update to an existing user.
	UpdateUserByID(ctx context.Context, id uuid.UUID, params UpdateUserParams) error
}

// CreateUserParams carries the inputs for guest user creation.
type CreateUserParams struct {
	Email             string
	Name              string
	GatewayCustomerID string
}

// UpdateUserParams is a partial user update; nil fields are left untouched.
type UpdateUserParams struct {
	Name              *string
	GatewayCustomerID *string
}

// SubscriptionStore persists subscription rows. All writes are single-row
// upserts or targeted updates keyed by a unique identifier, which bounds the
// blast radius of concurrent duplicate webhook deliveries.
type SubscriptionStore interface {
	// UpdateSubscriptionForWebhook performs the targeted update path: the
	// row was pre-created at checkout initiation and is now linked to its
	// reference and gateway identifiers. Re-applying the same update must
	// leave the row unchanged. Returns ErrSubscriptionNotFound when the
	// local id does not exist.
	UpdateSubscriptionForWebhook(ctx context.Context, params UpdateSubscriptionParams) (*Subscription, error)

	// CreateSubscriptionFromGateway is the create path for flows that could
	// not pre-provision a row. Implementations must check-then-create
	// inside a single transaction and return the existing row instead of
	// inserting a second one: by (ReferenceID, GatewaySubscriptionID) when
	// the gateway id is set, by any non-canceled row for the ReferenceID
	// when it is not (one-time payments).
	CreateSubscriptionFromGateway(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)

	// GetByGatewaySubscriptionID returns ErrSubscriptionNotFound when no
	// local row tracks the gateway subscription.
	GetByGatewaySubscriptionID(ctx context.Context, gatewaySubID string) (*Subscription, error)

	// SyncStatusByGatewayID applies the gateway-reported status and period
	// to the row tracking a gateway subscription. The status value is
	// stored verbatim; the gateway is the ordering authority.
	SyncStatusByGatewayID(ctx context.Context, gatewaySubID string, params SyncStatusParams) (*Subscription, error)
}

// UpdateSubscriptionParams carries the update-path inputs.
type UpdateSubscriptionParams struct {
	SubscriptionID        string // local id, required
	ReferenceID           string
	GatewayCustomerID     string
	GatewaySubscriptionID string // optional, set when known
}

// CreateSubscriptionParams carries the create-path inputs.
type CreateSubscriptionParams struct {
	Plan                  string
	ReferenceID           string
	GatewayCustomerID     string
	GatewaySubscriptionID string // optional for one-time payments
	Status                SubscriptionStatus
	Interval              BillingInterval
	Seats                 int
	PeriodEnd             *time.Time
}

// SyncStatusParams mirrors the fields a customer.subscription.* event can
// change on the local row.
type SyncStatusParams struct {
	Status            SubscriptionStatus
	Plan              string // "" leaves the stored plan unchanged
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
}

// MembershipStore exposes the organization membership read the billing
// context resolver needs. Organization management itself lives outside this
// core.
type MembershipStore interface {
	// PrimaryOrgID returns the id of the user's primary organization, or ""
	// when the user belongs to none.
	PrimaryOrgID(ctx context.Context, userID uuid.UUID) (string, error)
}
