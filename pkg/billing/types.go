package billing

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies an inbound gateway webhook event.
// Unrecognized gateway types are carried through verbatim so the dispatcher
// can log them instead of dropping information on the floor.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventSubscriptionCreated EventType = "customer.subscription.created"
	EventSubscriptionUpdated EventType = "customer.subscription.updated"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
	EventInvoicePaid         EventType = "invoice.paid"
	EventPaymentSucceeded    EventType = "payment_intent.succeeded"
)

// CheckoutFlow classifies how a completed checkout session reached us.
type CheckoutFlow string

const (
	// FlowAuthenticated is a checkout completed by a signed-in user whose
	// subscription row was pre-created when checkout was initiated.
	FlowAuthenticated CheckoutFlow = "authenticated"
	// FlowGuest is a checkout completed without a local account.
	FlowGuest CheckoutFlow = "guest"
	// FlowInstallment is a deferred/installment checkout created through a
	// payment schedule.
	FlowInstallment CheckoutFlow = "installment"
	// FlowCustom is a checkout created through the custom checkout surface.
	FlowCustom CheckoutFlow = "custom"
	// FlowNative is handled entirely by the external auth/billing plugin;
	// this core takes no action for it.
	FlowNative CheckoutFlow = "native"
)

// SubscriptionStatus is the subscription state as reported by the gateway.
// The gateway is the ordering authority: statuses outside the known set are
// stored verbatim rather than re-derived locally.
type SubscriptionStatus string

const (
	StatusIncomplete SubscriptionStatus = "incomplete"
	StatusTrialing   SubscriptionStatus = "trialing"
	StatusActive     SubscriptionStatus = "active"
	StatusCanceled   SubscriptionStatus = "canceled"
)

// BillingInterval is the billing frequency derived from checkout metadata.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalYearly  BillingInterval = "yearly"
)

// BillingMode decides whether subscriptions are keyed by user id or by the
// user's organization id.
type BillingMode string

const (
	ModeUser         BillingMode = "user"
	ModeOrganization BillingMode = "organization"
)

// Subscription is the single local billing record for a reference entity.
// At most one row is the active billing record per ReferenceID; rows are
// never hard-deleted, cancellation is a status transition.
type Subscription struct {
	ID                    string
	Plan                  string
	ReferenceID           string
	GatewayCustomerID     string
	GatewaySubscriptionID string // empty until payment is confirmed
	Status                SubscriptionStatus
	PeriodStart           *time.Time
	PeriodEnd             *time.Time
	CancelAtPeriodEnd     bool
	Seats                 int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsActive reports whether the subscription currently grants access.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// User is the minimal identity record created on demand for guest checkouts.
// Email is the natural key; the row is later claimed by a full account
// outside this core.
type User struct {
	ID                uuid.UUID
	Email             string
	Name              string
	GatewayCustomerID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
