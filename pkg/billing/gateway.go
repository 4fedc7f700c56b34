package billing

import "context"

// Gateway is the thin adapter over the external billing API. It is
// constructed once at process start and injected into the reconciliation
// components, which keeps tests free of global client state.
//
// Implementations use the official provider SDK and keep provider quirks
// (metadata shapes, id prefixes) behind this interface.
type Gateway interface {
	// CreateCustomer creates a customer record at the gateway. Duplicate
	// customers for the same email are acceptable; the gateway is the
	// source of truth and de-duplication is out of scope here.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// GetSubscription retrieves the authoritative subscription state.
	GetSubscription(ctx context.Context, id string) (*GatewaySubscription, error)

	// GetPrice retrieves a price object. Used on read paths only; the
	// webhook hot path derives intervals from event metadata instead.
	GetPrice(ctx context.Context, id string) (*Price, error)

	// GetCoupon retrieves a coupon by id.
	GetCoupon(ctx context.Context, id string) (*Coupon, error)
}

// CreateCustomerParams carries the inputs for customer creation.
// Metadata records provenance, e.g. managed_by=webhook_guest_checkout for
// customers minted while resolving a guest identity.
type CreateCustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// Customer is the gateway's customer record.
type Customer struct {
	ID    string
	Email string
}

// GatewaySubscription is the gateway's view of a subscription.
type GatewaySubscription struct {
	ID                string
	CustomerID        string
	Status            SubscriptionStatus
	PriceID           string
	CancelAtPeriodEnd bool
	PeriodStart       int64 // unix seconds
	PeriodEnd         int64 // unix seconds
	Quantity          int
}

// Price is the gateway's price object.
type Price struct {
	ID         string
	Interval   BillingInterval
	UnitAmount int64
	Currency   string
}

// Coupon is the gateway's coupon object.
type Coupon struct {
	ID         string
	Name       string
	PercentOff float64
	AmountOff  int64
	Valid      bool
}
