package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Reconciler is the state-sync engine: given a webhook event's identifiers
// and a resolved reference id, it creates or updates the single local
// subscription row for that reference, staying idempotent across repeated
// deliveries.
//
// The reconciler raises persistence errors instead of swallowing them; the
// flow handler above it owns the decision to log-and-acknowledge, because a
// user without a linked subscription is recoverable while retry-induced
// duplicate subscriptions are not.
type Reconciler struct {
	subs SubscriptionStore
	log  *slog.Logger
}

// NewReconciler creates a reconciler over the given subscription store.
func NewReconciler(subs SubscriptionStore, log *slog.Logger) *Reconciler {
	if subs == nil {
		panic("billing: SubscriptionStore is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{subs: subs, log: log}
}

// ReconcileParams are the inputs of one reconciliation.
// SubscriptionID selects the update path when set; otherwise the create
// path runs. Callers should prefer carrying the local id whenever checkout
// initiation could pre-provision a row.
type ReconcileParams struct {
	SubscriptionID        string // local subscription id, "" selects the create path
	ReferenceID           string
	GatewayCustomerID     string
	GatewaySubscriptionID string
	Plan                  string
	Seats                 int
	Interval              BillingInterval
	PeriodEnd             *time.Time
}

// Reconcile applies the event to the local subscription state and returns
// the resulting row.
//
// Update path: a targeted update of the pre-created row. Naturally
// idempotent, re-applying the same update produces the same row state.
//
// Create path: reserved for guest/installment flows where checkout
// initiation could not pre-provision a row tied to an unauthenticated user.
// The store checks for an existing row inside one transaction before
// inserting: by (referenceId, gatewaySubscriptionId) when the gateway id is
// known, by any non-canceled row for the reference when it is not.
func (r *Reconciler) Reconcile(ctx context.Context, params ReconcileParams) (*Subscription, error) {
	if params.ReferenceID == "" {
		return nil, ErrMissingReferenceID
	}
	if params.GatewayCustomerID == "" {
		return nil, ErrMissingGatewayCustomer
	}

	if params.SubscriptionID != "" {
		sub, err := r.subs.UpdateSubscriptionForWebhook(ctx, UpdateSubscriptionParams{
			SubscriptionID:        params.SubscriptionID,
			ReferenceID:           params.ReferenceID,
			GatewayCustomerID:     params.GatewayCustomerID,
			GatewaySubscriptionID: params.GatewaySubscriptionID,
		})
		if err != nil {
			return nil, fmt.Errorf("update subscription %s: %w", params.SubscriptionID, err)
		}
		return sub, nil
	}

	seats := params.Seats
	if seats < 1 {
		seats = 1
	}
	interval := params.Interval
	if interval == "" {
		interval = IntervalMonthly
	}

	sub, err := r.subs.CreateSubscriptionFromGateway(ctx, CreateSubscriptionParams{
		Plan:                  params.Plan,
		ReferenceID:           params.ReferenceID,
		GatewayCustomerID:     params.GatewayCustomerID,
		GatewaySubscriptionID: params.GatewaySubscriptionID,
		Status:                StatusActive,
		Interval:              interval,
		Seats:                 seats,
		PeriodEnd:             params.PeriodEnd,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateSubscription) {
			// A concurrent delivery of the same logical checkout won the
			// race. The existing row is the reconciled state.
			if params.GatewaySubscriptionID != "" {
				if existing, getErr := r.subs.GetByGatewaySubscriptionID(ctx, params.GatewaySubscriptionID); getErr == nil {
					return existing, nil
				}
			}
		}
		return nil, fmt.Errorf("create subscription for reference %s: %w", params.ReferenceID, err)
	}
	return sub, nil
}
