package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/meridian/pkg/billing"
	"github.com/meridianhq/meridian/pkg/pg"
)

const subscriptionColumns = `
	id, plan, reference_id, gateway_customer_id, gateway_subscription_id,
	status, period_start, period_end, cancel_at_period_end, seats,
	created_at, updated_at`

// PGSubscriptionStore implements billing.SubscriptionStore on a pgx pool.
//
// The create path runs check-then-create inside one transaction, backed by
// a partial unique index on (reference_id, gateway_subscription_id), so two
// concurrent deliveries of the same logical checkout cannot produce two
// rows.
type PGSubscriptionStore struct {
	db *pgxpool.Pool
}

func NewPGSubscriptionStore(db *pgxpool.Pool) *PGSubscriptionStore {
	if db == nil {
		panic("billing: pgx pool is required")
	}
	return &PGSubscriptionStore{db: db}
}

func scanSubscription(row pgx.Row) (*billing.Subscription, error) {
	var sub billing.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.Plan,
		&sub.ReferenceID,
		&sub.GatewayCustomerID,
		&sub.GatewaySubscriptionID,
		&sub.Status,
		&sub.PeriodStart,
		&sub.PeriodEnd,
		&sub.CancelAtPeriodEnd,
		&sub.Seats,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PGSubscriptionStore) UpdateSubscriptionForWebhook(ctx context.Context, params billing.UpdateSubscriptionParams) (*billing.Subscription, error) {
	// NULLIF keeps the update idempotent when the gateway subscription id
	// is not yet known: an empty value never clears a stored one. The
	// updated_at guard keeps a byte-identical replay from touching the row.
	query := `
	UPDATE subscriptions
	SET reference_id = $2,
	    gateway_customer_id = $3,
	    gateway_subscription_id = COALESCE(NULLIF($4, ''), gateway_subscription_id),
	    updated_at = CASE
	        WHEN (reference_id, gateway_customer_id, gateway_subscription_id)
	             IS DISTINCT FROM ($2, $3, COALESCE(NULLIF($4, ''), gateway_subscription_id))
	        THEN now()
	        ELSE updated_at
	    END
	WHERE id = $1
	RETURNING` + subscriptionColumns

	sub, err := scanSubscription(s.db.QueryRow(ctx, query,
		params.SubscriptionID,
		params.ReferenceID,
		params.GatewayCustomerID,
		params.GatewaySubscriptionID,
	))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, errors.Join(billing.ErrSubscriptionNotFound, fmt.Errorf("subscription %s", params.SubscriptionID))
		}
		return nil, fmt.Errorf("update subscription for webhook: %w", err)
	}
	return sub, nil
}

func (s *PGSubscriptionStore) CreateSubscriptionFromGateway(ctx context.Context, params billing.CreateSubscriptionParams) (*billing.Subscription, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create subscription: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var existing *billing.Subscription
	if params.GatewaySubscriptionID != "" {
		existing, err = scanSubscription(tx.QueryRow(ctx, `
		SELECT`+subscriptionColumns+`
		FROM subscriptions
		WHERE reference_id = $1 AND gateway_subscription_id = $2
		FOR UPDATE`,
			params.ReferenceID, params.GatewaySubscriptionID,
		))
	} else {
		// One-time payments carry no gateway subscription id, so the
		// partial unique index cannot catch a replayed delivery. Any
		// non-canceled row for the reference is the reconciled state.
		existing, err = scanSubscription(tx.QueryRow(ctx, `
		SELECT`+subscriptionColumns+`
		FROM subscriptions
		WHERE reference_id = $1 AND status <> $2
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`,
			params.ReferenceID, billing.StatusCanceled,
		))
	}
	if err == nil {
		// The logical checkout already produced a row; return it
		// instead of inserting a duplicate.
		return existing, tx.Commit(ctx)
	}
	if !pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("check existing subscription: %w", err)
	}

	now := time.Now().UTC()
	seats := params.Seats
	if seats < 1 {
		seats = 1
	}

	sub, err := scanSubscription(tx.QueryRow(ctx, `
	INSERT INTO subscriptions (
		id, plan, reference_id, gateway_customer_id, gateway_subscription_id,
		status, period_end, cancel_at_period_end, seats, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $9, $9)
	RETURNING`+subscriptionColumns,
		uuid.NewString(),
		params.Plan,
		params.ReferenceID,
		params.GatewayCustomerID,
		params.GatewaySubscriptionID,
		params.Status,
		params.PeriodEnd,
		seats,
		now,
	))
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return nil, errors.Join(billing.ErrDuplicateSubscription, err)
		}
		return nil, fmt.Errorf("insert subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create subscription: %w", err)
	}
	return sub, nil
}

func (s *PGSubscriptionStore) GetByGatewaySubscriptionID(ctx context.Context, gatewaySubID string) (*billing.Subscription, error) {
	if gatewaySubID == "" {
		return nil, billing.ErrSubscriptionNotFound
	}

	query := `
	SELECT` + subscriptionColumns + `
	FROM subscriptions
	WHERE gateway_subscription_id = $1
	`

	sub, err := scanSubscription(s.db.QueryRow(ctx, query, gatewaySubID))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, errors.Join(billing.ErrSubscriptionNotFound, fmt.Errorf("gateway subscription %s", gatewaySubID))
		}
		return nil, fmt.Errorf("query subscription by gateway id: %w", err)
	}
	return sub, nil
}

func (s *PGSubscriptionStore) SyncStatusByGatewayID(ctx context.Context, gatewaySubID string, params billing.SyncStatusParams) (*billing.Subscription, error) {
	if gatewaySubID == "" {
		return nil, billing.ErrSubscriptionNotFound
	}

	query := `
	UPDATE subscriptions
	SET status = $2,
	    plan = COALESCE(NULLIF($3, ''), plan),
	    period_start = COALESCE($4, period_start),
	    period_end = COALESCE($5, period_end),
	    cancel_at_period_end = $6,
	    updated_at = now()
	WHERE gateway_subscription_id = $1
	RETURNING` + subscriptionColumns

	sub, err := scanSubscription(s.db.QueryRow(ctx, query,
		gatewaySubID,
		params.Status,
		params.Plan,
		params.PeriodStart,
		params.PeriodEnd,
		params.CancelAtPeriodEnd,
	))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, errors.Join(billing.ErrSubscriptionNotFound, fmt.Errorf("gateway subscription %s", gatewaySubID))
		}
		return nil, fmt.Errorf("sync subscription status: %w", err)
	}
	return sub, nil
}
