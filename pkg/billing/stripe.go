package billing

import (
	"context"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeConfig holds configuration for the Stripe gateway adapter.
type StripeConfig struct {
	APIKey        string `env:"STRIPE_API_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

// StripeGateway implements Gateway on top of the official Stripe SDK.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway creates a Stripe-backed gateway client. The client is
// bound to process lifetime and passed into the reconciliation components
// at startup.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &StripeGateway{api: client.New(cfg.APIKey, nil)}, nil
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	cp := &stripe.CustomerParams{}
	cp.Context = ctx
	if params.Email != "" {
		cp.Email = stripe.String(params.Email)
	}
	if params.Name != "" {
		cp.Name = stripe.String(params.Name)
	}
	for k, v := range params.Metadata {
		cp.AddMetadata(k, v)
	}

	c, err := g.api.Customers.New(cp)
	if err != nil {
		return nil, errors.Join(ErrGatewayUnavailable, fmt.Errorf("create customer: %w", err))
	}
	return &Customer{ID: c.ID, Email: c.Email}, nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	sp := &stripe.SubscriptionParams{}
	sp.Context = ctx

	s, err := g.api.Subscriptions.Get(id, sp)
	if err != nil {
		return nil, errors.Join(ErrGatewayUnavailable, fmt.Errorf("retrieve subscription %s: %w", id, err))
	}

	sub := &GatewaySubscription{
		ID:                s.ID,
		Status:            SubscriptionStatus(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Quantity:          1,
	}
	if s.Customer != nil {
		sub.CustomerID = s.Customer.ID
	}
	// Billing periods live on the subscription items in current API versions.
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		sub.PeriodStart = item.CurrentPeriodStart
		sub.PeriodEnd = item.CurrentPeriodEnd
		if item.Quantity > 0 {
			sub.Quantity = int(item.Quantity)
		}
		if item.Price != nil {
			sub.PriceID = item.Price.ID
		}
	}
	return sub, nil
}

func (g *StripeGateway) GetPrice(ctx context.Context, id string) (*Price, error) {
	pp := &stripe.PriceParams{}
	pp.Context = ctx

	p, err := g.api.Prices.Get(id, pp)
	if err != nil {
		return nil, errors.Join(ErrGatewayUnavailable, fmt.Errorf("retrieve price %s: %w", id, err))
	}

	price := &Price{
		ID:         p.ID,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
		Interval:   IntervalMonthly,
	}
	if p.Recurring != nil && p.Recurring.Interval == stripe.PriceRecurringIntervalYear {
		price.Interval = IntervalYearly
	}
	return price, nil
}

func (g *StripeGateway) GetCoupon(ctx context.Context, id string) (*Coupon, error) {
	cp := &stripe.CouponParams{}
	cp.Context = ctx

	c, err := g.api.Coupons.Get(id, cp)
	if err != nil {
		return nil, errors.Join(ErrGatewayUnavailable, fmt.Errorf("retrieve coupon %s: %w", id, err))
	}
	return &Coupon{
		ID:         c.ID,
		Name:       c.Name,
		PercentOff: c.PercentOff,
		AmountOff:  c.AmountOff,
		Valid:      c.Valid,
	}, nil
}
