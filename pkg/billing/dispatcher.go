package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Action is what a handler did with an event.
type Action string

const (
	ActionCreated Action = "created" // a subscription row was created
	ActionUpdated Action = "updated" // an existing row was updated
	ActionSkipped Action = "skipped" // delegated to the external auth/billing plugin
	ActionIgnored Action = "ignored" // observed only, no state owned here
	ActionFailed  Action = "failed"  // handler error, logged and acknowledged
)

// Result is the typed outcome of dispatching one event. Handlers return it
// instead of logging ad hoc; the dispatcher decides once, centrally, what
// to log and at which level.
type Result struct {
	EventID        string
	EventType      EventType
	Flow           CheckoutFlow
	Action         Action
	SubscriptionID string
	Err            error
}

// Dispatcher routes verified webhook events to their handlers and isolates
// handler failures: Dispatch returns normally for every event, because a
// propagated error would make the delivery transport retry forever for
// conditions a retry cannot fix. Retries are the gateway's concern.
type Dispatcher struct {
	guests     *GuestResolver
	refs       *ContextResolver
	reconciler *Reconciler
	subs       SubscriptionStore
	catalog    *Catalog
	notifier   ActivationNotifier
	log        *slog.Logger
}

// DispatcherOption configures optional dispatcher collaborators.
type DispatcherOption func(*Dispatcher)

// WithNotifier sets the activation notifier. Without one, activations are
// not announced.
func WithNotifier(n ActivationNotifier) DispatcherOption {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithCatalog sets the plan catalog. With one configured, subscription sync
// resolves the event's price id back to a plan code and refreshes the row's
// plan; without one the stored plan is left as-is.
func WithCatalog(c *Catalog) DispatcherOption {
	return func(d *Dispatcher) {
		if c != nil {
			d.catalog = c
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDispatcher wires the reconciliation pipeline. Panics on nil required
// dependencies to fail fast during initialization.
func NewDispatcher(guests *GuestResolver, refs *ContextResolver, reconciler *Reconciler, subs SubscriptionStore, opts ...DispatcherOption) *Dispatcher {
	if guests == nil {
		panic("billing: GuestResolver is required")
	}
	if refs == nil {
		panic("billing: ContextResolver is required")
	}
	if reconciler == nil {
		panic("billing: Reconciler is required")
	}
	if subs == nil {
		panic("billing: SubscriptionStore is required")
	}

	d := &Dispatcher{
		guests:     guests,
		refs:       refs,
		reconciler: reconciler,
		subs:       subs,
		notifier:   NoopNotifier{},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch processes one event and reports the outcome. It never panics and
// never returns an error: a handler failure becomes a failed Result, logged
// with the event id and type, and the delivery is still acknowledged.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) Result {
	res := d.dispatch(ctx, event)
	d.report(ctx, res)
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, event *Event) (res Result) {
	if event == nil {
		return Result{Action: ActionFailed, Err: errors.New("nil event")}
	}

	res = Result{EventID: event.ID, EventType: event.Type, Action: ActionIgnored}

	defer func() {
		if r := recover(); r != nil {
			res.Action = ActionFailed
			res.Err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	switch event.Type {
	case EventCheckoutCompleted:
		return d.handleCheckoutCompleted(ctx, event)
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return d.handleSubscriptionSync(ctx, event)
	case EventSubscriptionDeleted:
		return d.handleSubscriptionDeleted(ctx, event)
	case EventInvoicePaid, EventPaymentSucceeded:
		// Observed only. The canonical state mutation for these types is
		// owned by the external auth/billing plugin.
		return res
	default:
		return res
	}
}

// report is the single place that turns results into log lines.
func (d *Dispatcher) report(ctx context.Context, res Result) {
	attrs := []any{
		slog.String("event_id", res.EventID),
		slog.String("event_type", string(res.EventType)),
		slog.String("action", string(res.Action)),
	}
	if res.Flow != "" {
		attrs = append(attrs, slog.String("flow", string(res.Flow)))
	}
	if res.SubscriptionID != "" {
		attrs = append(attrs, slog.String("subscription_id", res.SubscriptionID))
	}

	switch res.Action {
	case ActionFailed:
		attrs = append(attrs, slog.Any("error", res.Err))
		d.log.ErrorContext(ctx, "webhook event failed", attrs...)
	case ActionIgnored:
		d.log.DebugContext(ctx, "webhook event ignored", attrs...)
	case ActionSkipped:
		d.log.InfoContext(ctx, "webhook event delegated", attrs...)
	default:
		d.log.InfoContext(ctx, "webhook event reconciled", attrs...)
	}
}

func (d *Dispatcher) handleCheckoutCompleted(ctx context.Context, event *Event) Result {
	res := Result{EventID: event.ID, EventType: event.Type}

	var session CheckoutSession
	if err := decodePayload(event, &session); err != nil {
		res.Action = ActionFailed
		res.Err = err
		return res
	}

	md := MetadataFromMap(session.Metadata)
	res.Flow = ClassifyCheckout(md)

	switch res.Flow {
	case FlowGuest:
		return d.reconcileGuest(ctx, res, session, md)
	case FlowInstallment, FlowCustom:
		return d.reconcileAuthenticated(ctx, res, session, md)
	default:
		// Native checkouts are reconciled by the external plugin through
		// its own referenceId-keyed flow.
		res.Action = ActionSkipped
		return res
	}
}

// reconcileGuest resolves identity first, then files the subscription under
// the reference id the resolved user maps to.
func (d *Dispatcher) reconcileGuest(ctx context.Context, res Result, session CheckoutSession, md CheckoutMetadata) Result {
	emailAddr := md.CustomerEmail
	if emailAddr == "" {
		emailAddr = session.CustomerDetails.Email
	}

	identity, err := d.guests.Resolve(ctx, GuestIdentity{
		Email:             emailAddr,
		Name:              session.CustomerDetails.Name,
		GatewayCustomerID: session.Customer,
	})
	if err != nil {
		res.Action = ActionFailed
		res.Err = err
		return res
	}

	referenceID, err := d.refs.ResolveReferenceID(ctx, identity.UserID)
	if err != nil {
		res.Action = ActionFailed
		res.Err = err
		return res
	}

	sub, err := d.reconciler.Reconcile(ctx, ReconcileParams{
		SubscriptionID:        md.SubscriptionID,
		ReferenceID:           referenceID,
		GatewayCustomerID:     identity.GatewayCustomerID,
		GatewaySubscriptionID: session.Subscription,
		Plan:                  md.Plan,
		Seats:                 md.SeatsOrDefault(),
		Interval:              md.BillingInterval(),
	})
	if err != nil {
		res.Action = ActionFailed
		res.Err = err
		return res
	}

	res.SubscriptionID = sub.ID
	if md.SubscriptionID != "" {
		res.Action = ActionUpdated
	} else {
		res.Action = ActionCreated
	}

	d.notifyActivation(ctx, emailAddr, sub.Plan)
	return res
}

// reconcileAuthenticated handles installment and custom checkouts that were
// initiated by a signed-in user. Their metadata carries the local reference
// id directly; when the pre-created subscription id is present as well the
// session is the authenticated continuation of checkout initiation.
func (d *Dispatcher) reconcileAuthenticated(ctx context.Context, res Result, session CheckoutSession, md CheckoutMetadata) Result {
	if md.ReferenceID == "" {
		res.Action = ActionFailed
		res.Err = errors.Join(ErrMissingRequiredField, errors.New("checkout without reference id"))
		return res
	}
	if session.Customer == "" {
		res.Action = ActionFailed
		res.Err = errors.Join(ErrMissingRequiredField, errors.New("checkout without gateway customer"))
		return res
	}

	if md.SubscriptionID != "" {
		res.Flow = FlowAuthenticated
	}

	sub, err := d.reconciler.Reconcile(ctx, ReconcileParams{
		SubscriptionID:        md.SubscriptionID,
		ReferenceID:           md.ReferenceID,
		GatewayCustomerID:     session.Customer,
		GatewaySubscriptionID: session.Subscription,
		Plan:                  md.Plan,
		Seats:                 md.SeatsOrDefault(),
		Interval:              md.BillingInterval(),
	})
	if err != nil {
		res.Action = ActionFailed
		res.Err = err
		return res
	}

	res.SubscriptionID = sub.ID
	if md.SubscriptionID != "" {
		res.Action = ActionUpdated
	} else {
		res.Action = ActionCreated
	}
	return res
}

// handleSubscriptionSync applies customer.subscription.created/updated to a
// local row when one tracks the gateway subscription. Without a local row
// the canonical mutation belongs to the external plugin.
func (d *Dispatcher) handleSubscriptionSync(ctx context.Context, event *Event) Result {
	res := Result{EventID: event.ID, EventType: event.Type}

	var payload SubscriptionPayload
	if err := decodePayload(event, &payload); err != nil {
		res.Action = ActionFailed
		res.Err = err
		return res
	}
	if payload.ID == "" {
		res.Action = ActionFailed
		res.Err = errors.Join(ErrMissingRequiredField, errors.New("subscription event without id"))
		return res
	}

	if _, err := d.subs.GetByGatewaySubscriptionID(ctx, payload.ID); err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			res.Action = ActionSkipped
			return res
		}
		res.Action = ActionFailed
		res.Err = err
		return res
	}

	params := syncParamsFromPayload(&payload, "")
	if d.catalog != nil {
		if priceID := payload.PriceID(); priceID != "" {
			if code, ok := d.catalog.PlanByPriceID(priceID); ok {
				params.Plan = code
			}
		}
	}

	sub, err := d.subs.SyncStatusByGatewayID(ctx, payload.ID, params)
	if err != nil {
		res.Action = ActionFailed
		res.Err = err
		return res
	}

	res.Action = ActionUpdated
	res.SubscriptionID = sub.ID
	return res
}

// handleSubscriptionDeleted marks the local row canceled. Cancellation is a
// status transition; the row is never deleted.
func (d *Dispatcher) handleSubscriptionDeleted(ctx context.Context, event *Event) Result {
	res := Result{EventID: event.ID, EventType: event.Type}

	var payload SubscriptionPayload
	if err := decodePayload(event, &payload); err != nil {
		res.Action = ActionFailed
		res.Err = err
		return res
	}

	if _, err := d.subs.GetByGatewaySubscriptionID(ctx, payload.ID); err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			res.Action = ActionSkipped
			return res
		}
		res.Action = ActionFailed
		res.Err = err
		return res
	}

	sub, err := d.subs.SyncStatusByGatewayID(ctx, payload.ID, syncParamsFromPayload(&payload, StatusCanceled))
	if err != nil {
		res.Action = ActionFailed
		res.Err = err
		return res
	}

	res.Action = ActionUpdated
	res.SubscriptionID = sub.ID
	return res
}

// syncParamsFromPayload maps a subscription payload onto store parameters.
// The gateway-reported status is stored verbatim unless an override (the
// deleted handler forces canceled) is given.
func syncParamsFromPayload(p *SubscriptionPayload, override SubscriptionStatus) SyncStatusParams {
	status := SubscriptionStatus(p.Status)
	if override != "" {
		status = override
	}

	params := SyncStatusParams{
		Status:            status,
		CancelAtPeriodEnd: p.CancelAtPeriodEnd,
	}
	if start, end := p.Period(); start > 0 || end > 0 {
		if start > 0 {
			t := time.Unix(start, 0).UTC()
			params.PeriodStart = &t
		}
		if end > 0 {
			t := time.Unix(end, 0).UTC()
			params.PeriodEnd = &t
		}
	}
	return params
}

// notifyActivation fires the receipt notification. Failures here never
// affect the primary operation; they are logged and dropped.
func (d *Dispatcher) notifyActivation(ctx context.Context, emailAddr, plan string) {
	if d.notifier == nil || emailAddr == "" {
		return
	}
	if err := d.notifier.SubscriptionActivated(ctx, ActivationNotice{Email: emailAddr, Plan: plan}); err != nil {
		d.log.WarnContext(ctx, "activation notification failed",
			slog.String("email", emailAddr),
			slog.Any("error", err),
		)
	}
}
