// Package billing reconciles asynchronous payment-gateway webhook events
// against locally stored subscription and user records.
//
// Webhook delivery is at-least-once and unordered: the same logical
// transition can arrive multiple times or out of sequence, and the payer may
// not yet have a local account (guest checkout). The package makes every
// handler's effect a function of current authoritative state - upserts keyed
// by stable identifiers - instead of a sequential state machine that assumes
// a prior state, so replays and reordering converge on the same rows.
//
// # Architecture
//
// Processing runs as a linear pipeline per event:
//
//	Event -> Dispatcher -> ClassifyCheckout -> GuestResolver (if guest)
//	      -> ContextResolver -> Reconciler -> subscription row
//
//   - Dispatcher: routes events by type and contains handler failures so one
//     bad event cannot block acknowledgment of the delivery.
//   - ClassifyCheckout: pure classification of a checkout session's metadata
//     into guest / installment / custom / native.
//   - GuestResolver: idempotently ensures a local user and gateway customer
//     exist for an email seen only through guest checkout.
//   - ContextResolver: maps a user id to the reference id (user or
//     organization) subscriptions are keyed under.
//   - Reconciler: creates or updates the single subscription row per
//     reference id, preferring the naturally idempotent update path.
//   - Gateway: injected adapter over the external billing API.
//
// # Error policy
//
// Handlers return typed results; the Dispatcher decides centrally what to
// log and always acknowledges. Malformed events (ErrMissingRequiredField)
// are permanent failures - redelivery cannot fix them. Persistence failures
// are logged and acknowledged too, because an unlinked subscription is
// recoverable by a later event while retry storms are not.
//
// # Usage
//
//	gateway, _ := billing.NewStripeGateway(stripeCfg)
//	guests := billing.NewGuestResolver(gateway, userStore, log)
//	refs := billing.NewContextResolver(billing.ModeUser, nil)
//	rec := billing.NewReconciler(subStore, log)
//
//	d := billing.NewDispatcher(guests, refs, rec, subStore,
//		billing.WithLogger(log),
//		billing.WithNotifier(billing.NewEmailNotifier(sender)),
//	)
//
//	res := d.Dispatch(ctx, event) // never returns an error
package billing
