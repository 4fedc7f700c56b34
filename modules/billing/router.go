package billing

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/meridianhq/meridian/pkg/billing"
	"github.com/meridianhq/meridian/pkg/logger"
)

// webhookBodyLimit bounds the request body we are willing to read. Gateway
// events are small; anything past 1MiB is not a legitimate delivery.
const webhookBodyLimit = 1 << 20

// Dispatcher is the minimal surface the webhook route needs from the
// reconciliation core.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *billing.Event) billing.Result
}

// RouterOptions configures the billing module router.
type RouterOptions struct {
	// WebhookSecret verifies gateway signatures. Required.
	WebhookSecret string
	// Dispatcher processes verified events. Required.
	Dispatcher Dispatcher
	// Deduper short-circuits replayed deliveries. Optional; without one
	// every delivery reaches the dispatcher and relies on handler
	// idempotency alone.
	Deduper billing.EventDeduper
	// Logger for transport-level logging. Defaults to slog.Default.
	Logger *slog.Logger
}

// Router mounts the gateway webhook endpoint.
//
//	r.Mount("/billing", billing.Router(billing.RouterOptions{...}))
func Router(opts RouterOptions) chi.Router {
	if opts.WebhookSecret == "" {
		panic("billing: webhook secret is required")
	}
	if opts.Dispatcher == nil {
		panic("billing: dispatcher is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	h := &webhookHandler{
		secret:     opts.WebhookSecret,
		dispatcher: opts.Dispatcher,
		deduper:    opts.Deduper,
		log:        log,
	}

	r := chi.NewRouter()
	r.Post("/webhook", h.handle)
	return r
}

type webhookHandler struct {
	secret     string
	dispatcher Dispatcher
	deduper    billing.EventDeduper
	log        *slog.Logger
}

// handle terminates one webhook delivery. An invalid signature is the only
// non-2xx outcome: once the event is authenticated, business failures are
// contained by the dispatcher and the delivery is acknowledged, because
// redelivery cannot fix them and would only storm the handlers.
func (h *webhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		h.log.WarnContext(r.Context(), "webhook signature verification failed", logger.Error(err))
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if h.deduper != nil {
		seen, err := h.deduper.Seen(r.Context(), event.ID)
		if err != nil {
			// Degrade open: the handlers are idempotent, the deduper is
			// only an optimization.
			h.log.WarnContext(r.Context(), "event dedup unavailable, processing anyway",
				logger.EventID(event.ID),
				logger.Error(err),
			)
		} else if seen {
			h.log.InfoContext(r.Context(), "duplicate webhook delivery acknowledged",
				logger.EventID(event.ID),
				logger.EventType(string(event.Type)),
			)
			writeReceived(w, "duplicate")
			return
		}
	}

	res := h.dispatcher.Dispatch(r.Context(), &billing.Event{
		ID:   event.ID,
		Type: billing.EventType(event.Type),
		Data: event.Data.Raw,
	})

	// Mark only after the handler ran and did not fail: marking up front
	// would turn a crash mid-processing into a permanently lost event, and
	// a failed event should stay eligible for redelivery.
	if h.deduper != nil && res.Action != billing.ActionFailed {
		if err := h.deduper.Mark(r.Context(), event.ID); err != nil {
			h.log.WarnContext(r.Context(), "event dedup mark failed",
				logger.EventID(event.ID),
				logger.Error(err),
			)
		}
	}

	writeReceived(w, "processed")
}

func writeReceived(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"received": true,
		"status":   status,
	})
}
