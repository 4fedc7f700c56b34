package billing

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Event is one verified webhook delivery. Signature verification and HTTP
// framing happen before an Event is constructed; the dispatcher only sees
// authenticated payloads.
type Event struct {
	ID   string
	Type EventType
	Data json.RawMessage
}

// CheckoutSession is the data.object payload of a checkout.session.completed
// event, reduced to the fields the reconciliation core actually reads.
type CheckoutSession struct {
	ID              string            `json:"id"`
	Customer        string            `json:"customer"`
	Subscription    string            `json:"subscription"`
	Mode            string            `json:"mode"`
	CustomerDetails CustomerDetails   `json:"customer_details"`
	Metadata        map[string]string `json:"metadata"`
}

type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SubscriptionPayload is the data.object payload of customer.subscription.*
// events.
type SubscriptionPayload struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Items             subscriptionItems `json:"items"`
	Metadata          map[string]string `json:"metadata"`
}

type subscriptionItems struct {
	Data []struct {
		CurrentPeriodStart int64 `json:"current_period_start"`
		CurrentPeriodEnd   int64 `json:"current_period_end"`
		Quantity           int64 `json:"quantity"`
		Price              struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"data"`
}

// PriceID returns the price id of the first subscription item, or "".
func (p *SubscriptionPayload) PriceID() string {
	for _, item := range p.Items.Data {
		if item.Price.ID != "" {
			return item.Price.ID
		}
	}
	return ""
}

// Period returns the current billing period of the first subscription item
// as unix seconds. Zero values mean the gateway did not report a period.
func (p *SubscriptionPayload) Period() (start, end int64) {
	if len(p.Items.Data) == 0 {
		return 0, 0
	}
	return p.Items.Data[0].CurrentPeriodStart, p.Items.Data[0].CurrentPeriodEnd
}

func decodePayload(e *Event, v any) error {
	if len(e.Data) == 0 {
		return ErrInvalidEventPayload
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.Join(ErrInvalidEventPayload, err)
	}
	return nil
}

// CheckoutMetadata is the transient classification input carried in a
// checkout session's metadata map. Absence of a key is meaningful, so no
// defaulting happens here.
type CheckoutMetadata struct {
	ReferenceID      string
	GuestCheckout    string
	Source           string
	SubscriptionID   string // local subscription id pre-created at checkout initiation
	CustomerEmail    string
	Plan             string
	Interval         string
	Seats            string
	ScheduleID       string
	NumberOfPayments string
}

// MetadataFromMap extracts the known metadata keys from a session's raw
// metadata map. Unknown keys are ignored.
func MetadataFromMap(m map[string]string) CheckoutMetadata {
	return CheckoutMetadata{
		ReferenceID:      m["referenceId"],
		GuestCheckout:    m["guest_checkout"],
		Source:           m["source"],
		SubscriptionID:   m["subscriptionId"],
		CustomerEmail:    m["customerEmail"],
		Plan:             m["plan"],
		Interval:         m["interval"],
		Seats:            m["seats"],
		ScheduleID:       m["schedule_id"],
		NumberOfPayments: m["number_of_payments"],
	}
}

// SeatsOrDefault parses the seats metadata value, defaulting to 1 when the
// value is absent or unparseable.
func (m CheckoutMetadata) SeatsOrDefault() int {
	n, err := strconv.Atoi(strings.TrimSpace(m.Seats))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// BillingInterval derives the interval from metadata rather than from a
// price lookup, keeping the webhook hot path free of extra gateway calls.
func (m CheckoutMetadata) BillingInterval() BillingInterval {
	switch strings.ToLower(strings.TrimSpace(m.Interval)) {
	case "year", "yearly", "annual":
		return IntervalYearly
	default:
		return IntervalMonthly
	}
}
