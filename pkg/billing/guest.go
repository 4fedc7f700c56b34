package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// guestCustomerProvenance tags gateway customers minted by this resolver so
// they can be told apart from customers created through interactive flows.
const guestCustomerProvenance = "webhook_guest_checkout"

// fallbackGuestName is used when neither the event nor the email yields a
// usable display name.
const fallbackGuestName = "Guest"

// GuestResolver idempotently ensures a local user and a gateway customer
// exist for an email seen only through a guest checkout. Email is the
// natural key: resolving twice with the same inputs creates no extra rows.
type GuestResolver struct {
	gateway Gateway
	users   UserStore
	log     *slog.Logger
}

// NewGuestResolver creates a resolver with injected collaborators.
// Panics on nil dependencies to fail fast during initialization.
func NewGuestResolver(gateway Gateway, users UserStore, log *slog.Logger) *GuestResolver {
	if gateway == nil {
		panic("billing: Gateway is required")
	}
	if users == nil {
		panic("billing: UserStore is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &GuestResolver{gateway: gateway, users: users, log: log}
}

// GuestIdentity is the raw identity material carried on a checkout event.
type GuestIdentity struct {
	Email             string
	Name              string
	GatewayCustomerID string
}

// ResolvedIdentity is the outcome of guest resolution: a local user id and
// the gateway customer id the subscription must be billed against.
type ResolvedIdentity struct {
	UserID            uuid.UUID
	GatewayCustomerID string
}

// Resolve ensures both sides of the billing identity exist.
//
// A missing email is a malformed event (ErrMissingRequiredField): retrying
// the delivery cannot help, so callers must not treat it as transient.
// When the stored gateway customer id disagrees with the one on the event,
// the event wins (last writer) and the drift is logged at warn level.
func (r *GuestResolver) Resolve(ctx context.Context, identity GuestIdentity) (ResolvedIdentity, error) {
	email := strings.TrimSpace(strings.ToLower(identity.Email))
	if email == "" {
		return ResolvedIdentity{}, errors.Join(ErrMissingRequiredField, errors.New("guest checkout without customer email"))
	}

	customerID := identity.GatewayCustomerID
	if customerID == "" {
		// Retried deliveries normally short-circuit before this branch
		// because the customer id is present on the replayed event.
		customer, err := r.gateway.CreateCustomer(ctx, CreateCustomerParams{
			Email: email,
			Name:  identity.Name,
			Metadata: map[string]string{
				"managed_by": guestCustomerProvenance,
			},
		})
		if err != nil {
			return ResolvedIdentity{}, fmt.Errorf("create gateway customer for %s: %w", email, err)
		}
		customerID = customer.ID
	}

	user, err := r.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if user.GatewayCustomerID != customerID {
			// Billing-identity drift: tolerated but flagged.
			r.log.WarnContext(ctx, "gateway customer id drift, overwriting stored value",
				slog.String("user_id", user.ID.String()),
				slog.String("stored_customer_id", user.GatewayCustomerID),
				slog.String("event_customer_id", customerID),
			)
			if err := r.users.UpdateUserByID(ctx, user.ID, UpdateUserParams{
				GatewayCustomerID: &customerID,
			}); err != nil {
				return ResolvedIdentity{}, fmt.Errorf("update gateway customer id for user %s: %w", user.ID, err)
			}
		}
		return ResolvedIdentity{UserID: user.ID, GatewayCustomerID: customerID}, nil

	case errors.Is(err, ErrUserNotFound):
		created, err := r.users.CreateUserFromGateway(ctx, CreateUserParams{
			Email:             email,
			Name:              displayName(identity.Name, email),
			GatewayCustomerID: customerID,
		})
		if err != nil {
			return ResolvedIdentity{}, fmt.Errorf("create user for %s: %w", email, err)
		}
		return ResolvedIdentity{UserID: created.ID, GatewayCustomerID: customerID}, nil

	default:
		return ResolvedIdentity{}, fmt.Errorf("lookup user by email: %w", err)
	}
}

// displayName picks a best-effort name: the explicit name, else the email's
// local part, else a fallback literal.
func displayName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if local, _, found := strings.Cut(email, "@"); found && local != "" {
		return local
	}
	return fallbackGuestName
}
