package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ContextResolver translates a local user id into the reference id a
// subscription must be filed under, so that a checkout completed as a guest
// and a later signed-in billing lookup converge on the same key.
//
// Pure read: billing mode comes from configuration, organization membership
// from the injected store. No mutation happens here.
type ContextResolver struct {
	mode        BillingMode
	memberships MembershipStore
}

// NewContextResolver creates a resolver for the configured billing mode.
// The membership store may be nil in user-scoped mode.
func NewContextResolver(mode BillingMode, memberships MembershipStore) *ContextResolver {
	if mode == ModeOrganization && memberships == nil {
		panic("billing: MembershipStore is required in organization billing mode")
	}
	if mode == "" {
		mode = ModeUser
	}
	return &ContextResolver{mode: mode, memberships: memberships}
}

// ResolveReferenceID returns the canonical subscription key for a user.
// In organization mode the user's primary organization wins; a user without
// one (every freshly resolved guest) falls back to their own id.
func (r *ContextResolver) ResolveReferenceID(ctx context.Context, userID uuid.UUID) (string, error) {
	if r.mode != ModeOrganization {
		return userID.String(), nil
	}

	orgID, err := r.memberships.PrimaryOrgID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve primary organization for user %s: %w", userID, err)
	}
	if orgID == "" {
		return userID.String(), nil
	}
	return orgID, nil
}
