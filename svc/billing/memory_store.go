package billing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian/pkg/billing"
)

// MemoryUserStore is an in-memory billing.UserStore for tests and local
// development. Values are copied on the way in and out so callers cannot
// mutate stored state.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byEmail map[string]billing.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{byEmail: make(map[string]billing.User)}
}

func (s *MemoryUserStore) GetUserByEmail(_ context.Context, email string) (*billing.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, billing.ErrUserNotFound
	}
	copied := u
	return &copied, nil
}

func (s *MemoryUserStore) CreateUserFromGateway(_ context.Context, params billing.CreateUserParams) (*billing.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(params.Email)
	if existing, ok := s.byEmail[key]; ok {
		copied := existing
		return &copied, nil
	}

	now := time.Now().UTC()
	u := billing.User{
		ID:                uuid.New(),
		Email:             key,
		Name:              params.Name,
		GatewayCustomerID: params.GatewayCustomerID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.byEmail[key] = u
	copied := u
	return &copied, nil
}

func (s *MemoryUserStore) UpdateUserByID(_ context.Context, id uuid.UUID, params billing.UpdateUserParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, u := range s.byEmail {
		if u.ID != id {
			continue
		}
		if params.Name != nil {
			u.Name = *params.Name
		}
		if params.GatewayCustomerID != nil {
			u.GatewayCustomerID = *params.GatewayCustomerID
		}
		u.UpdatedAt = time.Now().UTC()
		s.byEmail[key] = u
		return nil
	}
	return billing.ErrUserNotFound
}

// Len reports the number of stored users.
func (s *MemoryUserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEmail)
}

// MemorySubscriptionStore is an in-memory billing.SubscriptionStore with
// the same create-path duplicate check the Postgres store performs.
type MemorySubscriptionStore struct {
	mu   sync.RWMutex
	byID map[string]billing.Subscription
}

func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{byID: make(map[string]billing.Subscription)}
}

// Seed inserts a subscription row directly, bypassing the create-path
// checks. Intended for arranging test state.
func (s *MemorySubscriptionStore) Seed(sub billing.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.Seats < 1 {
		sub.Seats = 1
	}
	s.byID[sub.ID] = sub
}

// Get returns a stored row by local id.
func (s *MemorySubscriptionStore) Get(id string) (billing.Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.byID[id]
	return sub, ok
}

// Len reports the number of stored rows.
func (s *MemorySubscriptionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *MemorySubscriptionStore) UpdateSubscriptionForWebhook(_ context.Context, params billing.UpdateSubscriptionParams) (*billing.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byID[params.SubscriptionID]
	if !ok {
		return nil, billing.ErrSubscriptionNotFound
	}

	before := sub
	sub.ReferenceID = params.ReferenceID
	sub.GatewayCustomerID = params.GatewayCustomerID
	if params.GatewaySubscriptionID != "" {
		sub.GatewaySubscriptionID = params.GatewaySubscriptionID
	}
	// A byte-identical replay leaves the row untouched, timestamp included.
	if sub != before {
		sub.UpdatedAt = time.Now().UTC()
	}
	s.byID[sub.ID] = sub

	copied := sub
	return &copied, nil
}

func (s *MemorySubscriptionStore) CreateSubscriptionFromGateway(_ context.Context, params billing.CreateSubscriptionParams) (*billing.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if params.GatewaySubscriptionID != "" {
		for _, existing := range s.byID {
			if existing.ReferenceID == params.ReferenceID &&
				existing.GatewaySubscriptionID == params.GatewaySubscriptionID {
				copied := existing
				return &copied, nil
			}
		}
	} else {
		// No gateway subscription id to key on: a replayed one-time
		// payment must still converge on the existing row.
		for _, existing := range s.byID {
			if existing.ReferenceID == params.ReferenceID &&
				existing.Status != billing.StatusCanceled {
				copied := existing
				return &copied, nil
			}
		}
	}

	seats := params.Seats
	if seats < 1 {
		seats = 1
	}
	now := time.Now().UTC()
	sub := billing.Subscription{
		ID:                    uuid.NewString(),
		Plan:                  params.Plan,
		ReferenceID:           params.ReferenceID,
		GatewayCustomerID:     params.GatewayCustomerID,
		GatewaySubscriptionID: params.GatewaySubscriptionID,
		Status:                params.Status,
		PeriodEnd:             params.PeriodEnd,
		Seats:                 seats,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	s.byID[sub.ID] = sub

	copied := sub
	return &copied, nil
}

func (s *MemorySubscriptionStore) GetByGatewaySubscriptionID(_ context.Context, gatewaySubID string) (*billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if gatewaySubID == "" {
		return nil, billing.ErrSubscriptionNotFound
	}
	for _, sub := range s.byID {
		if sub.GatewaySubscriptionID == gatewaySubID {
			copied := sub
			return &copied, nil
		}
	}
	return nil, billing.ErrSubscriptionNotFound
}

func (s *MemorySubscriptionStore) SyncStatusByGatewayID(_ context.Context, gatewaySubID string, params billing.SyncStatusParams) (*billing.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gatewaySubID == "" {
		return nil, billing.ErrSubscriptionNotFound
	}
	for id, sub := range s.byID {
		if sub.GatewaySubscriptionID != gatewaySubID {
			continue
		}
		sub.Status = params.Status
		if params.Plan != "" {
			sub.Plan = params.Plan
		}
		if params.PeriodStart != nil {
			sub.PeriodStart = params.PeriodStart
		}
		if params.PeriodEnd != nil {
			sub.PeriodEnd = params.PeriodEnd
		}
		sub.CancelAtPeriodEnd = params.CancelAtPeriodEnd
		sub.UpdatedAt = time.Now().UTC()
		s.byID[id] = sub

		copied := sub
		return &copied, nil
	}
	return nil, billing.ErrSubscriptionNotFound
}

// MemoryMembershipStore is a fixed user-to-organization mapping for tests.
type MemoryMembershipStore struct {
	mu   sync.RWMutex
	orgs map[uuid.UUID]string
}

func NewMemoryMembershipStore() *MemoryMembershipStore {
	return &MemoryMembershipStore{orgs: make(map[uuid.UUID]string)}
}

func (s *MemoryMembershipStore) SetPrimaryOrg(userID uuid.UUID, orgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[userID] = orgID
}

func (s *MemoryMembershipStore) PrimaryOrgID(_ context.Context, userID uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orgs[userID], nil
}
