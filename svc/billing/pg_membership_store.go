package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/meridian/pkg/pg"
)

// PGMembershipStore implements billing.MembershipStore over the
// organization membership table owned by the (external) tenancy layer. Read
// only: billing never mutates memberships.
type PGMembershipStore struct {
	db *pgxpool.Pool
}

func NewPGMembershipStore(db *pgxpool.Pool) *PGMembershipStore {
	if db == nil {
		panic("billing: pgx pool is required")
	}
	return &PGMembershipStore{db: db}
}

// PrimaryOrgID returns the oldest organization membership for the user, or
// "" when the user belongs to no organization yet.
func (s *PGMembershipStore) PrimaryOrgID(ctx context.Context, userID uuid.UUID) (string, error) {
	query := `
	SELECT organization_id
	FROM organization_members
	WHERE user_id = $1
	ORDER BY created_at ASC
	LIMIT 1
	`

	var orgID string
	if err := s.db.QueryRow(ctx, query, userID).Scan(&orgID); err != nil {
		if pg.IsNotFoundError(err) {
			return "", nil
		}
		return "", fmt.Errorf("query primary organization: %w", err)
	}
	return orgID, nil
}
