package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/meridian/pkg/billing"
	"github.com/meridianhq/meridian/pkg/pg"
)

// PGUserStore implements billing.UserStore on a pgx connection pool.
type PGUserStore struct {
	db *pgxpool.Pool
}

func NewPGUserStore(db *pgxpool.Pool) *PGUserStore {
	if db == nil {
		panic("billing: pgx pool is required")
	}
	return &PGUserStore{db: db}
}

func (s *PGUserStore) GetUserByEmail(ctx context.Context, email string) (*billing.User, error) {
	query := `
	SELECT id, email, name, gateway_customer_id, created_at, updated_at
	FROM users
	WHERE email = $1
	`

	var u billing.User
	err := s.db.QueryRow(ctx, query, email).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.GatewayCustomerID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, billing.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return &u, nil
}

func (s *PGUserStore) CreateUserFromGateway(ctx context.Context, params billing.CreateUserParams) (*billing.User, error) {
	now := time.Now().UTC()
	u := &billing.User{
		ID:                uuid.New(),
		Email:             params.Email,
		Name:              params.Name,
		GatewayCustomerID: params.GatewayCustomerID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	query := `
	INSERT INTO users (id, email, name, gateway_customer_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := s.db.Exec(ctx, query, u.ID, u.Email, u.Name, u.GatewayCustomerID, u.CreatedAt, u.UpdatedAt); err != nil {
		if pg.IsDuplicateKeyError(err) {
			// A concurrent delivery created the row first; reuse it.
			return s.GetUserByEmail(ctx, params.Email)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *PGUserStore) UpdateUserByID(ctx context.Context, id uuid.UUID, params billing.UpdateUserParams) error {
	query := `
	UPDATE users
	SET name = COALESCE($2, name),
	    gateway_customer_id = COALESCE($3, gateway_customer_id),
	    updated_at = $4
	WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query, id, params.Name, params.GatewayCustomerID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Join(billing.ErrUserNotFound, fmt.Errorf("user %s", id))
	}
	return nil
}
