package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

type userRow struct {
	ID            string `db:"id"`
	Role          string `db:"role"`
	VerifiedBuyer bool   `db:"verified_buyer"`
}

// IdentityDirectory resolves actors from the users table.
type IdentityDirectory struct {
	db *sqlx.DB
}

func NewIdentityDirectory(db *sqlx.DB) *IdentityDirectory {
	return &IdentityDirectory{db: db}
}

func (d *IdentityDirectory) GetActor(ctx context.Context, userID string) (*domain.Actor, error) {
	var row userRow
	err := d.db.GetContext(ctx, &row, `SELECT id, role, verified_buyer FROM users WHERE id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrActorNotFound, userID)
		}
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}

	return &domain.Actor{
		ID:            row.ID,
		Role:          domain.Role(row.Role),
		VerifiedBuyer: row.VerifiedBuyer,
	}, nil
}
