package repository

import (
	"context"

	"github.com/NainishK/smartsubs/api/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccessRepo persists the per-user AI feature gate. The gate only moves
// forward (none -> requested -> approved); approval itself is an operator
// action outside this API.
type AccessRepo struct{ db *pgxpool.Pool }

func NewAccessRepo(db *pgxpool.Pool) *AccessRepo { return &AccessRepo{db: db} }

func (r *AccessRepo) GetState(ctx context.Context, userID string) (model.AccessState, error) {
	var state model.AccessState
	err := r.db.QueryRow(ctx, `
		SELECT state
		FROM ai_access_grants
		WHERE user_id = $1`,
		userID,
	).Scan(&state)
	if err == pgx.ErrNoRows {
		return model.AccessNone, nil
	}
	if err != nil {
		return model.AccessNone, mapDBError(err)
	}
	return state, nil
}

// Request moves the gate from none to requested. Any other starting state is
// left untouched; the resulting state is returned either way.
func (r *AccessRepo) Request(ctx context.Context, userID string) (model.AccessState, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ai_access_grants (user_id, state, requested_at)
		VALUES ($1, 'requested', NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET state = 'requested',
		    requested_at = NOW(),
		    updated_at = NOW()
		WHERE ai_access_grants.state = 'none'`,
		userID,
	)
	if err != nil {
		return model.AccessNone, mapDBError(err)
	}
	return r.GetState(ctx, userID)
}
