package repository

import (
	"context"

	"github.com/NainishK/smartsubs/api/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct{ db *pgxpool.Pool }

func NewUserRepo(db *pgxpool.Pool) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Upsert(ctx context.Context, id, email string, name *string) (*model.User, error) {
	var v model.User
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    name = EXCLUDED.name,
		    updated_at = NOW()
		RETURNING id, email, name, created_at, updated_at`,
		id, email, name,
	).Scan(&v.ID, &v.Email, &v.Name, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &v, nil
}

func (r *UserRepo) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var v model.User
	err := r.db.QueryRow(ctx, `
		SELECT id, email, name, created_at, updated_at
		FROM users
		WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.Email, &v.Name, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &v, nil
}
