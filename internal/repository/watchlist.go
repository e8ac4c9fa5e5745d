package repository

import (
	"context"

	"github.com/NainishK/smartsubs/api/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WatchlistRepo is the persistence collaborator behind the watchlist session.
// At most one record per (user, external_id) is enforced by a unique
// constraint; a duplicate create surfaces as ErrConflict.
type WatchlistRepo struct{ db *pgxpool.Pool }

func NewWatchlistRepo(db *pgxpool.Pool) *WatchlistRepo { return &WatchlistRepo{db: db} }

const watchlistColumns = `
	id, external_id, media_type, title, overview, poster_path,
	vote_average, genres, release_year, status, user_rating, added_at`

func (r *WatchlistRepo) List(ctx context.Context, userID string) ([]model.WatchlistRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+watchlistColumns+`
		FROM watchlist_records
		WHERE user_id = $1
		ORDER BY added_at DESC`,
		userID,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	var out []model.WatchlistRecord
	for rows.Next() {
		var v model.WatchlistRecord
		if err := rows.Scan(
			&v.ID,
			&v.Item.ExternalID,
			&v.Item.MediaType,
			&v.Item.Title,
			&v.Item.Overview,
			&v.Item.PosterPath,
			&v.Item.VoteAverage,
			&v.Item.Genres,
			&v.Item.ReleaseYear,
			&v.Status,
			&v.UserRating,
			&v.AddedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Create persists a new record and returns it with the assigned id.
func (r *WatchlistRepo) Create(ctx context.Context, userID string, rec model.WatchlistRecord) (*model.WatchlistRecord, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO watchlist_records (
			user_id, external_id, media_type, title, overview, poster_path,
			vote_average, genres, release_year, status, user_rating, added_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, added_at`,
		userID,
		rec.Item.ExternalID,
		rec.Item.MediaType,
		rec.Item.Title,
		rec.Item.Overview,
		rec.Item.PosterPath,
		rec.Item.VoteAverage,
		rec.Item.Genres,
		rec.Item.ReleaseYear,
		rec.Status,
		rec.UserRating,
		rec.AddedAt,
	).Scan(&rec.ID, &rec.AddedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &rec, nil
}

func (r *WatchlistRepo) UpdateStatus(ctx context.Context, userID, recordID string, status model.WatchStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE watchlist_records
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3`,
		status, recordID, userID,
	)
	if err != nil {
		return mapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *WatchlistRepo) UpdateRating(ctx context.Context, userID, recordID string, rating int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE watchlist_records
		SET user_rating = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3`,
		rating, recordID, userID,
	)
	if err != nil {
		return mapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *WatchlistRepo) Delete(ctx context.Context, userID, recordID string) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM watchlist_records
		WHERE id = $1 AND user_id = $2`,
		recordID, userID,
	)
	if err != nil {
		return mapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
