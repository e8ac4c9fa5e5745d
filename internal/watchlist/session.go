package watchlist

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/NainishK/smartsubs/api/internal/model"
	"github.com/NainishK/smartsubs/api/internal/repository"
)

var (
	ErrNotTracked    = errors.New("item is not tracked")
	ErrInvalidStatus = errors.New("invalid watch status")
	ErrInvalidRating = errors.New("invalid rating")
)

// Store is the watchlist persistence collaborator. Create returns the record
// with its store-assigned id.
type Store interface {
	List(ctx context.Context, userID string) ([]model.WatchlistRecord, error)
	Create(ctx context.Context, userID string, rec model.WatchlistRecord) (*model.WatchlistRecord, error)
	UpdateStatus(ctx context.Context, userID, recordID string, status model.WatchStatus) error
	UpdateRating(ctx context.Context, userID, recordID string, rating int) error
	Delete(ctx context.Context, userID, recordID string) error
}

// AvailabilitySource resolves availability badges for a batch of items.
type AvailabilitySource interface {
	AvailabilityBatch(ctx context.Context, refs []model.CatalogRef) (map[int64]string, error)
}

// Session holds one user's in-memory watchlist view: the records, the
// reconciliation index over them, and the optimistic mutation protocol
// against the store. Mutations update the local view synchronously before
// the store write is issued; a failed write leaves the local view as the
// user intended it rather than rolling back.
type Session struct {
	userID string
	store  Store
	avail  AvailabilitySource

	mu      sync.Mutex
	records []*model.WatchlistRecord
	index   *Index
	loaded  bool
}

func NewSession(userID string, store Store, avail AvailabilitySource) *Session {
	return &Session{
		userID: userID,
		store:  store,
		avail:  avail,
		index:  NewIndex(),
	}
}

func (s *Session) ensureLoadedLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.reloadLocked(ctx)
}

func (s *Session) reloadLocked(ctx context.Context) error {
	recs, err := s.store.List(ctx, s.userID)
	if err != nil {
		return err
	}
	s.records = make([]*model.WatchlistRecord, len(recs))
	for i := range recs {
		rec := recs[i]
		s.records[i] = &rec
	}
	s.index.Rebuild(s.records)
	s.loaded = true
	return nil
}

// Reload drops the in-memory view and rebuilds it from the store. It is the
// recovery path when incremental index patching is suspected inconsistent.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

// Records returns a copy of the current view, newest first.
func (s *Session) Records(ctx context.Context) ([]model.WatchlistRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]model.WatchlistRecord, len(s.records))
	for i, rec := range s.records {
		out[i] = *rec
	}
	return out, nil
}

// Resolve answers "is this item tracked, and in what state?" from the index.
func (s *Session) Resolve(ctx context.Context, externalID int64) (model.WatchlistRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return model.WatchlistRecord{}, false, err
	}
	rec, ok := s.index.Resolve(externalID)
	if !ok {
		return model.WatchlistRecord{}, false, nil
	}
	return *rec, true, nil
}

// ApplyTransition moves an item to the target status, creating the record
// when the item is not yet tracked. A rating is only honored on transitions
// into watching or watched; a nil rating leaves any existing rating in
// place. The returned record reflects the local view, which on a failed
// store write may be ahead of the server.
func (s *Session) ApplyTransition(ctx context.Context, item model.CatalogItem, target model.WatchStatus, rating *int) (model.WatchlistRecord, error) {
	if !model.ValidWatchStatus(target) {
		return model.WatchlistRecord{}, ErrInvalidStatus
	}
	if rating != nil {
		if !model.ValidRating(*rating) {
			return model.WatchlistRecord{}, ErrInvalidRating
		}
		if target != model.StatusWatching && target != model.StatusWatched {
			rating = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return model.WatchlistRecord{}, err
	}

	if existing, ok := s.index.Resolve(item.ExternalID); ok {
		return s.updateLocked(ctx, existing, target, rating)
	}

	rec := &model.WatchlistRecord{
		Item:    item,
		Status:  target,
		AddedAt: time.Now().UTC(),
	}
	if rating != nil {
		r := *rating
		rec.UserRating = &r
	}
	s.records = append([]*model.WatchlistRecord{rec}, s.records...)
	s.index.Upsert(rec)

	created, err := s.store.Create(ctx, s.userID, *rec)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// The store already tracks this item (e.g. another device added
			// it). Refresh the view and retry as an update.
			if rerr := s.reloadLocked(ctx); rerr != nil {
				return *rec, err
			}
			if existing, ok := s.index.Resolve(item.ExternalID); ok {
				return s.updateLocked(ctx, existing, target, rating)
			}
			return *rec, err
		}
		return *rec, err
	}
	rec.ID = created.ID
	rec.AddedAt = created.AddedAt
	return *rec, nil
}

func (s *Session) updateLocked(ctx context.Context, rec *model.WatchlistRecord, target model.WatchStatus, rating *int) (model.WatchlistRecord, error) {
	rec.Status = target
	if rating != nil {
		r := *rating
		rec.UserRating = &r
	}
	if err := s.store.UpdateStatus(ctx, s.userID, rec.ID, target); err != nil {
		return *rec, err
	}
	if rating != nil {
		if err := s.store.UpdateRating(ctx, s.userID, rec.ID, *rating); err != nil {
			return *rec, err
		}
	}
	return *rec, nil
}

// SetRating changes the rating independently of any status transition.
func (s *Session) SetRating(ctx context.Context, externalID int64, rating int) (model.WatchlistRecord, error) {
	if !model.ValidRating(rating) {
		return model.WatchlistRecord{}, ErrInvalidRating
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return model.WatchlistRecord{}, err
	}
	rec, ok := s.index.Resolve(externalID)
	if !ok {
		return model.WatchlistRecord{}, ErrNotTracked
	}
	r := rating
	rec.UserRating = &r
	if err := s.store.UpdateRating(ctx, s.userID, rec.ID, rating); err != nil {
		return *rec, err
	}
	return *rec, nil
}

// Remove deletes the record. A record that already vanished server-side is
// treated as removed.
func (s *Session) Remove(ctx context.Context, externalID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	rec, ok := s.index.Resolve(externalID)
	if !ok {
		return ErrNotTracked
	}
	s.index.Remove(externalID)
	for i, r := range s.records {
		if r == rec {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	if err := s.store.Delete(ctx, s.userID, rec.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// Stats recomputes per-status tallies from the record set.
func (s *Session) Stats(ctx context.Context) (model.WatchlistStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return model.WatchlistStats{}, err
	}
	stats := model.WatchlistStats{
		Total:    len(s.records),
		ByStatus: make(map[model.WatchStatus]int, 5),
	}
	for _, rec := range s.records {
		stats.ByStatus[rec.Status]++
	}
	return stats, nil
}

// Enrich resolves availability badges for the current records in one batch
// and merges them into the view by external ID. Items missing from the batch
// keep their badge absent; a failed batch leaves the list untouched.
func (s *Session) Enrich(ctx context.Context) error {
	if s.avail == nil {
		return nil
	}
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil
	}
	refs := make([]model.CatalogRef, 0, len(s.records))
	for _, rec := range s.records {
		refs = append(refs, model.CatalogRef{ExternalID: rec.Item.ExternalID, MediaType: rec.Item.MediaType})
	}
	s.mu.Unlock()

	if len(refs) == 0 {
		return nil
	}
	badges, err := s.avail.AvailabilityBatch(ctx, refs)
	if err != nil {
		log.Printf("availability batch user_id=%s: %v", s.userID, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if badge, ok := badges[rec.Item.ExternalID]; ok {
			b := badge
			rec.AvailabilityBadge = &b
		}
	}
	return nil
}

// Decorate attaches the current watch status and rating to recommendations
// that reference a tracked item. It runs on every read so a status change
// made elsewhere shows up without re-fetching recommendations. If the view
// cannot be loaded the recommendations pass through undecorated.
func (s *Session) Decorate(ctx context.Context, recs []model.Recommendation) []model.Recommendation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		log.Printf("decorate load user_id=%s: %v", s.userID, err)
		return recs
	}
	for i := range recs {
		if recs[i].Item == nil {
			continue
		}
		rec, ok := s.index.Resolve(recs[i].Item.ExternalID)
		if !ok {
			continue
		}
		st := rec.Status
		recs[i].WatchStatus = &st
		if rec.UserRating != nil {
			r := *rec.UserRating
			recs[i].UserRating = &r
		}
	}
	return recs
}
