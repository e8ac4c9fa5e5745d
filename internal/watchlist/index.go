package watchlist

import "github.com/NainishK/smartsubs/api/internal/model"

// Index resolves external catalog IDs to the session's watchlist records.
// It is rebuilt on every full load and patched on every successful mutation,
// so "is this tracked?" checks never observe a stale answer within a session.
type Index struct {
	byExternalID map[int64]*model.WatchlistRecord
}

func NewIndex() *Index {
	return &Index{byExternalID: make(map[int64]*model.WatchlistRecord)}
}

func (ix *Index) Rebuild(records []*model.WatchlistRecord) {
	ix.byExternalID = make(map[int64]*model.WatchlistRecord, len(records))
	for _, rec := range records {
		ix.byExternalID[rec.Item.ExternalID] = rec
	}
}

func (ix *Index) Resolve(externalID int64) (*model.WatchlistRecord, bool) {
	rec, ok := ix.byExternalID[externalID]
	return rec, ok
}

func (ix *Index) Upsert(rec *model.WatchlistRecord) {
	ix.byExternalID[rec.Item.ExternalID] = rec
}

func (ix *Index) Remove(externalID int64) {
	delete(ix.byExternalID, externalID)
}

func (ix *Index) Len() int { return len(ix.byExternalID) }
