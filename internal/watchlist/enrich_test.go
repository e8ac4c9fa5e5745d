package watchlist

import (
	"context"
	"errors"
	"testing"

	"github.com/NainishK/smartsubs/api/internal/model"
)

type fakeAvail struct {
	badges map[int64]string
	err    error
	calls  int
	refs   []model.CatalogRef
}

func (f *fakeAvail) AvailabilityBatch(ctx context.Context, refs []model.CatalogRef) (map[int64]string, error) {
	f.calls++
	f.refs = refs
	if f.err != nil {
		return nil, f.err
	}
	return f.badges, nil
}

func TestEnrichMergesPartialBatch(t *testing.T) {
	store := &fakeStore{}
	avail := &fakeAvail{badges: map[int64]string{1: "Netflix", 3: "Hulu"}}
	sess := NewSession("u1", store, avail)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		if _, err := sess.ApplyTransition(ctx, item(id), model.StatusPlanToWatch, nil); err != nil {
			t.Fatalf("create %d: %v", id, err)
		}
	}

	if err := sess.Enrich(ctx); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if avail.calls != 1 {
		t.Fatalf("batch calls = %d, want 1", avail.calls)
	}
	if len(avail.refs) != 3 {
		t.Fatalf("batch refs = %d, want 3", len(avail.refs))
	}

	recs, _ := sess.Records(ctx)
	got := map[int64]*string{}
	for _, rec := range recs {
		got[rec.Item.ExternalID] = rec.AvailabilityBadge
	}
	if got[1] == nil || *got[1] != "Netflix" {
		t.Fatalf("badge 1 = %v", got[1])
	}
	if got[2] != nil {
		t.Fatalf("badge 2 = %v, want absent (item missing from batch)", *got[2])
	}
	if got[3] == nil || *got[3] != "Hulu" {
		t.Fatalf("badge 3 = %v", got[3])
	}
}

func TestEnrichBatchFailureLeavesListIntact(t *testing.T) {
	store := &fakeStore{}
	avail := &fakeAvail{err: errors.New("provider down")}
	sess := NewSession("u1", store, avail)
	ctx := context.Background()

	if _, err := sess.ApplyTransition(ctx, item(1), model.StatusWatching, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := sess.Enrich(ctx); err == nil {
		t.Fatal("expected batch error to surface")
	}

	recs, err := sess.Records(ctx)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 1 || recs[0].Status != model.StatusWatching {
		t.Fatalf("records = %+v", recs)
	}
	if recs[0].AvailabilityBadge != nil {
		t.Fatal("badge must stay absent after failed batch")
	}
}

func TestEnrichSkipsUnloadedSession(t *testing.T) {
	store := &fakeStore{}
	avail := &fakeAvail{badges: map[int64]string{}}
	sess := NewSession("u1", store, avail)

	if err := sess.Enrich(context.Background()); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if avail.calls != 0 {
		t.Fatalf("batch calls = %d, want 0 before first load", avail.calls)
	}
}
