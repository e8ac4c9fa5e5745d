package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/NainishK/smartsubs/api/internal/model"
	"github.com/NainishK/smartsubs/api/internal/service"
)

type fakeEngine struct {
	mu             sync.Mutex
	dashboardCalls int
	similarCalls   int
	recomputeCalls int
	aiCalls        int

	// When set, every dashboard/similar call blocks until the channel closes.
	dashboardBlock chan struct{}
	similarBlock   chan struct{}
	// When set, only the first similar call blocks.
	similarBlockFirst chan struct{}

	dashboardErr error
	similarErr   error
	recomputeErr error
	aiInsights   *model.AIInsights
	aiErr        error
}

func picks(reason string) []model.Recommendation {
	return []model.Recommendation{{Kind: model.RecWatchNow, Reason: reason}}
}

func (f *fakeEngine) DashboardPicks(ctx context.Context, userID string) ([]model.Recommendation, error) {
	f.mu.Lock()
	f.dashboardCalls++
	n := f.dashboardCalls
	block := f.dashboardBlock
	err := f.dashboardErr
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return picks(fmt.Sprintf("dash-%d", n)), nil
}

func (f *fakeEngine) SimilarContent(ctx context.Context, userID string, force bool) ([]model.Recommendation, error) {
	f.mu.Lock()
	f.similarCalls++
	n := f.similarCalls
	block := f.similarBlock
	first := f.similarBlockFirst
	err := f.similarErr
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if n == 1 && first != nil {
		<-first
	}
	if err != nil {
		return nil, err
	}
	return picks(fmt.Sprintf("sim-%d", n)), nil
}

func (f *fakeEngine) TriggerRecompute(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recomputeCalls++
	return f.recomputeErr
}

func (f *fakeEngine) GenerateAIInsights(ctx context.Context, userID string, force bool) (*model.AIInsights, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aiCalls++
	if f.aiErr != nil {
		return nil, f.aiErr
	}
	return f.aiInsights, nil
}

func (f *fakeEngine) calls() (dash, sim, recompute, ai int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dashboardCalls, f.similarCalls, f.recomputeCalls, f.aiCalls
}

type fakeAccess struct {
	mu           sync.Mutex
	state        model.AccessState
	requestCalls int
}

func (f *fakeAccess) GetState(ctx context.Context, userID string) (model.AccessState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == "" {
		return model.AccessNone, nil
	}
	return f.state, nil
}

func (f *fakeAccess) Request(ctx context.Context, userID string) (model.AccessState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestCalls++
	f.state = model.AccessRequested
	return f.state, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	b, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = b
	c.mu.Unlock()
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

func (c *memCache) Ping(ctx context.Context) error { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestLoadDashboardHitsCacheBeforeEngine(t *testing.T) {
	engine := &fakeEngine{}
	cache := newMemCache()
	if err := cache.SetJSON(context.Background(), "recs:dashboard:u1", picks("cached"), time.Minute); err != nil {
		t.Fatal(err)
	}
	s := NewStreams("u1", engine, &fakeAccess{}, cache)

	if err := s.LoadDashboard(context.Background()); err != nil {
		t.Fatalf("LoadDashboard: %v", err)
	}
	snap := s.DashboardSnapshot()
	if len(snap.Items) != 1 || snap.Items[0].Reason != "cached" {
		t.Fatalf("items = %+v", snap.Items)
	}
	if snap.Loading {
		t.Fatal("loading flag left set")
	}
	if snap.LastRefreshedAt == nil {
		t.Fatal("lastRefreshedAt not stamped")
	}
	if dash, _, _, _ := engine.calls(); dash != 0 {
		t.Fatalf("engine called %d times despite cache hit", dash)
	}
}

func TestLoadDashboardFailureKeepsPreviousItems(t *testing.T) {
	engine := &fakeEngine{}
	s := NewStreams("u1", engine, &fakeAccess{}, service.NoopJSONCache{})
	ctx := context.Background()

	if err := s.LoadDashboard(ctx); err != nil {
		t.Fatalf("first load: %v", err)
	}
	engine.mu.Lock()
	engine.dashboardErr = errors.New("engine down")
	engine.mu.Unlock()

	if err := s.LoadDashboard(ctx); err == nil {
		t.Fatal("expected load error")
	}
	snap := s.DashboardSnapshot()
	if snap.Loading {
		t.Fatal("loading flag left set after failure")
	}
	if len(snap.Items) != 1 || snap.Items[0].Reason != "dash-1" {
		t.Fatalf("items = %+v, want the previous fetch preserved", snap.Items)
	}
}

func TestGlobalRefreshBlocksBothSlotsUntilBothResolve(t *testing.T) {
	engine := &fakeEngine{
		dashboardBlock: make(chan struct{}),
		similarBlock:   make(chan struct{}),
	}
	s := NewStreams("u1", engine, &fakeAccess{}, service.NoopJSONCache{})

	done := make(chan error, 1)
	go func() { done <- s.GlobalRefresh(context.Background(), true) }()

	waitFor(t, func() bool {
		dash, sim, recompute, _ := engine.calls()
		return recompute == 1 && dash == 1 && sim == 1
	})
	if !s.DashboardSnapshot().Loading || !s.SimilarSnapshot().Loading {
		t.Fatal("both slots must be loading while the refresh is in flight")
	}
	if s.LastUpdated() != nil {
		t.Fatal("lastUpdated stamped before completion")
	}

	// One slot resolving is not enough: the loading state holds until both do.
	close(engine.dashboardBlock)
	time.Sleep(20 * time.Millisecond)
	if !s.DashboardSnapshot().Loading {
		t.Fatal("dashboard released early, before the similar fetch resolved")
	}
	if s.LastUpdated() != nil {
		t.Fatal("lastUpdated stamped with the similar fetch still pending")
	}

	close(engine.similarBlock)
	if err := <-done; err != nil {
		t.Fatalf("GlobalRefresh: %v", err)
	}
	dash := s.DashboardSnapshot()
	sim := s.SimilarSnapshot()
	if dash.Loading || sim.Loading {
		t.Fatal("loading flags left set after refresh")
	}
	if len(dash.Items) != 1 || dash.Items[0].Reason != "dash-1" {
		t.Fatalf("dashboard items = %+v", dash.Items)
	}
	if len(sim.Items) != 1 || sim.Items[0].Reason != "sim-1" {
		t.Fatalf("similar items = %+v", sim.Items)
	}
	if s.LastUpdated() == nil {
		t.Fatal("lastUpdated not stamped after both slots resolved")
	}
}

func TestGlobalRefreshRecomputeFailureClearsLoading(t *testing.T) {
	engine := &fakeEngine{recomputeErr: errors.New("recompute down")}
	s := NewStreams("u1", engine, &fakeAccess{}, service.NoopJSONCache{})

	if err := s.GlobalRefresh(context.Background(), true); err == nil {
		t.Fatal("expected recompute error")
	}
	if s.DashboardSnapshot().Loading || s.SimilarSnapshot().Loading {
		t.Fatal("loading flags left set after failed recompute")
	}
	if dash, sim, _, _ := engine.calls(); dash != 0 || sim != 0 {
		t.Fatalf("fetches issued (%d, %d) despite failed recompute", dash, sim)
	}
	if s.LastUpdated() != nil {
		t.Fatal("lastUpdated stamped after failure")
	}
}

func TestStaleSimilarResponseDiscarded(t *testing.T) {
	engine := &fakeEngine{similarBlockFirst: make(chan struct{})}
	s := NewStreams("u1", engine, &fakeAccess{}, service.NoopJSONCache{})

	done := make(chan error, 1)
	go func() { done <- s.LoadSimilar(context.Background(), true) }()
	waitFor(t, func() bool {
		_, sim, _, _ := engine.calls()
		return sim == 1
	})

	// A newer request supersedes the in-flight one.
	if err := s.LoadSimilar(context.Background(), true); err != nil {
		t.Fatalf("second load: %v", err)
	}
	close(engine.similarBlockFirst)
	if err := <-done; err != nil {
		t.Fatalf("first load: %v", err)
	}

	snap := s.SimilarSnapshot()
	if len(snap.Items) != 1 || snap.Items[0].Reason != "sim-2" {
		t.Fatalf("items = %+v, want the newer response to win", snap.Items)
	}
	if snap.Loading {
		t.Fatal("loading flag left set")
	}
}

func TestGenerateAIBlockedBeforeEngineCall(t *testing.T) {
	for _, state := range []model.AccessState{model.AccessNone, model.AccessRequested} {
		engine := &fakeEngine{aiInsights: &model.AIInsights{Picks: picks("ai")}}
		s := NewStreams("u1", engine, &fakeAccess{state: state}, service.NoopJSONCache{})

		_, err := s.GenerateAI(context.Background(), false)
		if !errors.Is(err, ErrAccessRequired) {
			t.Fatalf("state %s: err = %v", state, err)
		}
		if _, _, _, ai := engine.calls(); ai != 0 {
			t.Fatalf("state %s: engine called %d times, gate must block first", state, ai)
		}
		if s.AISnapshotView().Loading {
			t.Fatalf("state %s: loading flag set by a blocked attempt", state)
		}
	}
}

func TestGenerateAIQuotaExceededPopulatesSlot(t *testing.T) {
	engine := &fakeEngine{aiErr: service.ErrQuotaExceeded}
	access := &fakeAccess{state: model.AccessApproved}
	s := NewStreams("u1", engine, access, service.NoopJSONCache{})

	insights, err := s.GenerateAI(context.Background(), false)
	if err != nil {
		t.Fatalf("GenerateAI: %v", err)
	}
	if insights == nil || !insights.QuotaExceeded {
		t.Fatalf("insights = %+v, want the quota marker set", insights)
	}
	if len(insights.Picks) != 0 {
		t.Fatalf("picks = %+v, want empty", insights.Picks)
	}
	if insights.GeneratedAt.IsZero() {
		t.Fatal("generatedAt not stamped")
	}

	snap := s.AISnapshotView()
	if snap.Insights == nil || !snap.Insights.QuotaExceeded {
		t.Fatal("slot not populated with the exhausted result")
	}
	if snap.Loading {
		t.Fatal("loading flag left set")
	}

	// Quota exhaustion is not an access problem.
	state, err := s.AccessState(context.Background())
	if err != nil || state != model.AccessApproved {
		t.Fatalf("access = %s, %v", state, err)
	}
}

func TestGenerateAISuccessPersistsResult(t *testing.T) {
	engine := &fakeEngine{aiInsights: &model.AIInsights{Picks: picks("ai-pick")}}
	cache := newMemCache()
	s := NewStreams("u1", engine, &fakeAccess{state: model.AccessApproved}, cache)

	insights, err := s.GenerateAI(context.Background(), false)
	if err != nil {
		t.Fatalf("GenerateAI: %v", err)
	}
	if len(insights.Picks) != 1 || insights.Picks[0].Reason != "ai-pick" {
		t.Fatalf("picks = %+v", insights.Picks)
	}

	var cached model.AIInsights
	ok, err := cache.GetJSON(context.Background(), "recs:ai:u1", &cached)
	if err != nil || !ok {
		t.Fatalf("cache read = %v, %v", ok, err)
	}
	if len(cached.Picks) != 1 {
		t.Fatalf("cached picks = %+v", cached.Picks)
	}
}

func TestPeekAIReadsPriorResultWithoutGenerating(t *testing.T) {
	engine := &fakeEngine{}
	cache := newMemCache()
	prior := model.AIInsights{Picks: picks("last-week"), GeneratedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	if err := cache.SetJSON(context.Background(), "recs:ai:u1", prior, time.Hour); err != nil {
		t.Fatal(err)
	}
	s := NewStreams("u1", engine, &fakeAccess{state: model.AccessRequested}, cache)

	insights, err := s.PeekAI(context.Background())
	if err != nil {
		t.Fatalf("PeekAI: %v", err)
	}
	if insights == nil || len(insights.Picks) != 1 || insights.Picks[0].Reason != "last-week" {
		t.Fatalf("insights = %+v", insights)
	}
	if _, _, _, ai := engine.calls(); ai != 0 {
		t.Fatalf("engine called %d times by a peek", ai)
	}
	snap := s.AISnapshotView()
	if snap.Loading {
		t.Fatal("peek must never flip the loading flag")
	}
	if snap.Insights == nil {
		t.Fatal("peek should settle the cached result into the slot")
	}
}

func TestPeekAIEmpty(t *testing.T) {
	s := NewStreams("u1", &fakeEngine{}, &fakeAccess{}, service.NoopJSONCache{})
	insights, err := s.PeekAI(context.Background())
	if err != nil {
		t.Fatalf("PeekAI: %v", err)
	}
	if insights != nil {
		t.Fatalf("insights = %+v, want nil with nothing generated yet", insights)
	}
}
