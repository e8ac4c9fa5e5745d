package recommend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/NainishK/smartsubs/api/internal/model"
	"github.com/NainishK/smartsubs/api/internal/service"
)

// Engine is the recommendation engine collaborator. The algorithm lives
// server-side; this layer only caches and sequences its results.
type Engine interface {
	DashboardPicks(ctx context.Context, userID string) ([]model.Recommendation, error)
	SimilarContent(ctx context.Context, userID string, force bool) ([]model.Recommendation, error)
	TriggerRecompute(ctx context.Context, userID string) error
	GenerateAIInsights(ctx context.Context, userID string, force bool) (*model.AIInsights, error)
}

const (
	dashboardCacheTTL = 5 * time.Minute
	similarCacheTTL   = 5 * time.Minute
	aiCacheTTL        = 30 * 24 * time.Hour
)

// slot is one independently cached, independently refreshable stream.
// seq is a monotonically increasing request token: a response carrying an
// older token than the slot's current one is discarded, so overlapping
// fetches resolve as last-request-wins.
type slot struct {
	items           []model.Recommendation
	loading         bool
	lastRefreshedAt *time.Time
	seq             uint64
}

type aiSlot struct {
	insights        *model.AIInsights
	loading         bool
	lastRefreshedAt *time.Time
	seq             uint64
}

// Streams holds one user's recommendation slots. The dashboard and similar
// slots only move together during GlobalRefresh; every other operation
// touches exactly one slot.
type Streams struct {
	userID string
	engine Engine
	access AccessStore
	cache  service.JSONCache
	now    func() time.Time

	mu          sync.Mutex
	dashboard   slot
	similar     slot
	ai          aiSlot
	lastUpdated *time.Time
}

func NewStreams(userID string, engine Engine, access AccessStore, cache service.JSONCache) *Streams {
	return &Streams{
		userID: userID,
		engine: engine,
		access: access,
		cache:  cache,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func dashboardCacheKey(userID string) string { return fmt.Sprintf("recs:dashboard:%s", userID) }
func similarCacheKey(userID string) string   { return fmt.Sprintf("recs:similar:%s", userID) }
func aiCacheKey(userID string) string        { return fmt.Sprintf("recs:ai:%s", userID) }

func (s *Streams) beginLocked(sl *slot) uint64 {
	sl.seq++
	sl.loading = true
	return sl.seq
}

// applyLocked resolves a fetch against the slot. A stale token means a newer
// request owns the slot; the response is dropped and the loading flag left
// to that request. A failed fetch keeps the previous items.
func (s *Streams) applyLocked(sl *slot, name string, token uint64, items []model.Recommendation, err error) bool {
	if token != sl.seq {
		log.Printf("recs %s stale response discarded user_id=%s token=%d seq=%d", name, s.userID, token, sl.seq)
		return false
	}
	sl.loading = false
	if err != nil {
		return false
	}
	sl.items = items
	t := s.now()
	sl.lastRefreshedAt = &t
	return true
}

func (s *Streams) fetchDashboard(ctx context.Context, bypassCache bool) ([]model.Recommendation, error) {
	if s.cache != nil && !bypassCache {
		var cached []model.Recommendation
		if ok, err := s.cache.GetJSON(ctx, dashboardCacheKey(s.userID), &cached); err == nil && ok {
			return cached, nil
		}
	}
	items, err := s.engine.DashboardPicks(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, dashboardCacheKey(s.userID), items, dashboardCacheTTL); err != nil {
			log.Printf("recs dashboard cache set user_id=%s: %v", s.userID, err)
		}
	}
	return items, nil
}

func (s *Streams) fetchSimilar(ctx context.Context, force bool) ([]model.Recommendation, error) {
	if s.cache != nil && !force {
		var cached []model.Recommendation
		if ok, err := s.cache.GetJSON(ctx, similarCacheKey(s.userID), &cached); err == nil && ok {
			return cached, nil
		}
	}
	items, err := s.engine.SimilarContent(ctx, s.userID, force)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, similarCacheKey(s.userID), items, similarCacheTTL); err != nil {
			log.Printf("recs similar cache set user_id=%s: %v", s.userID, err)
		}
	}
	return items, nil
}

// LoadDashboard refreshes the dashboard slot without touching any other.
func (s *Streams) LoadDashboard(ctx context.Context) error {
	s.mu.Lock()
	token := s.beginLocked(&s.dashboard)
	s.mu.Unlock()

	items, err := s.fetchDashboard(ctx, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(&s.dashboard, "dashboard", token, items, err)
	return err
}

// LoadSimilar refreshes the similar-content slot without touching any other.
func (s *Streams) LoadSimilar(ctx context.Context, force bool) error {
	s.mu.Lock()
	token := s.beginLocked(&s.similar)
	s.mu.Unlock()

	items, err := s.fetchSimilar(ctx, force)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(&s.similar, "similar", token, items, err)
	return err
}

// GlobalRefresh triggers a server-side recomputation, then re-fetches the
// dashboard and similar slots in parallel. Both slots stay in the loading
// state for the whole duration and the shared LastUpdated timestamp is only
// stamped once both fetches have resolved successfully.
func (s *Streams) GlobalRefresh(ctx context.Context, force bool) error {
	s.mu.Lock()
	dashToken := s.beginLocked(&s.dashboard)
	simToken := s.beginLocked(&s.similar)
	s.mu.Unlock()

	if err := s.engine.TriggerRecompute(ctx, s.userID); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if dashToken == s.dashboard.seq {
			s.dashboard.loading = false
		}
		if simToken == s.similar.seq {
			s.similar.loading = false
		}
		return err
	}

	var (
		wg        sync.WaitGroup
		dashItems []model.Recommendation
		simItems  []model.Recommendation
		dashErr   error
		simErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		dashItems, dashErr = s.fetchDashboard(ctx, true)
	}()
	go func() {
		defer wg.Done()
		simItems, simErr = s.fetchSimilar(ctx, true)
	}()
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	dashOK := s.applyLocked(&s.dashboard, "dashboard", dashToken, dashItems, dashErr)
	simOK := s.applyLocked(&s.similar, "similar", simToken, simItems, simErr)
	if dashErr != nil {
		return dashErr
	}
	if simErr != nil {
		return simErr
	}
	if dashOK && simOK {
		t := s.now()
		s.lastUpdated = &t
	}
	return nil
}

// GenerateAI runs one AI generation attempt. The gate is checked before any
// network call. A quota-exhausted attempt still populates the slot, with the
// marker set, so the caller can render the dedicated exhausted state; it
// does not change the gate.
func (s *Streams) GenerateAI(ctx context.Context, force bool) (*model.AIInsights, error) {
	state, err := s.access.GetState(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	if state != model.AccessApproved {
		return nil, ErrAccessRequired
	}

	s.mu.Lock()
	s.ai.seq++
	token := s.ai.seq
	s.ai.loading = true
	s.mu.Unlock()

	insights, err := s.engine.GenerateAIInsights(ctx, s.userID, force)
	if errors.Is(err, service.ErrQuotaExceeded) {
		insights = &model.AIInsights{QuotaExceeded: true}
		err = nil
	}
	if insights != nil {
		insights.GeneratedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.ai.seq {
		log.Printf("recs ai stale response discarded user_id=%s token=%d seq=%d", s.userID, token, s.ai.seq)
		return insights, err
	}
	s.ai.loading = false
	if err != nil {
		return nil, err
	}
	s.ai.insights = insights
	t := s.now()
	s.ai.lastRefreshedAt = &t
	if s.cache != nil {
		if cerr := s.cache.SetJSON(ctx, aiCacheKey(s.userID), insights, aiCacheTTL); cerr != nil {
			log.Printf("recs ai cache set user_id=%s: %v", s.userID, cerr)
		}
	}
	return insights, nil
}

// PeekAI returns a previously generated result without issuing a generation
// request. It never flips the loading flag and does not count as a usage.
func (s *Streams) PeekAI(ctx context.Context) (*model.AIInsights, error) {
	s.mu.Lock()
	if s.ai.insights != nil {
		v := *s.ai.insights
		s.mu.Unlock()
		return &v, nil
	}
	s.mu.Unlock()

	if s.cache == nil {
		return nil, nil
	}
	var cached model.AIInsights
	ok, err := s.cache.GetJSON(ctx, aiCacheKey(s.userID), &cached)
	if err != nil || !ok {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ai.insights == nil && !s.ai.loading {
		v := cached
		s.ai.insights = &v
	}
	return &cached, nil
}

func copyItems(items []model.Recommendation) []model.Recommendation {
	out := make([]model.Recommendation, len(items))
	copy(out, items)
	return out
}

func (s *Streams) DashboardSnapshot() model.StreamSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.StreamSnapshot{
		Items:           copyItems(s.dashboard.items),
		Loading:         s.dashboard.loading,
		LastRefreshedAt: s.dashboard.lastRefreshedAt,
	}
}

func (s *Streams) SimilarSnapshot() model.StreamSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.StreamSnapshot{
		Items:           copyItems(s.similar.items),
		Loading:         s.similar.loading,
		LastRefreshedAt: s.similar.lastRefreshedAt,
	}
}

func (s *Streams) AISnapshotView() model.AISnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := model.AISnapshot{
		Loading:         s.ai.loading,
		LastRefreshedAt: s.ai.lastRefreshedAt,
	}
	if s.ai.insights != nil {
		v := *s.ai.insights
		v.Picks = copyItems(s.ai.insights.Picks)
		v.Strategy = copyItems(s.ai.insights.Strategy)
		v.Gaps = copyItems(s.ai.insights.Gaps)
		snap.Insights = &v
	}
	return snap
}

func (s *Streams) LastUpdated() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}
