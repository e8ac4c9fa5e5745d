package handler

import (
	"errors"
	"net/http"

	"github.com/NainishK/smartsubs/api/internal/middleware"
	"github.com/NainishK/smartsubs/api/internal/model"
	"github.com/NainishK/smartsubs/api/internal/recommend"
	"github.com/NainishK/smartsubs/api/internal/watchlist"
)

type RecommendHandler struct {
	streams  *recommend.Manager
	sessions *watchlist.Manager
}

func NewRecommendHandler(streams *recommend.Manager, sessions *watchlist.Manager) *RecommendHandler {
	return &RecommendHandler{streams: streams, sessions: sessions}
}

func (h *RecommendHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	s := h.streams.Get(userID)
	snap := s.DashboardSnapshot()
	if len(snap.Items) == 0 && !snap.Loading {
		if err := s.LoadDashboard(r.Context()); err != nil {
			http.Error(w, "recommendations unavailable", http.StatusBadGateway)
			return
		}
		snap = s.DashboardSnapshot()
	}
	snap.Items = h.sessions.Get(userID).Decorate(r.Context(), snap.Items)
	writeJSON(w, snap)
}

func (h *RecommendHandler) Similar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	force := r.URL.Query().Get("force") == "1"
	s := h.streams.Get(userID)
	snap := s.SimilarSnapshot()
	if force || (len(snap.Items) == 0 && !snap.Loading) {
		if err := s.LoadSimilar(r.Context(), force); err != nil {
			http.Error(w, "recommendations unavailable", http.StatusBadGateway)
			return
		}
		snap = s.SimilarSnapshot()
	}
	snap.Items = h.sessions.Get(userID).Decorate(r.Context(), snap.Items)
	writeJSON(w, snap)
}

// Refresh runs the global refresh: recompute, then dashboard and similar
// re-fetched together.
func (h *RecommendHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	force := r.URL.Query().Get("force") == "1"
	s := h.streams.Get(userID)
	if err := s.GlobalRefresh(r.Context(), force); err != nil {
		http.Error(w, "refresh failed", http.StatusBadGateway)
		return
	}
	sess := h.sessions.Get(userID)
	dashboard := s.DashboardSnapshot()
	dashboard.Items = sess.Decorate(r.Context(), dashboard.Items)
	similar := s.SimilarSnapshot()
	similar.Items = sess.Decorate(r.Context(), similar.Items)
	writeJSON(w, map[string]any{
		"dashboard":    dashboard,
		"similar":      similar,
		"last_updated": s.LastUpdated(),
	})
}

func (h *RecommendHandler) GenerateAI(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	force := r.URL.Query().Get("force") == "1"
	s := h.streams.Get(userID)
	if _, err := s.GenerateAI(r.Context(), force); err != nil {
		if errors.Is(err, recommend.ErrAccessRequired) {
			http.Error(w, "ai access not approved", http.StatusForbidden)
			return
		}
		http.Error(w, "generation failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, h.decoratedAISnapshot(r, userID, s))
}

// PeekAI serves a prior session's cached result without generating.
func (h *RecommendHandler) PeekAI(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	s := h.streams.Get(userID)
	if _, err := s.PeekAI(r.Context()); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.decoratedAISnapshot(r, userID, s))
}

func (h *RecommendHandler) decoratedAISnapshot(r *http.Request, userID string, s *recommend.Streams) model.AISnapshot {
	snap := s.AISnapshotView()
	if snap.Insights != nil {
		sess := h.sessions.Get(userID)
		snap.Insights.Picks = sess.Decorate(r.Context(), snap.Insights.Picks)
		snap.Insights.Strategy = sess.Decorate(r.Context(), snap.Insights.Strategy)
		snap.Insights.Gaps = sess.Decorate(r.Context(), snap.Insights.Gaps)
	}
	return snap
}

func (h *RecommendHandler) AccessState(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	state, err := h.streams.Get(userID).AccessState(r.Context())
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, map[string]any{"state": state})
}

func (h *RecommendHandler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	state, err := h.streams.Get(userID).RequestAccess(r.Context())
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, map[string]any{"state": state})
}
