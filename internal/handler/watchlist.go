package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/NainishK/smartsubs/api/internal/middleware"
	"github.com/NainishK/smartsubs/api/internal/model"
	"github.com/NainishK/smartsubs/api/internal/service"
	"github.com/NainishK/smartsubs/api/internal/watchlist"
	"github.com/go-chi/chi/v5"
)

const enrichTimeout = 20 * time.Second

type WatchlistHandler struct {
	sessions  *watchlist.Manager
	publisher *service.EventPublisher
}

func NewWatchlistHandler(sessions *watchlist.Manager, publisher *service.EventPublisher) *WatchlistHandler {
	return &WatchlistHandler{sessions: sessions, publisher: publisher}
}

// List returns the watchlist immediately and kicks availability enrichment
// in the background; badges show up on a later read.
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	sess := h.sessions.Get(userID)
	records, err := sess.Records(r.Context())
	if err != nil {
		writeRepoError(w, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
		defer cancel()
		if err := sess.Enrich(ctx); err != nil {
			log.Printf("watchlist enrich user_id=%s: %v", userID, err)
		}
	}()

	writeJSON(w, map[string]any{"records": records})
}

// Reload rebuilds the session view and index from the store.
func (h *WatchlistHandler) Reload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	sess := h.sessions.Get(userID)
	if err := sess.Reload(r.Context()); err != nil {
		writeRepoError(w, err)
		return
	}
	records, err := sess.Records(r.Context())
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, map[string]any{"records": records})
}

type transitionRequest struct {
	Item   model.CatalogItem `json:"item"`
	Status model.WatchStatus `json:"status"`
	Rating *int              `json:"rating,omitempty"`
}

func (h *WatchlistHandler) Transition(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	var body transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if body.Item.ExternalID <= 0 {
		http.Error(w, "invalid external id", http.StatusBadRequest)
		return
	}
	if !model.ValidMediaType(body.Item.MediaType) {
		http.Error(w, "invalid media type", http.StatusBadRequest)
		return
	}

	sess := h.sessions.Get(userID)
	rec, err := sess.ApplyTransition(r.Context(), body.Item, body.Status, body.Rating)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	h.publisher.SendWatchlistChanged(r.Context(), userID, rec.Item.ExternalID, "transition")
	writeJSON(w, rec)
}

func (h *WatchlistHandler) SetRating(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	externalID, ok := externalIDParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Rating int `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	sess := h.sessions.Get(userID)
	rec, err := sess.SetRating(r.Context(), externalID, body.Rating)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	h.publisher.SendWatchlistChanged(r.Context(), userID, externalID, "rating")
	writeJSON(w, rec)
}

func (h *WatchlistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	externalID, ok := externalIDParam(w, r)
	if !ok {
		return
	}
	sess := h.sessions.Get(userID)
	if err := sess.Remove(r.Context(), externalID); err != nil {
		writeRepoError(w, err)
		return
	}
	h.publisher.SendWatchlistChanged(r.Context(), userID, externalID, "remove")
	w.WriteHeader(http.StatusNoContent)
}

func (h *WatchlistHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	stats, err := h.sessions.Get(userID).Stats(r.Context())
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, stats)
}

func externalIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, "externalId"), 10, 64)
	if err != nil || v <= 0 {
		http.Error(w, "invalid external id", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}
