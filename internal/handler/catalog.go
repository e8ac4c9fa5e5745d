package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/NainishK/smartsubs/api/internal/model"
	"github.com/NainishK/smartsubs/api/internal/service"
	"github.com/go-chi/chi/v5"
)

const (
	catalogSearchCacheTTL = 10 * time.Minute
	catalogDetailCacheTTL = 6 * time.Hour
)

type CatalogHandler struct {
	catalog *service.CatalogClient
	cache   service.JSONCache
}

func NewCatalogHandler(catalog *service.CatalogClient, cache service.JSONCache) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, cache: cache}
}

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 20)
	cacheKey := fmt.Sprintf("catalog:search:%s", query)
	if h.cache != nil {
		var cached []model.CatalogItem
		if ok, err := h.cache.GetJSON(r.Context(), cacheKey, &cached); err == nil && ok {
			catalogSearchCacheCounter.hits.Add(1)
			writeJSON(w, map[string]any{"items": truncateItems(cached, limit)})
			return
		} else if err != nil {
			catalogSearchCacheCounter.errors.Add(1)
			log.Printf("catalog search cache get key=%s: %v", cacheKey, err)
		}
		catalogSearchCacheCounter.misses.Add(1)
	}

	items, err := h.catalog.Search(r.Context(), query)
	if err != nil {
		http.Error(w, "catalog unavailable", http.StatusBadGateway)
		return
	}
	if h.cache != nil {
		if err := h.cache.SetJSON(r.Context(), cacheKey, items, catalogSearchCacheTTL); err != nil {
			catalogSearchCacheCounter.errors.Add(1)
			log.Printf("catalog search cache set key=%s: %v", cacheKey, err)
		}
	}
	writeJSON(w, map[string]any{"items": truncateItems(items, limit)})
}

func truncateItems(items []model.CatalogItem, limit int) []model.CatalogItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func (h *CatalogHandler) Detail(w http.ResponseWriter, r *http.Request) {
	mediaType, externalID, ok := catalogParams(w, r)
	if !ok {
		return
	}
	cacheKey := fmt.Sprintf("catalog:detail:%s:%d", mediaType, externalID)
	if h.cache != nil {
		var cached model.CatalogItem
		if found, err := h.cache.GetJSON(r.Context(), cacheKey, &cached); err == nil && found {
			catalogDetailCacheCounter.hits.Add(1)
			writeJSON(w, &cached)
			return
		} else if err != nil {
			catalogDetailCacheCounter.errors.Add(1)
			log.Printf("catalog detail cache get key=%s: %v", cacheKey, err)
		}
		catalogDetailCacheCounter.misses.Add(1)
	}

	item, err := h.catalog.Details(r.Context(), mediaType, externalID)
	if err != nil {
		if errors.Is(err, service.ErrCatalogNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "catalog unavailable", http.StatusBadGateway)
		return
	}
	if h.cache != nil {
		if err := h.cache.SetJSON(r.Context(), cacheKey, item, catalogDetailCacheTTL); err != nil {
			catalogDetailCacheCounter.errors.Add(1)
			log.Printf("catalog detail cache set key=%s: %v", cacheKey, err)
		}
	}
	writeJSON(w, item)
}

func (h *CatalogHandler) Availability(w http.ResponseWriter, r *http.Request) {
	mediaType, externalID, ok := catalogParams(w, r)
	if !ok {
		return
	}
	badge, err := h.catalog.Availability(r.Context(), mediaType, externalID)
	if err != nil {
		if errors.Is(err, service.ErrCatalogNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "catalog unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]any{
		"external_id":        externalID,
		"media_type":         mediaType,
		"availability_badge": badge,
	})
}

func catalogParams(w http.ResponseWriter, r *http.Request) (model.MediaType, int64, bool) {
	mediaType := model.MediaType(chi.URLParam(r, "mediaType"))
	if !model.ValidMediaType(mediaType) {
		http.Error(w, "invalid media type", http.StatusBadRequest)
		return "", 0, false
	}
	externalID, err := strconv.ParseInt(chi.URLParam(r, "externalId"), 10, 64)
	if err != nil || externalID <= 0 {
		http.Error(w, "invalid external id", http.StatusBadRequest)
		return "", 0, false
	}
	return mediaType, externalID, true
}
