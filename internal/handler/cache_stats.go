package handler

import (
	"net/http"
	"sync/atomic"
)

type cacheCounter struct {
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

type cacheStatsSnapshot struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

var (
	catalogSearchCacheCounter cacheCounter
	catalogDetailCacheCounter cacheCounter
)

func (c *cacheCounter) snapshot() cacheStatsSnapshot {
	return cacheStatsSnapshot{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}
}

type CacheStatsHandler struct{}

func NewCacheStatsHandler() *CacheStatsHandler { return &CacheStatsHandler{} }

func (h *CacheStatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]cacheStatsSnapshot{
		"catalog_search": catalogSearchCacheCounter.snapshot(),
		"catalog_detail": catalogDetailCacheCounter.snapshot(),
	})
}
