package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/NainishK/smartsubs/api/internal/repository"
	"github.com/NainishK/smartsubs/api/internal/watchlist"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, watchlist.ErrNotTracked):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, repository.ErrConflict):
		http.Error(w, "conflict", http.StatusConflict)
	case errors.Is(err, watchlist.ErrInvalidStatus), errors.Is(err, watchlist.ErrInvalidRating):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseIntOrDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}
