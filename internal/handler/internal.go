package handler

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/NainishK/smartsubs/api/internal/repository"
)

// InternalHandler serves endpoints called by the frontend server only,
// protected by a shared secret rather than a user token.
type InternalHandler struct {
	users *repository.UserRepo
}

func NewInternalHandler(users *repository.UserRepo) *InternalHandler {
	return &InternalHandler{users: users}
}

func (h *InternalHandler) authorized(r *http.Request) bool {
	secret := os.Getenv("INTERNAL_API_SECRET")
	return secret != "" && r.Header.Get("X-Internal-Secret") == secret
}

func (h *InternalHandler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var body struct {
		ID    string  `json:"id"`
		Email string  `json:"email"`
		Name  *string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if body.ID == "" || body.Email == "" {
		http.Error(w, "id and email are required", http.StatusBadRequest)
		return
	}
	user, err := h.users.Upsert(r.Context(), body.ID, body.Email, body.Name)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, user)
}
