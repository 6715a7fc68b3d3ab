package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/snapfeed/backend/internal/logging"
	"github.com/snapfeed/backend/internal/posts"
	"github.com/snapfeed/backend/internal/users"
)

// UserHandler implements the profile endpoints.
type UserHandler struct {
	Users UserService
}

// List handles GET /api/v1/users requests.
func (h UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	list, err := h.Users.List(ctx, limit)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewUsers(list))
}

// Get handles GET /api/v1/users/get requests.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	userID := strings.TrimSpace(r.URL.Query().Get("id"))
	if userID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewUser(user))
}

// Update handles POST /api/v1/users/update requests with a multipart body.
// Callers may only update their own profile.
func (h UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	token := bearerToken(r)
	if token == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "missing session token"})
		return
	}
	caller, err := h.Users.CurrentUser(ctx, token)
	if err != nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid session"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("invalid multipart body", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	input := users.UpdateUser{
		UserID:   caller.ID,
		Name:     strings.TrimSpace(r.FormValue("name")),
		Bio:      r.FormValue("bio"),
		ImageURL: caller.ImageURL,
		ImageID:  caller.ImageID,
	}
	if input.Name == "" {
		input.Name = caller.Name
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		input.File = &posts.FileUpload{Name: header.Filename, Content: file}
	}

	user, err := h.Users.Update(ctx, input)
	if err != nil {
		logger.Error("update profile", "userId", caller.ID, "error", err)
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewUser(user))
}
