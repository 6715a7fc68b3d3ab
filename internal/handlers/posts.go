package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/snapfeed/backend/internal/logging"
	"github.com/snapfeed/backend/internal/models"
	"github.com/snapfeed/backend/internal/posts"
)

// maxUploadBytes bounds multipart request bodies.
const maxUploadBytes = 32 << 20

// PostHandler implements the post lifecycle and feed endpoints. Writes
// require a signed-in caller; the creator is always taken from the session,
// never from the request body.
type PostHandler struct {
	Posts PostService
	Users UserService
}

// Create handles POST /api/v1/posts requests with a multipart body.
func (h PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	caller, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("invalid multipart body", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	input := posts.NewPost{
		CreatorID: caller.ID,
		Caption:   strings.TrimSpace(r.FormValue("caption")),
		Location:  strings.TrimSpace(r.FormValue("location")),
		Tags:      r.FormValue("tags"),
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		input.File = &posts.FileUpload{Name: header.Filename, Content: file}
	}

	post, err := h.Posts.Create(ctx, input)
	if err != nil {
		logger.Error("create post", "creator", caller.ID, "error", err)
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, viewPost(post))
}

// Update handles POST /api/v1/posts/update requests with a multipart body.
func (h PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	caller, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("invalid multipart body", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	postID := strings.TrimSpace(r.FormValue("postId"))
	if postID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "postId is required"})
		return
	}

	if _, ok := h.requireOwnership(w, r, caller, postID); !ok {
		return
	}

	input := posts.UpdatePost{
		PostID:   postID,
		Caption:  strings.TrimSpace(r.FormValue("caption")),
		Location: strings.TrimSpace(r.FormValue("location")),
		Tags:     r.FormValue("tags"),
		ImageURL: r.FormValue("imageUrl"),
		ImageID:  r.FormValue("imageId"),
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		input.File = &posts.FileUpload{Name: header.Filename, Content: file}
	}

	post, err := h.Posts.Update(ctx, input)
	if err != nil {
		logger.Error("update post", "postId", postID, "error", err)
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewPost(post))
}

// Delete handles POST /api/v1/posts/delete requests.
func (h PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	caller, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req deletePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// The file reference comes from the stored record, never the request
	// body, so a caller cannot aim the cleanup at someone else's object.
	var imageID string
	if req.PostID != "" {
		post, ok := h.requireOwnership(w, r, caller, req.PostID)
		if !ok {
			return
		}
		imageID = post.ImageID
	}

	if err := h.Posts.Delete(ctx, req.PostID, imageID); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Get handles GET /api/v1/posts/get requests.
func (h PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	postID := strings.TrimSpace(r.URL.Query().Get("id"))
	if postID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}

	post, err := h.Posts.GetByID(ctx, postID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewPost(post))
}

// Feed handles GET /api/v1/posts/feed requests with keyset pagination.
func (h PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	page, err := h.Posts.Feed(ctx, strings.TrimSpace(r.URL.Query().Get("cursor")))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, feedResponse{
		Posts:      viewPosts(page.Posts),
		NextCursor: page.NextCursor,
	})
}

// Recent handles GET /api/v1/posts/recent requests.
func (h PostHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	list, err := h.Posts.Recent(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewPosts(list))
}

// Search handles GET /api/v1/posts/search requests.
func (h PostHandler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		respondJSON(ctx, w, http.StatusOK, viewPosts(nil))
		return
	}

	list, err := h.Posts.Search(ctx, term)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewPosts(list))
}

// ByUser handles GET /api/v1/posts/by-user requests.
func (h PostHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	list, err := h.Posts.ByCreator(ctx, strings.TrimSpace(r.URL.Query().Get("userId")))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewPosts(list))
}

// Like handles POST /api/v1/posts/like requests. The body carries the
// complete like set the caller observed after toggling; last writer wins.
func (h PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.PostID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "postId is required"})
		return
	}

	post, err := h.Posts.Like(ctx, req.PostID, req.Likes)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewPost(post))
}

// Liked handles GET /api/v1/posts/liked requests for the signed-in caller.
func (h PostHandler) Liked(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	caller, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	list, err := h.Posts.LikedBy(ctx, caller.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewPosts(list))
}

// Save handles POST /api/v1/posts/save requests.
func (h PostHandler) Save(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	caller, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.PostID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "postId is required"})
		return
	}

	saved, err := h.Posts.Save(ctx, caller.ID, req.PostID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, savedPostView{
		ID:        saved.ID,
		UserID:    saved.UserID,
		PostID:    saved.PostID,
		CreatedAt: saved.CreatedAt,
	})
}

// Unsave handles POST /api/v1/posts/unsave requests.
func (h PostHandler) Unsave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	var req unsaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.SavedID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "savedId is required"})
		return
	}

	if err := h.Posts.Unsave(ctx, req.SavedID); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "removed"})
}

// Saved handles GET /api/v1/posts/saved requests for the signed-in caller.
func (h PostHandler) Saved(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	caller, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	list, err := h.Posts.SavedFor(ctx, caller.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewSavedPosts(list))
}

// requireUser resolves the signed-in caller, writing a 401 when absent.
func (h PostHandler) requireUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	ctx := r.Context()

	token := bearerToken(r)
	if token == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "missing session token"})
		return models.User{}, false
	}

	user, err := h.Users.CurrentUser(ctx, token)
	if err != nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid session"})
		return models.User{}, false
	}
	return user, true
}

// requireOwnership rejects writes against posts the caller does not own,
// returning the stored post on success.
func (h PostHandler) requireOwnership(w http.ResponseWriter, r *http.Request, caller models.User, postID string) (models.Post, bool) {
	ctx := r.Context()

	post, err := h.Posts.GetByID(ctx, postID)
	if err != nil {
		respondError(ctx, w, err)
		return models.Post{}, false
	}
	if post.CreatorID != caller.ID {
		logging.FromContext(ctx).Warn("post ownership rejected", "postId", postID, "caller", caller.ID)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "not your post"})
		return models.Post{}, false
	}
	return post, true
}

type deletePostRequest struct {
	PostID string `json:"postId"`
}

type likeRequest struct {
	PostID string   `json:"postId"`
	Likes  []string `json:"likes"`
}

type saveRequest struct {
	PostID string `json:"postId"`
}

type unsaveRequest struct {
	SavedID string `json:"savedId"`
}

type feedResponse struct {
	Posts      []postView `json:"posts"`
	NextCursor string     `json:"nextCursor,omitempty"`
}
