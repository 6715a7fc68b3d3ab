package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/snapfeed/backend/internal/logging"
	"github.com/snapfeed/backend/internal/posts"
	"github.com/snapfeed/backend/internal/stories"
)

// streamWriteTimeout bounds a single websocket write.
const streamWriteTimeout = 10 * time.Second

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// StoryHandler implements the story tray endpoints.
type StoryHandler struct {
	Stories StoryService
	Users   UserService
}

// Route dispatches /api/v1/stories by method: GET lists the active tray,
// POST publishes a story.
func (h StoryHandler) Route(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.Active(w, r)
	case http.MethodPost:
		h.Create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Active handles GET /api/v1/stories requests.
func (h StoryHandler) Active(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	list, err := h.Stories.Active(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewStories(list))
}

// Create handles POST /api/v1/stories requests with a multipart body.
func (h StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	input := stories.NewStory{
		CreatorID: caller.ID,
		Caption:   strings.TrimSpace(r.FormValue("caption")),
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		input.File = &posts.FileUpload{Name: header.Filename, Content: file}
	}

	story, err := h.Stories.Create(ctx, input)
	if err != nil {
		logger.Error("create story", "creator", caller.ID, "error", err)
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, viewStory(story))
}

// Delete handles POST /api/v1/stories/delete requests.
func (h StoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

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

	var req deleteStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.StoryID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "storyId is required"})
		return
	}

	// The file reference comes from the stored record, never the request
	// body, so a caller cannot aim the cleanup at someone else's object.
	story, err := h.Stories.GetByID(ctx, req.StoryID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if story.CreatorID != caller.ID {
		logging.FromContext(ctx).Warn("story ownership rejected", "storyId", story.ID, "caller", caller.ID)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "not your story"})
		return
	}

	if err := h.Stories.Delete(ctx, story.ID, story.ImageID); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Stream handles GET /api/v1/stories/stream requests, upgrading to a
// websocket that delivers story creations and deletions as they happen.
func (h StoryHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Buffered so a slow client sheds events instead of blocking the
	// listener callback.
	events := make(chan stories.Event, 16)
	cancel, err := h.Stories.Subscribe(ctx, func(ev stories.Event) {
		select {
		case events <- ev:
		default:
			logger.Warn("story stream backlogged, dropping event", "storyId", ev.Story.ID)
		}
	})
	if err != nil {
		logger.Error("subscribe story feed", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"),
			time.Now().Add(streamWriteTimeout))
		return
	}
	defer cancel()

	// The read loop exists to observe the peer closing the socket.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(storyEventView{Kind: string(ev.Kind), Story: viewStory(ev.Story)}); err != nil {
				logger.Warn("write story event", "error", err)
				return
			}
		}
	}
}

type deleteStoryRequest struct {
	StoryID string `json:"storyId"`
}

type storyEventView struct {
	Kind  string    `json:"kind"`
	Story storyView `json:"story"`
}
