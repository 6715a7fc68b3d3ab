package posts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/snapfeed/backend/internal/gateway"
	"github.com/snapfeed/backend/internal/models"
)

// postPayload is the stored document shape for a post. ExpiresAt is a
// pointer because legacy documents predate the field; the backfill helper
// fills it in.
type postPayload struct {
	Creator   string     `json:"creator,omitempty"`
	Caption   string     `json:"caption"`
	ImageURL  string     `json:"imageUrl"`
	ImageID   string     `json:"imageId"`
	Location  string     `json:"location"`
	Tags      []string   `json:"tags"`
	Likes     []string   `json:"likes,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type savePayload struct {
	User string `json:"user"`
	Post string `json:"post"`
}

func postFromDocument(doc gateway.Document) (models.Post, error) {
	var payload postPayload
	if err := json.Unmarshal(doc.Data, &payload); err != nil {
		return models.Post{}, fmt.Errorf("decode post %s: %w", doc.ID, err)
	}
	if payload.Creator == "" || payload.ImageID == "" {
		return models.Post{}, fmt.Errorf("post %s missing creator or image reference", doc.ID)
	}

	post := models.Post{
		ID:        doc.ID,
		CreatorID: payload.Creator,
		Caption:   payload.Caption,
		ImageURL:  payload.ImageURL,
		ImageID:   payload.ImageID,
		Location:  payload.Location,
		Tags:      payload.Tags,
		Likes:     payload.Likes,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if payload.ExpiresAt != nil {
		post.ExpiresAt = payload.ExpiresAt.UTC()
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	if post.Likes == nil {
		post.Likes = []string{}
	}
	return post, nil
}

func savedPostFromDocument(doc gateway.Document) (models.SavedPost, error) {
	var payload savePayload
	if err := json.Unmarshal(doc.Data, &payload); err != nil {
		return models.SavedPost{}, fmt.Errorf("decode saved post %s: %w", doc.ID, err)
	}
	if payload.User == "" || payload.Post == "" {
		return models.SavedPost{}, fmt.Errorf("saved post %s missing user or post reference", doc.ID)
	}

	return models.SavedPost{
		ID:        doc.ID,
		UserID:    payload.User,
		PostID:    payload.Post,
		CreatedAt: doc.CreatedAt,
	}, nil
}
