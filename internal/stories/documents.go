package stories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/snapfeed/backend/internal/gateway"
	"github.com/snapfeed/backend/internal/models"
)

// storyPayload is the stored document shape for a story.
type storyPayload struct {
	Creator   string     `json:"creator"`
	Caption   string     `json:"caption"`
	ImageURL  string     `json:"imageUrl"`
	ImageID   string     `json:"imageId"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func storyFromDocument(doc gateway.Document) (models.Story, error) {
	var payload storyPayload
	if err := json.Unmarshal(doc.Data, &payload); err != nil {
		return models.Story{}, fmt.Errorf("decode story %s: %w", doc.ID, err)
	}
	if payload.Creator == "" || payload.ImageID == "" {
		return models.Story{}, fmt.Errorf("story %s missing creator or image", doc.ID)
	}

	story := models.Story{
		ID:        doc.ID,
		CreatorID: payload.Creator,
		Caption:   payload.Caption,
		ImageURL:  payload.ImageURL,
		ImageID:   payload.ImageID,
		CreatedAt: doc.CreatedAt,
	}
	if payload.ExpiresAt != nil {
		story.ExpiresAt = payload.ExpiresAt.UTC()
	}
	return story, nil
}
