package handlers

import (
	"time"

	"github.com/snapfeed/backend/internal/models"
)

// View types are the JSON shapes the API returns. They are deliberately
// separate from the stored document payloads so the wire format can evolve
// without touching persistence.

type userView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	ImageURL  string    `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

type sessionView struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type postView struct {
	ID        string    `json:"id"`
	CreatorID string    `json:"creator"`
	Caption   string    `json:"caption"`
	ImageURL  string    `json:"imageUrl"`
	ImageID   string    `json:"imageId"`
	Location  string    `json:"location,omitempty"`
	Tags      []string  `json:"tags"`
	Likes     []string  `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type savedPostView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	PostID    string    `json:"post"`
	CreatedAt time.Time `json:"createdAt"`
}

type storyView struct {
	ID        string    `json:"id"`
	CreatorID string    `json:"creator"`
	Caption   string    `json:"caption,omitempty"`
	ImageURL  string    `json:"imageUrl"`
	ImageID   string    `json:"imageId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func viewUser(user models.User) userView {
	return userView{
		ID:        user.ID,
		Name:      user.Name,
		Username:  user.Username,
		Email:     user.Email,
		Bio:       user.Bio,
		ImageURL:  user.ImageURL,
		CreatedAt: user.CreatedAt,
	}
}

func viewUsers(list []models.User) []userView {
	result := make([]userView, 0, len(list))
	for _, user := range list {
		result = append(result, viewUser(user))
	}
	return result
}

func viewPost(post models.Post) postView {
	return postView{
		ID:        post.ID,
		CreatorID: post.CreatorID,
		Caption:   post.Caption,
		ImageURL:  post.ImageURL,
		ImageID:   post.ImageID,
		Location:  post.Location,
		Tags:      post.Tags,
		Likes:     post.Likes,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
		ExpiresAt: post.ExpiresAt,
	}
}

func viewPosts(list []models.Post) []postView {
	result := make([]postView, 0, len(list))
	for _, post := range list {
		result = append(result, viewPost(post))
	}
	return result
}

func viewSavedPosts(list []models.SavedPost) []savedPostView {
	result := make([]savedPostView, 0, len(list))
	for _, saved := range list {
		result = append(result, savedPostView{
			ID:        saved.ID,
			UserID:    saved.UserID,
			PostID:    saved.PostID,
			CreatedAt: saved.CreatedAt,
		})
	}
	return result
}

func viewStory(story models.Story) storyView {
	return storyView{
		ID:        story.ID,
		CreatorID: story.CreatorID,
		Caption:   story.Caption,
		ImageURL:  story.ImageURL,
		ImageID:   story.ImageID,
		CreatedAt: story.CreatedAt,
		ExpiresAt: story.ExpiresAt,
	}
}

func viewStories(list []models.Story) []storyView {
	result := make([]storyView, 0, len(list))
	for _, story := range list {
		result = append(result, viewStory(story))
	}
	return result
}
