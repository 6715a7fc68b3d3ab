package handlers

import (
	"context"

	"github.com/snapfeed/backend/internal/gateway"
	"github.com/snapfeed/backend/internal/models"
	"github.com/snapfeed/backend/internal/posts"
	"github.com/snapfeed/backend/internal/stories"
	"github.com/snapfeed/backend/internal/users"
)

// UserService captures the identity and profile operations the HTTP layer
// needs.
type UserService interface {
	SignUp(ctx context.Context, input users.NewUser) (models.User, error)
	SignIn(ctx context.Context, email, password string) (models.Session, error)
	SignOut(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
	List(ctx context.Context, limit int) ([]models.User, error)
	Update(ctx context.Context, input users.UpdateUser) (models.User, error)
}

// PostService captures the post lifecycle and feed queries.
type PostService interface {
	Create(ctx context.Context, input posts.NewPost) (models.Post, error)
	Update(ctx context.Context, input posts.UpdatePost) (models.Post, error)
	Delete(ctx context.Context, postID, imageID string) error
	GetByID(ctx context.Context, postID string) (models.Post, error)
	Feed(ctx context.Context, cursor string) (posts.FeedPage, error)
	Recent(ctx context.Context) ([]models.Post, error)
	ByCreator(ctx context.Context, userID string) ([]models.Post, error)
	Search(ctx context.Context, term string) ([]models.Post, error)
	Like(ctx context.Context, postID string, likers []string) (models.Post, error)
	LikedBy(ctx context.Context, userID string) ([]models.Post, error)
	Save(ctx context.Context, userID, postID string) (models.SavedPost, error)
	Unsave(ctx context.Context, savedRecordID string) error
	SavedFor(ctx context.Context, userID string) ([]models.SavedPost, error)
}

// StoryService captures the story tray operations, including the live
// change feed behind the streaming endpoint.
type StoryService interface {
	Create(ctx context.Context, input stories.NewStory) (models.Story, error)
	GetByID(ctx context.Context, storyID string) (models.Story, error)
	Delete(ctx context.Context, storyID, imageID string) error
	Active(ctx context.Context) ([]models.Story, error)
	Subscribe(ctx context.Context, fn func(stories.Event)) (gateway.CancelFunc, error)
}
