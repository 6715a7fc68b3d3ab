package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/snapfeed/backend/internal/gateway"
	"github.com/snapfeed/backend/internal/models"
	"github.com/snapfeed/backend/internal/posts"
	"github.com/snapfeed/backend/internal/stories"
	"github.com/snapfeed/backend/internal/users"
)

var assertErr = errors.New("service failure")

func sessionFixture() models.Session {
	return models.Session{Token: "token-1", AccountID: "acct-1"}
}

func userFixture() models.User {
	return models.User{
		ID:        "user-1",
		AccountID: "acct-1",
		Name:      "Ada",
		ImageURL:  "https://cdn.test/preview/avatar-1",
		ImageID:   "avatar-1",
	}
}

type fakeUserService struct {
	user       models.User
	session    models.Session
	signUpErr  error
	signInErr  error
	currentErr error
	updateErr  error
	signedOut  []string
	updated    []users.UpdateUser
}

func (f *fakeUserService) SignUp(_ context.Context, input users.NewUser) (models.User, error) {
	if f.signUpErr != nil {
		return models.User{}, f.signUpErr
	}
	f.user = models.User{ID: "user-1", AccountID: "acct-1", Name: input.Name, Username: input.Username, Email: input.Email}
	return f.user, nil
}

func (f *fakeUserService) SignIn(_ context.Context, email, _ string) (models.Session, error) {
	if f.signInErr != nil {
		return models.Session{}, f.signInErr
	}
	if f.session.Token == "" {
		f.session = models.Session{Token: "token-1", AccountID: "acct-1"}
	}
	return f.session, nil
}

func (f *fakeUserService) SignOut(_ context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return nil
}

func (f *fakeUserService) CurrentUser(_ context.Context, token string) (models.User, error) {
	if f.currentErr != nil {
		return models.User{}, f.currentErr
	}
	if token != f.session.Token {
		return models.User{}, fmt.Errorf("session: %w", gateway.ErrAuth)
	}
	return f.user, nil
}

func (f *fakeUserService) GetByID(_ context.Context, userID string) (models.User, error) {
	if userID == f.user.ID {
		return f.user, nil
	}
	return models.User{}, gateway.ErrNotFound
}

func (f *fakeUserService) List(_ context.Context, _ int) ([]models.User, error) {
	return []models.User{f.user}, nil
}

func (f *fakeUserService) Update(_ context.Context, input users.UpdateUser) (models.User, error) {
	if f.updateErr != nil {
		return models.User{}, f.updateErr
	}
	f.updated = append(f.updated, input)
	f.user.Name = input.Name
	f.user.Bio = input.Bio
	return f.user, nil
}

type fakePostService struct {
	posts     map[string]models.Post
	seq       int
	createErr error
	likeErr   error
	feedPage  posts.FeedPage
	deleted   [][2]string
	unsaved   []string
}

func newFakePostService() *fakePostService {
	return &fakePostService{posts: make(map[string]models.Post)}
}

func (f *fakePostService) Create(_ context.Context, input posts.NewPost) (models.Post, error) {
	if f.createErr != nil {
		return models.Post{}, f.createErr
	}
	if input.File == nil {
		return models.Post{}, fmt.Errorf("post attachment is required: %w", gateway.ErrUpload)
	}
	f.seq++
	post := models.Post{
		ID:        fmt.Sprintf("post-%d", f.seq),
		CreatorID: input.CreatorID,
		Caption:   input.Caption,
		Location:  input.Location,
		Tags:      posts.ParseTags(input.Tags),
		Likes:     []string{},
	}
	f.posts[post.ID] = post
	return post, nil
}

func (f *fakePostService) Update(_ context.Context, input posts.UpdatePost) (models.Post, error) {
	post, ok := f.posts[input.PostID]
	if !ok {
		return models.Post{}, gateway.ErrNotFound
	}
	post.Caption = input.Caption
	post.Location = input.Location
	post.Tags = posts.ParseTags(input.Tags)
	f.posts[input.PostID] = post
	return post, nil
}

func (f *fakePostService) Delete(_ context.Context, postID, imageID string) error {
	f.deleted = append(f.deleted, [2]string{postID, imageID})
	delete(f.posts, postID)
	return nil
}

func (f *fakePostService) GetByID(_ context.Context, postID string) (models.Post, error) {
	post, ok := f.posts[postID]
	if !ok {
		return models.Post{}, gateway.ErrNotFound
	}
	return post, nil
}

func (f *fakePostService) Feed(_ context.Context, _ string) (posts.FeedPage, error) {
	return f.feedPage, nil
}

func (f *fakePostService) Recent(_ context.Context) ([]models.Post, error) {
	return f.feedPage.Posts, nil
}

func (f *fakePostService) ByCreator(_ context.Context, userID string) ([]models.Post, error) {
	var result []models.Post
	for _, post := range f.posts {
		if post.CreatorID == userID {
			result = append(result, post)
		}
	}
	return result, nil
}

func (f *fakePostService) Search(_ context.Context, _ string) ([]models.Post, error) {
	return f.feedPage.Posts, nil
}

func (f *fakePostService) Like(_ context.Context, postID string, likers []string) (models.Post, error) {
	if f.likeErr != nil {
		return models.Post{}, f.likeErr
	}
	post, ok := f.posts[postID]
	if !ok {
		return models.Post{}, gateway.ErrNotFound
	}
	post.Likes = likers
	f.posts[postID] = post
	return post, nil
}

func (f *fakePostService) LikedBy(_ context.Context, _ string) ([]models.Post, error) {
	return f.feedPage.Posts, nil
}

func (f *fakePostService) Save(_ context.Context, userID, postID string) (models.SavedPost, error) {
	f.seq++
	return models.SavedPost{ID: fmt.Sprintf("save-%d", f.seq), UserID: userID, PostID: postID}, nil
}

func (f *fakePostService) Unsave(_ context.Context, savedRecordID string) error {
	f.unsaved = append(f.unsaved, savedRecordID)
	return nil
}

func (f *fakePostService) SavedFor(_ context.Context, userID string) ([]models.SavedPost, error) {
	return []models.SavedPost{{ID: "save-1", UserID: userID, PostID: "post-1"}}, nil
}

type fakeStoryService struct {
	active    []models.Story
	stories   map[string]models.Story
	createErr error
	deleted   [][2]string
	subscribe func(ctx context.Context, fn func(stories.Event)) (gateway.CancelFunc, error)
}

func (f *fakeStoryService) Create(_ context.Context, input stories.NewStory) (models.Story, error) {
	if f.createErr != nil {
		return models.Story{}, f.createErr
	}
	if input.File == nil {
		return models.Story{}, fmt.Errorf("story requires an attachment: %w", gateway.ErrUpload)
	}
	return models.Story{ID: "story-1", CreatorID: input.CreatorID, Caption: input.Caption}, nil
}

func (f *fakeStoryService) GetByID(_ context.Context, storyID string) (models.Story, error) {
	story, ok := f.stories[storyID]
	if !ok {
		return models.Story{}, fmt.Errorf("story %s: %w", storyID, gateway.ErrNotFound)
	}
	return story, nil
}

func (f *fakeStoryService) Delete(_ context.Context, storyID, imageID string) error {
	f.deleted = append(f.deleted, [2]string{storyID, imageID})
	return nil
}

func (f *fakeStoryService) Active(_ context.Context) ([]models.Story, error) {
	return f.active, nil
}

func (f *fakeStoryService) Subscribe(ctx context.Context, fn func(stories.Event)) (gateway.CancelFunc, error) {
	if f.subscribe != nil {
		return f.subscribe(ctx, fn)
	}
	return func() {}, nil
}

var (
	_ UserService  = (*fakeUserService)(nil)
	_ PostService  = (*fakePostService)(nil)
	_ StoryService = (*fakeStoryService)(nil)
)
