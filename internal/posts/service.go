package posts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/snapfeed/backend/internal/config"
	"github.com/snapfeed/backend/internal/gateway"
	"github.com/snapfeed/backend/internal/logging"
	"github.com/snapfeed/backend/internal/models"
)

const (
	// FeedPageSize is the fixed page size of the infinite feed.
	FeedPageSize = 9
	// recentLimit caps the uncursored recent-posts listing.
	recentLimit = 20

	previewWidth   = 2000
	previewHeight  = 2000
	previewGravity = "top"
	previewQuality = 100
)

// FileUpload is an attachment submitted with a post.
type FileUpload struct {
	Name    string
	Content io.Reader
}

// NewPost is the input for Create. The file attachment is required.
type NewPost struct {
	CreatorID string
	Caption   string
	Location  string
	Tags      string
	File      *FileUpload
}

// UpdatePost is the input for Update. File is optional; when absent the
// existing ImageURL/ImageID pair is kept.
type UpdatePost struct {
	PostID   string
	Caption  string
	Location string
	Tags     string
	ImageURL string
	ImageID  string
	File     *FileUpload
}

// FeedPage is one page of the infinite feed. NextCursor is empty when the
// feed is exhausted.
type FeedPage struct {
	Posts      []models.Post
	NextCursor string
}

// Service composes gateway calls into the post lifecycle. Every operation is
// a single attempt: failures are logged and returned, never retried.
type Service struct {
	documents gateway.DocumentStore
	files     gateway.FileStore
	posts     string
	saves     string
	NowFunc   func() time.Time
}

// NewService constructs the post domain service.
func NewService(documents gateway.DocumentStore, files gateway.FileStore, collections config.Collections) *Service {
	return &Service{
		documents: documents,
		files:     files,
		posts:     collections.Posts,
		saves:     collections.Saves,
	}
}

func previewOptions() gateway.PreviewOptions {
	return gateway.PreviewOptions{
		Width:   previewWidth,
		Height:  previewHeight,
		Gravity: previewGravity,
		Quality: previewQuality,
	}
}

// Create uploads the attachment, derives its preview, and persists the post.
// The expiry instant is computed once, here, as creation time plus the
// shared window; it is never recomputed. Failed steps compensate by deleting
// the freshly uploaded file.
func (s *Service) Create(ctx context.Context, input NewPost) (models.Post, error) {
	logger := logging.FromContext(ctx)

	if input.File == nil || input.File.Content == nil {
		return models.Post{}, fmt.Errorf("post attachment is required: %w", gateway.ErrUpload)
	}

	ref, err := s.files.Upload(ctx, input.File.Name, input.File.Content)
	if err != nil {
		logger.Error("upload post attachment", "error", err)
		return models.Post{}, err
	}

	previewURL, err := s.files.PreviewURL(ref.ID, previewOptions())
	if err != nil {
		logger.Error("derive post preview", "fileId", ref.ID, "error", err)
		s.discardFile(ctx, ref.ID)
		return models.Post{}, err
	}

	now := s.now()
	expiresAt := models.ExpiresFrom(now)

	data, err := json.Marshal(postPayload{
		Creator:   input.CreatorID,
		Caption:   input.Caption,
		ImageURL:  previewURL,
		ImageID:   ref.ID,
		Location:  input.Location,
		Tags:      ParseTags(input.Tags),
		Likes:     []string{},
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		s.discardFile(ctx, ref.ID)
		return models.Post{}, fmt.Errorf("encode post: %w", err)
	}

	doc, err := s.documents.Create(ctx, s.posts, gateway.Document{CreatedAt: now, Data: data})
	if err != nil {
		logger.Error("persist post", "error", err)
		s.discardFile(ctx, ref.ID)
		return models.Post{}, err
	}

	return postFromDocument(doc)
}

// Update rewrites a post's editable fields. When a replacement file is
// supplied the previous file is deleted only after the document update has
// committed; a failed update deletes the replacement instead and leaves the
// previous file intact.
func (s *Service) Update(ctx context.Context, input UpdatePost) (models.Post, error) {
	logger := logging.FromContext(ctx)

	imageURL := input.ImageURL
	imageID := input.ImageID
	replaced := false

	if input.File != nil && input.File.Content != nil {
		ref, err := s.files.Upload(ctx, input.File.Name, input.File.Content)
		if err != nil {
			logger.Error("upload replacement attachment", "postId", input.PostID, "error", err)
			return models.Post{}, err
		}

		previewURL, err := s.files.PreviewURL(ref.ID, previewOptions())
		if err != nil {
			logger.Error("derive replacement preview", "fileId", ref.ID, "error", err)
			s.discardFile(ctx, ref.ID)
			return models.Post{}, err
		}

		imageURL = previewURL
		imageID = ref.ID
		replaced = true
	}

	data, err := json.Marshal(postPayload{
		Caption:  input.Caption,
		ImageURL: imageURL,
		ImageID:  imageID,
		Location: input.Location,
		Tags:     ParseTags(input.Tags),
	})
	if err != nil {
		if replaced {
			s.discardFile(ctx, imageID)
		}
		return models.Post{}, fmt.Errorf("encode post update: %w", err)
	}

	doc, err := s.documents.Update(ctx, s.posts, input.PostID, data)
	if err != nil {
		logger.Error("persist post update", "postId", input.PostID, "error", err)
		if replaced {
			s.discardFile(ctx, imageID)
		}
		return models.Post{}, err
	}

	if replaced && input.ImageID != "" {
		if err := s.files.Delete(ctx, input.ImageID); err != nil {
			logger.Warn("delete replaced attachment", "fileId", input.ImageID, "error", err)
		}
	}

	return postFromDocument(doc)
}

// Delete removes a post and then its attachment. A missing identifier makes
// the whole call a no-op. When document deletion fails the file is left
// intact so no live document ends up referencing a deleted file.
func (s *Service) Delete(ctx context.Context, postID, imageID string) error {
	if postID == "" || imageID == "" {
		return nil
	}

	logger := logging.FromContext(ctx)

	if err := s.documents.Delete(ctx, s.posts, postID); err != nil {
		logger.Error("delete post", "postId", postID, "error", err)
		return err
	}

	if err := s.files.Delete(ctx, imageID); err != nil {
		logger.Error("delete post attachment", "postId", postID, "fileId", imageID, "error", err)
		return err
	}

	return nil
}

// Like persists the full resulting set of liker ids. The toggle itself is
// computed by the caller; the last writer wins.
func (s *Service) Like(ctx context.Context, postID string, likers []string) (models.Post, error) {
	if likers == nil {
		likers = []string{}
	}

	data, err := json.Marshal(map[string][]string{"likes": likers})
	if err != nil {
		return models.Post{}, fmt.Errorf("encode likes: %w", err)
	}

	doc, err := s.documents.Update(ctx, s.posts, postID, data)
	if err != nil {
		logging.FromContext(ctx).Error("persist likes", "postId", postID, "error", err)
		return models.Post{}, err
	}

	return postFromDocument(doc)
}

// Save records a bookmark join entity for the user and post. Uniqueness of
// the pair is best effort; duplicates are tolerated.
func (s *Service) Save(ctx context.Context, userID, postID string) (models.SavedPost, error) {
	data, err := json.Marshal(savePayload{User: userID, Post: postID})
	if err != nil {
		return models.SavedPost{}, fmt.Errorf("encode saved post: %w", err)
	}

	doc, err := s.documents.Create(ctx, s.saves, gateway.Document{Data: data})
	if err != nil {
		logging.FromContext(ctx).Error("persist saved post", "postId", postID, "error", err)
		return models.SavedPost{}, err
	}

	return savedPostFromDocument(doc)
}

// Unsave deletes a bookmark by its own record id; the caller resolves which
// record corresponds to the post.
func (s *Service) Unsave(ctx context.Context, savedRecordID string) error {
	if err := s.documents.Delete(ctx, s.saves, savedRecordID); err != nil {
		logging.FromContext(ctx).Error("delete saved post", "savedId", savedRecordID, "error", err)
		return err
	}
	return nil
}

// SavedFor lists the user's bookmark records, newest first.
func (s *Service) SavedFor(ctx context.Context, userID string) ([]models.SavedPost, error) {
	page, err := s.documents.List(ctx, s.saves, gateway.ListOptions{
		Filters: []gateway.Filter{gateway.Equal("user", userID)},
		Order:   gateway.OrderCreatedDesc,
	})
	if err != nil {
		logging.FromContext(ctx).Error("list saved posts", "userId", userID, "error", err)
		return nil, err
	}

	saved := make([]models.SavedPost, 0, len(page.Documents))
	for _, doc := range page.Documents {
		record, err := savedPostFromDocument(doc)
		if err != nil {
			return nil, err
		}
		saved = append(saved, record)
	}
	return saved, nil
}

// GetByID fetches one post.
func (s *Service) GetByID(ctx context.Context, postID string) (models.Post, error) {
	doc, err := s.documents.Get(ctx, s.posts, postID)
	if err != nil {
		logging.FromContext(ctx).Error("get post", "postId", postID, "error", err)
		return models.Post{}, err
	}
	return postFromDocument(doc)
}

// Feed returns one page of the infinite feed, most recently updated first.
// The cursor is the id of the previous page's last post; an empty cursor
// requests the first page.
func (s *Service) Feed(ctx context.Context, cursor string) (FeedPage, error) {
	page, err := s.documents.List(ctx, s.posts, gateway.ListOptions{
		Order:  gateway.OrderUpdatedDesc,
		Limit:  FeedPageSize,
		Cursor: cursor,
	})
	if err != nil {
		logging.FromContext(ctx).Error("list feed", "cursor", cursor, "error", err)
		return FeedPage{}, err
	}

	result := FeedPage{Posts: make([]models.Post, 0, len(page.Documents))}
	for _, doc := range page.Documents {
		post, err := postFromDocument(doc)
		if err != nil {
			return FeedPage{}, err
		}
		result.Posts = append(result.Posts, post)
	}
	if len(result.Posts) == FeedPageSize {
		result.NextCursor = result.Posts[len(result.Posts)-1].ID
	}
	return result, nil
}

// Recent returns the newest posts by creation time, capped and unpaged.
func (s *Service) Recent(ctx context.Context) ([]models.Post, error) {
	return s.list(ctx, gateway.ListOptions{
		Order: gateway.OrderCreatedDesc,
		Limit: recentLimit,
	})
}

// ByCreator lists a user's posts, newest first. A missing user id yields an
// empty result rather than an error.
func (s *Service) ByCreator(ctx context.Context, userID string) ([]models.Post, error) {
	if userID == "" {
		return nil, nil
	}
	return s.list(ctx, gateway.ListOptions{
		Filters: []gateway.Filter{gateway.Equal("creator", userID)},
		Order:   gateway.OrderCreatedDesc,
	})
}

// Search matches the term against captions only. Relevance ordering is
// whatever the backing store provides.
func (s *Service) Search(ctx context.Context, term string) ([]models.Post, error) {
	return s.list(ctx, gateway.ListOptions{
		Filters: []gateway.Filter{gateway.Search("caption", term)},
	})
}

// LikedBy lists posts whose liker set contains the user.
func (s *Service) LikedBy(ctx context.Context, userID string) ([]models.Post, error) {
	if userID == "" {
		return nil, nil
	}
	return s.list(ctx, gateway.ListOptions{
		Filters: []gateway.Filter{gateway.Contains("likes", userID)},
		Order:   gateway.OrderCreatedDesc,
	})
}

func (s *Service) list(ctx context.Context, opts gateway.ListOptions) ([]models.Post, error) {
	page, err := s.documents.List(ctx, s.posts, opts)
	if err != nil {
		logging.FromContext(ctx).Error("list posts", "error", err)
		return nil, err
	}

	result := make([]models.Post, 0, len(page.Documents))
	for _, doc := range page.Documents {
		post, err := postFromDocument(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, post)
	}
	return result, nil
}

func (s *Service) discardFile(ctx context.Context, fileID string) {
	if err := s.files.Delete(ctx, fileID); err != nil {
		logging.FromContext(ctx).Warn("discard uploaded file", "fileId", fileID, "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}
