package stories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/snapfeed/backend/internal/config"
	"github.com/snapfeed/backend/internal/gateway"
	"github.com/snapfeed/backend/internal/logging"
	"github.com/snapfeed/backend/internal/models"
	"github.com/snapfeed/backend/internal/posts"
)

// activeLimit caps the number of stories returned by the active tray.
const activeLimit = 50

// NewStory is the publish input. The attachment is mandatory.
type NewStory struct {
	CreatorID string
	Caption   string
	File      *posts.FileUpload
}

// Event is a change notification for the story tray: a story appearing or
// one being withdrawn. Expiry is not an event; expired stories simply stop
// matching active queries.
type Event struct {
	Kind  gateway.EventKind
	Story models.Story
}

// Service composes gateway calls into the story operations.
type Service struct {
	docs    gateway.DocumentStore
	files   gateway.FileStore
	events  gateway.Subscriber
	stories string
	NowFunc func() time.Time
}

// NewService constructs the story domain service. The subscriber may be nil
// when the deployment has no change feed; Subscribe then fails.
func NewService(docs gateway.DocumentStore, files gateway.FileStore, events gateway.Subscriber, collections config.Collections) *Service {
	return &Service{
		docs:    docs,
		files:   files,
		events:  events,
		stories: collections.Stories,
	}
}

// Create uploads the attachment and publishes the story. The expiry instant
// is computed once, from the same clock reading stamped on the document, and
// never changes afterwards. A failure after the upload deletes the uploaded
// file before returning.
func (s *Service) Create(ctx context.Context, input NewStory) (models.Story, error) {
	logger := logging.FromContext(ctx)

	if input.File == nil || input.File.Content == nil {
		return models.Story{}, fmt.Errorf("story requires an attachment: %w", gateway.ErrUpload)
	}

	ref, err := s.files.Upload(ctx, input.File.Name, input.File.Content)
	if err != nil {
		logger.Error("upload story file", "creator", input.CreatorID, "error", err)
		return models.Story{}, err
	}

	previewURL, err := s.files.PreviewURL(ref.ID, gateway.PreviewOptions{
		Width: 2000, Height: 2000, Gravity: "top", Quality: 100,
	})
	if err != nil {
		logger.Error("derive story preview", "fileId", ref.ID, "error", err)
		s.discardFile(ctx, ref.ID)
		return models.Story{}, err
	}

	now := s.now()
	expiresAt := models.ExpiresFrom(now)

	data, err := json.Marshal(storyPayload{
		Creator:   input.CreatorID,
		Caption:   input.Caption,
		ImageURL:  previewURL,
		ImageID:   ref.ID,
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		s.discardFile(ctx, ref.ID)
		return models.Story{}, fmt.Errorf("encode story: %w", err)
	}

	doc, err := s.docs.Create(ctx, s.stories, gateway.Document{CreatedAt: now, Data: data})
	if err != nil {
		logger.Error("persist story", "creator", input.CreatorID, "error", err)
		s.discardFile(ctx, ref.ID)
		return models.Story{}, err
	}

	return storyFromDocument(doc)
}

// GetByID returns a single story regardless of its expiry state.
func (s *Service) GetByID(ctx context.Context, storyID string) (models.Story, error) {
	doc, err := s.docs.Get(ctx, s.stories, storyID)
	if err != nil {
		logging.FromContext(ctx).Error("get story", "storyId", storyID, "error", err)
		return models.Story{}, err
	}
	return storyFromDocument(doc)
}

// Delete withdraws a story before its natural expiry. The document goes
// first; a failed file cleanup afterwards leaves an orphaned object rather
// than a visible story.
func (s *Service) Delete(ctx context.Context, storyID, imageID string) error {
	if storyID == "" || imageID == "" {
		return nil
	}

	logger := logging.FromContext(ctx)

	if err := s.docs.Delete(ctx, s.stories, storyID); err != nil {
		logger.Error("delete story", "storyId", storyID, "error", err)
		return err
	}
	if err := s.files.Delete(ctx, imageID); err != nil {
		logger.Warn("delete story file", "fileId", imageID, "error", err)
	}
	return nil
}

// Active returns the unexpired stories, newest first. The cutoff is strict:
// a story whose expiry equals the current instant is already gone.
func (s *Service) Active(ctx context.Context) ([]models.Story, error) {
	now := s.now()

	page, err := s.docs.List(ctx, s.stories, gateway.ListOptions{
		Filters: []gateway.Filter{gateway.After("expiresAt", now)},
		Order:   gateway.OrderCreatedDesc,
		Limit:   activeLimit,
	})
	if err != nil {
		logging.FromContext(ctx).Error("list active stories", "error", err)
		return nil, err
	}

	result := make([]models.Story, 0, len(page.Documents))
	for _, doc := range page.Documents {
		story, err := storyFromDocument(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, story)
	}
	return result, nil
}

// Subscribe streams story creations and deletions to fn until the returned
// cancel is called or ctx ends. Documents that fail to decode are dropped
// with a log line rather than tearing the stream down.
func (s *Service) Subscribe(ctx context.Context, fn func(Event)) (gateway.CancelFunc, error) {
	if s.events == nil {
		return nil, fmt.Errorf("story change feed unavailable: %w", gateway.ErrPersistence)
	}

	logger := logging.FromContext(ctx)

	return s.events.Subscribe(ctx, s.stories, func(ev gateway.Event) {
		story, err := storyFromDocument(ev.Document)
		if err != nil {
			logger.Warn("decode story event", "storyId", ev.Document.ID, "error", err)
			return
		}
		fn(Event{Kind: ev.Kind, Story: story})
	})
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
