package feed

import (
	"context"
	"slices"
	"sync"

	"github.com/snapfeed/backend/internal/logging"
	"github.com/snapfeed/backend/internal/models"
)

// LikeWriter persists the complete like set of a post.
type LikeWriter interface {
	Like(ctx context.Context, postID string, likers []string) (models.Post, error)
}

// SaveWriter persists and removes bookmark records.
type SaveWriter interface {
	Save(ctx context.Context, userID, postID string) (models.SavedPost, error)
	Unsave(ctx context.Context, savedRecordID string) error
}

// ToggleLike returns the like set after userID flips their like. The input
// slice is never mutated; absent users are appended, present users removed.
func ToggleLike(likes []string, userID string) []string {
	result := make([]string, 0, len(likes)+1)
	removed := false
	for _, id := range likes {
		if id == userID {
			removed = true
			continue
		}
		result = append(result, id)
	}
	if !removed {
		result = append(result, userID)
	}
	return result
}

// PostStats tracks the like set and bookmark state of one post for one
// viewer. Toggles apply locally first and then persist; a failed write rolls
// the local state back to what it was before the toggle, so the state never
// drifts from the store by more than one in-flight write.
type PostStats struct {
	mu     sync.Mutex
	postID string
	userID string
	likes  []string
	saveID string

	likesStore LikeWriter
	saveStore  SaveWriter
}

// NewPostStats seeds the tracker from a loaded post and the viewer's
// bookmark record id, empty when the post is not saved.
func NewPostStats(post models.Post, userID, savedRecordID string, likes LikeWriter, saves SaveWriter) *PostStats {
	return &PostStats{
		postID:     post.ID,
		userID:     userID,
		likes:      slices.Clone(post.Likes),
		saveID:     savedRecordID,
		likesStore: likes,
		saveStore:  saves,
	}
}

// Likes returns the current like set.
func (p *PostStats) Likes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.likes)
}

// Liked reports whether the viewer currently likes the post.
func (p *PostStats) Liked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Contains(p.likes, p.userID)
}

// Saved reports whether the viewer has bookmarked the post.
func (p *PostStats) Saved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveID != ""
}

// ToggleLike flips the viewer's like and persists the full set. On a write
// failure the previous set is restored and the error returned.
func (p *PostStats) ToggleLike(ctx context.Context) error {
	p.mu.Lock()
	previous := p.likes
	p.likes = ToggleLike(p.likes, p.userID)
	p.mu.Unlock()

	if _, err := p.likesStore.Like(ctx, p.postID, p.Likes()); err != nil {
		logging.FromContext(ctx).Warn("persist like toggle", "postId", p.postID, "error", err)
		p.mu.Lock()
		p.likes = previous
		p.mu.Unlock()
		return err
	}
	return nil
}

// ToggleSave flips the viewer's bookmark. The local flag flips first; a
// failed write flips it back.
func (p *PostStats) ToggleSave(ctx context.Context) error {
	p.mu.Lock()
	previousID := p.saveID
	saving := previousID == ""
	if !saving {
		p.saveID = ""
	}
	p.mu.Unlock()

	if saving {
		record, err := p.saveStore.Save(ctx, p.userID, p.postID)
		if err != nil {
			logging.FromContext(ctx).Warn("persist bookmark", "postId", p.postID, "error", err)
			return err
		}
		p.mu.Lock()
		p.saveID = record.ID
		p.mu.Unlock()
		return nil
	}

	if err := p.saveStore.Unsave(ctx, previousID); err != nil {
		logging.FromContext(ctx).Warn("remove bookmark", "postId", p.postID, "error", err)
		p.mu.Lock()
		p.saveID = previousID
		p.mu.Unlock()
		return err
	}
	return nil
}
