package models

import "time"

// ExpiryWindow is how long a post or story remains visible to the stories
// surfaces after creation.
const ExpiryWindow = 24 * time.Hour

// ExpiresFrom computes the absolute expiry instant for content created at the
// provided time. Posts and stories share this arithmetic; the result is fixed
// at creation and never recomputed on read.
func ExpiresFrom(createdAt time.Time) time.Time {
	return createdAt.UTC().Add(ExpiryWindow)
}

// User is a profile document linked to an authentication account.
type User struct {
	ID        string
	AccountID string
	Name      string
	Username  string
	Email     string
	Bio       string
	ImageURL  string
	ImageID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Post is a feed entry owned by a user. Likes holds the ids of users who
// currently like the post; the full set is written on every toggle, last
// writer wins. ExpiresAt is CreatedAt + ExpiryWindow and is immutable.
type Post struct {
	ID        string
	CreatorID string
	Caption   string
	ImageURL  string
	ImageID   string
	Location  string
	Tags      []string
	Likes     []string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// SavedPost is the join record created when a user bookmarks a post.
// Uniqueness of (user, post) is best effort; duplicates are tolerated.
type SavedPost struct {
	ID        string
	UserID    string
	PostID    string
	CreatedAt time.Time
}

// Story is time-boxed content. Visibility is gated by ExpiresAt rather than
// deletion: expired stories stay in the store and simply drop out of active
// queries.
type Story struct {
	ID        string
	CreatorID string
	Caption   string
	ImageURL  string
	ImageID   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Account is an authentication identity. The profile lives in a separate
// User document referencing the account.
type Account struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Session is an issued login session.
type Session struct {
	Token     string
	AccountID string
	ExpiresAt time.Time
}
