package users

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

// AvatarProvider derives a default profile image URL for a display name.
type AvatarProvider interface {
	InitialsURL(name string) string
}

// NewUser is the sign-up input.
type NewUser struct {
	Name     string
	Username string
	Email    string
	Password string
}

// UpdateUser is the profile-update input. File is an optional replacement
// avatar.
type UpdateUser struct {
	UserID   string
	Name     string
	Bio      string
	ImageURL string
	ImageID  string
	File     *posts.FileUpload
}

// Service composes gateway calls into the identity and profile operations.
type Service struct {
	accounts gateway.AccountStore
	docs     gateway.DocumentStore
	files    gateway.FileStore
	avatars  AvatarProvider
	users    string
	NowFunc  func() time.Time
}

// NewService constructs the user domain service.
func NewService(accounts gateway.AccountStore, docs gateway.DocumentStore, files gateway.FileStore, avatars AvatarProvider, collections config.Collections) *Service {
	return &Service{
		accounts: accounts,
		docs:     docs,
		files:    files,
		avatars:  avatars,
		users:    collections.Users,
	}
}

// SignUp creates the authentication account and then the profile document
// referencing it, with an initials avatar as the default image. When the
// profile step fails the account is left behind: the two-step sequence has
// no compensating rollback, and callers must not assume atomicity.
func (s *Service) SignUp(ctx context.Context, input NewUser) (models.User, error) {
	logger := logging.FromContext(ctx)

	account, err := s.accounts.CreateAccount(ctx, input.Email, input.Password, input.Name)
	if err != nil {
		logger.Error("create account", "email", input.Email, "error", err)
		return models.User{}, err
	}

	data, err := json.Marshal(userPayload{
		AccountID: account.ID,
		Name:      account.Name,
		Username:  input.Username,
		Email:     account.Email,
		ImageURL:  s.avatars.InitialsURL(account.Name),
	})
	if err != nil {
		return models.User{}, fmt.Errorf("encode user profile: %w", err)
	}

	doc, err := s.docs.Create(ctx, s.users, gateway.Document{CreatedAt: s.now(), Data: data})
	if err != nil {
		logger.Error("persist user profile", "accountId", account.ID, "error", err)
		return models.User{}, err
	}

	return userFromDocument(doc)
}

// SignIn exchanges credentials for a session. A single attempt; failure
// surfaces immediately.
func (s *Service) SignIn(ctx context.Context, email, password string) (models.Session, error) {
	session, err := s.accounts.CreateSession(ctx, email, password)
	if err != nil {
		logging.FromContext(ctx).Warn("create session", "email", email, "error", err)
		return models.Session{}, err
	}
	return models.Session{
		Token:     session.Token,
		AccountID: session.AccountID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// SignOut terminates the session behind the token.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if err := s.accounts.DeleteSession(ctx, token); err != nil {
		logging.FromContext(ctx).Warn("delete session", "error", err)
		return err
	}
	return nil
}

// CurrentUser resolves the active identity and then its profile document.
// Absence of either yields a not-found failure.
func (s *Service) CurrentUser(ctx context.Context, token string) (models.User, error) {
	logger := logging.FromContext(ctx)

	account, err := s.accounts.GetAccount(ctx, token)
	if err != nil {
		logger.Warn("resolve account", "error", err)
		return models.User{}, err
	}

	page, err := s.docs.List(ctx, s.users, gateway.ListOptions{
		Filters: []gateway.Filter{gateway.Equal("accountId", account.ID)},
		Limit:   1,
	})
	if err != nil {
		logger.Error("list user profile", "accountId", account.ID, "error", err)
		return models.User{}, err
	}
	if len(page.Documents) == 0 {
		return models.User{}, fmt.Errorf("profile for account %s: %w", account.ID, gateway.ErrNotFound)
	}

	return userFromDocument(page.Documents[0])
}

// GetByID fetches one user profile.
func (s *Service) GetByID(ctx context.Context, userID string) (models.User, error) {
	doc, err := s.docs.Get(ctx, s.users, userID)
	if err != nil {
		logging.FromContext(ctx).Error("get user", "userId", userID, "error", err)
		return models.User{}, err
	}
	return userFromDocument(doc)
}

// List returns user profiles, newest first, optionally capped.
func (s *Service) List(ctx context.Context, limit int) ([]models.User, error) {
	page, err := s.docs.List(ctx, s.users, gateway.ListOptions{
		Order: gateway.OrderCreatedDesc,
		Limit: limit,
	})
	if err != nil {
		logging.FromContext(ctx).Error("list users", "error", err)
		return nil, err
	}

	result := make([]models.User, 0, len(page.Documents))
	for _, doc := range page.Documents {
		user, err := userFromDocument(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, nil
}

// Update rewrites a profile's editable fields, optionally replacing the
// avatar with the same compensation sequence posts use: a failed update
// deletes the freshly uploaded file, a committed update deletes the
// previous one.
func (s *Service) Update(ctx context.Context, input UpdateUser) (models.User, error) {
	logger := logging.FromContext(ctx)

	imageURL := input.ImageURL
	imageID := input.ImageID
	replaced := false

	if input.File != nil && input.File.Content != nil {
		ref, err := s.files.Upload(ctx, input.File.Name, input.File.Content)
		if err != nil {
			logger.Error("upload avatar", "userId", input.UserID, "error", err)
			return models.User{}, err
		}

		previewURL, err := s.files.PreviewURL(ref.ID, gateway.PreviewOptions{
			Width: 2000, Height: 2000, Gravity: "top", Quality: 100,
		})
		if err != nil {
			logger.Error("derive avatar preview", "fileId", ref.ID, "error", err)
			s.discardFile(ctx, ref.ID)
			return models.User{}, err
		}

		imageURL = previewURL
		imageID = ref.ID
		replaced = true
	}

	data, err := json.Marshal(userPayload{
		Name:     input.Name,
		Bio:      input.Bio,
		ImageURL: imageURL,
		ImageID:  imageID,
	})
	if err != nil {
		if replaced {
			s.discardFile(ctx, imageID)
		}
		return models.User{}, fmt.Errorf("encode user update: %w", err)
	}

	doc, err := s.docs.Update(ctx, s.users, input.UserID, data)
	if err != nil {
		logger.Error("persist user update", "userId", input.UserID, "error", err)
		if replaced {
			s.discardFile(ctx, imageID)
		}
		return models.User{}, err
	}

	if replaced && input.ImageID != "" {
		if err := s.files.Delete(ctx, input.ImageID); err != nil {
			logger.Warn("delete replaced avatar", "fileId", input.ImageID, "error", err)
		}
	}

	return userFromDocument(doc)
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

// userPayload is the stored document shape for a profile.
type userPayload struct {
	AccountID string `json:"accountId,omitempty"`
	Name      string `json:"name"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Bio       string `json:"bio"`
	ImageURL  string `json:"imageUrl"`
	ImageID   string `json:"imageId,omitempty"`
}

func userFromDocument(doc gateway.Document) (models.User, error) {
	var payload userPayload
	if err := json.Unmarshal(doc.Data, &payload); err != nil {
		return models.User{}, fmt.Errorf("decode user %s: %w", doc.ID, err)
	}
	if payload.AccountID == "" {
		return models.User{}, fmt.Errorf("user %s missing account reference", doc.ID)
	}

	return models.User{
		ID:        doc.ID,
		AccountID: payload.AccountID,
		Name:      payload.Name,
		Username:  payload.Username,
		Email:     payload.Email,
		Bio:       payload.Bio,
		ImageURL:  payload.ImageURL,
		ImageID:   payload.ImageID,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}
