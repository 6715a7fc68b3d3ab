package storage

import (
	"net/url"
	"strings"
)

// AvatarService derives initials-based avatar URLs from a rendering service.
// Nothing is uploaded; the URL is the whole artifact.
type AvatarService struct {
	baseURL string
}

// NewAvatarService constructs an avatar service against the provided base
// URL (for example an ui-avatars.com style endpoint).
func NewAvatarService(baseURL string) *AvatarService {
	return &AvatarService{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// InitialsURL returns the default avatar for a display name.
func (a *AvatarService) InitialsURL(name string) string {
	if a.baseURL == "" {
		return ""
	}
	params := url.Values{}
	params.Set("name", strings.TrimSpace(name))
	return a.baseURL + "/?" + params.Encode()
}
