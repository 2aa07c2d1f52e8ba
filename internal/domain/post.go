package domain

import (
	"strings"
	"time"
)

// UnknownAuthorName is shown when a post's author record cannot be resolved.
const UnknownAuthorName = "Unknown"

// Author is the resolved profile of a post's creator.
type Author struct {
	ID        string
	Name      string
	AvatarURL string
}

// ImageRef points at a stored image that has not been downloaded yet. URL is
// either an absolute http(s) URL or a storage object path.
type ImageRef struct {
	ID      string
	URL     string
	AltText string
}

// Post is a feed entry eligible for an album.
type Post struct {
	ID        string
	Content   *string
	CreatedAt time.Time
	Author    Author
	Images    []ImageRef
}

// Text returns the trimmed post body, or "" when there is none.
func (p Post) Text() string {
	if p.Content == nil {
		return ""
	}
	return strings.TrimSpace(*p.Content)
}

// PlaceholderAuthor is used when the author join comes back empty.
func PlaceholderAuthor(id string) Author {
	return Author{ID: id, Name: UnknownAuthorName}
}
