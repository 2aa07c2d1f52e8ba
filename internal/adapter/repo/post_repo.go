package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"albumrender/internal/domain"
	"albumrender/internal/infra"
	"albumrender/internal/sqlinline"
)

// PostRepositoryPG is the content fetcher: it reads a family's posts joined
// with author profiles and ordered image references.
type PostRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewPostRepository creates a post repository backed by PostgreSQL.
func NewPostRepository(sql infra.SQLExecutor) *PostRepositoryPG {
	return &PostRepositoryPG{sql: sql}
}

// FetchPosts returns posts created in [from, to), newest first. A missing
// author profile degrades to the placeholder author instead of failing.
func (r *PostRepositoryPG) FetchPosts(ctx context.Context, familyID string, from, to time.Time) ([]domain.Post, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectFamilyPosts, familyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	index := make(map[string]int)
	for rows.Next() {
		var (
			postID     string
			content    *string
			createdAt  time.Time
			authorID   *string
			authorName *string
			avatarURL  *string
			imageID    *string
			imageURL   *string
			altText    *string
		)
		if err := rows.Scan(&postID, &content, &createdAt, &authorID, &authorName, &avatarURL, &imageID, &imageURL, &altText); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		pos, seen := index[postID]
		if !seen {
			posts = append(posts, domain.Post{
				ID:        postID,
				Content:   normalizeText(content),
				CreatedAt: createdAt,
				Author:    resolveAuthor(authorID, authorName, avatarURL),
			})
			pos = len(posts) - 1
			index[postID] = pos
		}
		if imageID == nil {
			continue
		}
		posts[pos].Images = append(posts[pos].Images, domain.ImageRef{
			ID:      *imageID,
			URL:     strings.TrimSpace(deref(imageURL)),
			AltText: strings.TrimSpace(deref(altText)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read posts: %w", err)
	}
	return posts, nil
}

func resolveAuthor(id, name, avatar *string) domain.Author {
	authorID := deref(id)
	displayName := strings.TrimSpace(deref(name))
	if displayName == "" {
		return domain.PlaceholderAuthor(authorID)
	}
	return domain.Author{ID: authorID, Name: norm.NFC.String(displayName), AvatarURL: deref(avatar)}
}

// normalizeText composes unicode so the same caption always measures and
// encodes the same way; blank content collapses to nil.
func normalizeText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(norm.NFC.String(*s))
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ domain.PostRepository = (*PostRepositoryPG)(nil)
