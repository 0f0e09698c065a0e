package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Blog is a published article
type Blog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AuthorID  uuid.UUID `json:"author_id" db:"author_id"`
	Title     string    `json:"title" db:"title"`
	Slug      string    `json:"slug" db:"slug"`
	Excerpt   string    `json:"excerpt" db:"excerpt"`
	Content   string    `json:"content" db:"content"`
	Category  string    `json:"category" db:"category"`
	Tags      []string  `json:"tags" db:"tags"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BlogFilter narrows blog listings
type BlogFilter struct {
	Search   string
	Category string
	Tag      string
}

// Comment is a reader's reply to a blog
type Comment struct {
	ID        uuid.UUID `json:"id" db:"id"`
	BlogID    uuid.UUID `json:"blog_id" db:"blog_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Username  string    `json:"username,omitempty" db:"username"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Slugify turns a title into a lowercase, hyphen-separated url segment
func Slugify(title string) string {
	var b strings.Builder
	pendingDash := false

	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}

	return b.String()
}

// NormalizeTags trims, lowercases and de-duplicates tags, keeping order
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
