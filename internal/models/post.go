// Package models defines the domain types for Folio.
package models

import "time"

// Post represents a published Markdown document under the content root.
type Post struct {
	URL         string         `json:"url"`
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Date        PostDate       `json:"date"`
	Tags        []string       `json:"tags"`
	Categories  []string       `json:"categories"`
	Checksum    string         `json:"checksum"`
}

// PostDate is a resolved publish date. Time is epoch milliseconds and is the
// ordering key; String is the display form.
type PostDate struct {
	Time   int64  `json:"time"`
	String string `json:"string"`
}

// DateLayout is the display layout of PostDate.String.
const DateLayout = "2006-01-02"

// NewPostDate builds a PostDate from t. The zero time yields the zero PostDate.
func NewPostDate(t time.Time) PostDate {
	if t.IsZero() {
		return PostDate{}
	}
	return PostDate{
		Time:   t.UnixMilli(),
		String: t.Format(DateLayout),
	}
}

// FileMetadata is a lightweight representation returned by storage listings.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
