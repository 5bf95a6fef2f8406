package model

import "time"

// Article is one news item yielded by a collector.
type Article struct {
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Summary      string     `json:"summary,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	PreviewImage string     `json:"preview_image,omitempty"`
	Source       string     `json:"source,omitempty"`
}
