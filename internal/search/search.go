// Package search filters and orders dashboard entities. The local
// matcher is authoritative; Meilisearch is an optional accelerator that
// is consulted first when healthy.
package search

import "time"

// Kind identifies the entity behind a document.
type Kind string

const (
	KindTask    Kind = "task"
	KindProject Kind = "project"
	KindGallery Kind = "gallery"
)

// Sort orders for search results.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
)

// Doc is the flattened, indexable view of one entity. Title carries a
// task title or project name; Type carries a project type or gallery
// entry type; RefID is only set for gallery entries.
type Doc struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	RefID       string    `json:"refId"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	// CreatedAtMs mirrors CreatedAt for index-side sorting.
	CreatedAtMs int64 `json:"createdAtMs"`
}

// Query describes one search request.
type Query struct {
	Text   string
	Kind   Kind   // empty = all kinds
	Status string // exact match when set
	Sort   string // SortNewest (default) or SortOldest
	Limit  int
}
