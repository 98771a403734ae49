// Package source lists candidate image posts from content feeds.
package source

import (
	"context"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// DefaultLimit is the page size requested when the caller passes zero
const DefaultLimit = 50

// ContentSource returns candidate items for a category in source order
type ContentSource interface {
	Name() string
	ListCandidates(ctx context.Context, category string, limit int) ([]model.ContentItem, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
