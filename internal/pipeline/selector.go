package pipeline

import (
	"context"
	"errors"
	"math/rand"

	"github.com/danielorf/ArtCaptionBot/internal/exclusion"
	"github.com/danielorf/ArtCaptionBot/internal/model"
	"github.com/danielorf/ArtCaptionBot/internal/source"
	"github.com/danielorf/ArtCaptionBot/internal/validate"
)

// Selector picks the first acceptable item from a random category's listing
type Selector struct {
	source     source.ContentSource
	categories []string
	limit      int
	intn       func(n int) int // injectable for tests
}

// NewSelector creates a selector over categories
func NewSelector(src source.ContentSource, categories []string, limit int) *Selector {
	if limit <= 0 {
		limit = source.DefaultLimit
	}
	return &Selector{
		source:     src,
		categories: categories,
		limit:      limit,
		intn:       rand.Intn,
	}
}

// Select returns the first listed item that is not excluded and whose URL has
// an allowed image extension. Skipped items are not added to exclusions.
func (s *Selector) Select(ctx context.Context, exclusions *exclusion.Set) (model.ContentItem, error) {
	if len(s.categories) == 0 {
		return model.ContentItem{}, errors.New("selector has no categories")
	}
	category := s.categories[s.intn(len(s.categories))]

	items, err := s.source.ListCandidates(ctx, category, s.limit)
	if err != nil {
		return model.ContentItem{}, &SourceUnavailableError{Source: s.source.Name(), Category: category, Err: err}
	}

	for _, item := range items {
		if exclusions.Contains(item.ID) {
			continue
		}
		if !validate.IsAllowedFormat(item.URL) {
			continue
		}
		if item.Category == "" {
			item.Category = category
		}
		return item, nil
	}
	return model.ContentItem{}, ErrNoCandidateAvailable
}
