package pipeline

import (
	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// SafetyFilter rejects annotations flagged explicit
type SafetyFilter struct {
	Enabled bool
}

// Reject returns ErrExplicitContent when filtering is enabled and ann is explicit
func (f SafetyFilter) Reject(ann model.Annotation) error {
	if f.Enabled && ann.IsExplicit {
		return ErrExplicitContent
	}
	return nil
}
