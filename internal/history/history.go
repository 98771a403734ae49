// Package history reads the ids of previously published content so a run
// never publishes the same item twice.
package history

import (
	"context"
)

// Source lists the content ids behind an actor's recent publications, newest first
type Source interface {
	ListRecent(ctx context.Context, actor string, count int) ([]string, error)
}

// None is an empty history, used for dry runs
type None struct{}

// ListRecent always returns no ids
func (None) ListRecent(context.Context, string, int) ([]string, error) {
	return nil, nil
}
