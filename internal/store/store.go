package store

import (
	"context"
	"time"

	"github.com/nhle/craftnotify/internal/model"
)

// Journal is the persistence interface for the local sync journal. It
// records what the sync loop did; it never caches notifications.
type Journal interface {
	RecordFetch(ctx context.Context, run model.FetchRun) error
	RecordAction(ctx context.Context, rec model.ActionRecord) error

	// RecentFetches and RecentActions return at most limit rows, newest
	// first. A non-positive limit means defaultLimit.
	RecentFetches(ctx context.Context, limit int) ([]model.FetchRun, error)
	RecentActions(ctx context.Context, limit int) ([]model.ActionRecord, error)

	// Prune deletes rows older than cutoff and returns how many went.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

const defaultLimit = 50
