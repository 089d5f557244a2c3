package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/craftnotify/internal/model"
)

// RecordFetch appends one fetch outcome.
func (s *SQLiteStore) RecordFetch(ctx context.Context, run model.FetchRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fetch_runs (
			seq, trigger_kind, outcome, item_count, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Seq, string(run.Trigger), string(run.Outcome), run.ItemCount,
		run.Error, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording fetch %d: %w", run.Seq, err)
	}
	return nil
}

// RecordAction appends one action outcome, assigning an id if rec has none.
func (s *SQLiteStore) RecordAction(ctx context.Context, rec model.ActionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, kind, target_id, succeeded, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.TargetID, boolToInt(rec.Succeeded),
		rec.Error, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording %s action: %w", rec.Kind, err)
	}
	return nil
}

// RecentFetches returns the newest fetch runs in insertion order reversed.
func (s *SQLiteStore) RecentFetches(ctx context.Context, limit int) ([]model.FetchRun, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	var runs []model.FetchRun
	err := s.db.SelectContext(ctx, &runs, `
		SELECT seq, trigger_kind, outcome, item_count, error, started_at, finished_at
		FROM fetch_runs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying fetch runs: %w", err)
	}
	return runs, nil
}

// RecentActions returns the newest action records.
func (s *SQLiteStore) RecentActions(ctx context.Context, limit int) ([]model.ActionRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	var recs []model.ActionRecord
	err := s.db.SelectContext(ctx, &recs, `
		SELECT id, kind, target_id, succeeded, error, created_at
		FROM actions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	return recs, nil
}

// Prune removes journal rows older than cutoff from both tables.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, q := range []string{
		"DELETE FROM fetch_runs WHERE started_at < ?",
		"DELETE FROM actions WHERE created_at < ?",
	} {
		res, err := tx.ExecContext(ctx, q, cutoff.UTC())
		if err != nil {
			return 0, fmt.Errorf("pruning journal: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("pruning journal: %w", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}
	return total, nil
}
