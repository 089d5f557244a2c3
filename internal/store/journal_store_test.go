package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/craftnotify/internal/model"
	"github.com/nhle/craftnotify/internal/store"
	"github.com/nhle/craftnotify/tests/testutil"
)

var _ store.Journal = (*store.SQLiteStore)(nil)

var t0 = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func TestSQLiteStore_Migrations(t *testing.T) {
	s := testutil.NewTestStore(t)

	version, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestSQLiteStore_Fetches(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordFetch(ctx, model.FetchRun{
		Seq: 1, Trigger: model.TriggerMount, Outcome: model.FetchApplied,
		ItemCount: 3, StartedAt: t0, FinishedAt: t0.Add(time.Second),
	}))
	require.NoError(t, s.RecordFetch(ctx, model.FetchRun{
		Seq: 2, Trigger: model.TriggerTimer, Outcome: model.FetchFailed,
		Error: "backend down", StartedAt: t0.Add(time.Minute), FinishedAt: t0.Add(time.Minute),
	}))

	runs, err := s.RecentFetches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.EqualValues(t, 2, runs[0].Seq)
	assert.Equal(t, model.TriggerTimer, runs[0].Trigger)
	assert.Equal(t, model.FetchFailed, runs[0].Outcome)
	assert.Equal(t, "backend down", runs[0].Error)

	assert.Equal(t, model.FetchApplied, runs[1].Outcome)
	assert.Equal(t, 3, runs[1].ItemCount)
	assert.True(t, runs[1].StartedAt.Equal(t0))

	limited, err := s.RecentFetches(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_Actions(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordAction(ctx, model.ActionRecord{
		Kind: model.ActionMarkRead, TargetID: "n1", Succeeded: true, CreatedAt: t0,
	}))
	require.NoError(t, s.RecordAction(ctx, model.ActionRecord{
		Kind: model.ActionUpdatePrice, TargetID: "r9", Error: "price too low", CreatedAt: t0.Add(time.Hour),
	}))

	recs, err := s.RecentActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, model.ActionUpdatePrice, recs[0].Kind)
	assert.False(t, recs[0].Succeeded)
	assert.Equal(t, "price too low", recs[0].Error)
	assert.NotEmpty(t, recs[0].ID, "ids are assigned")

	assert.Equal(t, model.ActionMarkRead, recs[1].Kind)
	assert.True(t, recs[1].Succeeded)
	assert.Equal(t, "n1", recs[1].TargetID)
}

func TestSQLiteStore_Prune(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	old := t0.Add(-48 * time.Hour)
	require.NoError(t, s.RecordFetch(ctx, model.FetchRun{Seq: 1, Trigger: model.TriggerMount, Outcome: model.FetchApplied, StartedAt: old, FinishedAt: old}))
	require.NoError(t, s.RecordFetch(ctx, model.FetchRun{Seq: 2, Trigger: model.TriggerTimer, Outcome: model.FetchApplied, StartedAt: t0, FinishedAt: t0}))
	require.NoError(t, s.RecordAction(ctx, model.ActionRecord{Kind: model.ActionDelete, TargetID: "x", CreatedAt: old}))
	require.NoError(t, s.RecordAction(ctx, model.ActionRecord{Kind: model.ActionDelete, TargetID: "y", CreatedAt: t0}))

	removed, err := s.Prune(ctx, t0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	runs, err := s.RecentFetches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.EqualValues(t, 2, runs[0].Seq)

	recs, err := s.RecentActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "y", recs[0].TargetID)
}

func TestSQLiteStore_ReopenKeepsSchema(t *testing.T) {
	s, path := testutil.NewFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordAction(ctx, model.ActionRecord{Kind: model.ActionMarkAllRead, Succeeded: true, CreatedAt: t0}))

	reopened, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	version, err := reopened.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	recs, err := reopened.RecentActions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
