package model

import "time"

// FetchTrigger records why a fetch was started.
type FetchTrigger string

const (
	TriggerMount     FetchTrigger = "mount"
	TriggerTimer     FetchTrigger = "timer"
	TriggerUser      FetchTrigger = "user"
	TriggerReconcile FetchTrigger = "reconcile"
	TriggerResync    FetchTrigger = "resync"
)

// FetchOutcome records what happened to a fetch result.
type FetchOutcome string

const (
	FetchApplied   FetchOutcome = "applied"
	FetchDiscarded FetchOutcome = "discarded"
	FetchFailed    FetchOutcome = "failed"
)

// FetchRun is one list call as seen by the sync loop.
type FetchRun struct {
	Seq        uint64       `db:"seq"`
	Trigger    FetchTrigger `db:"trigger_kind"`
	Outcome    FetchOutcome `db:"outcome"`
	ItemCount  int          `db:"item_count"`
	Error      string       `db:"error"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt time.Time    `db:"finished_at"`
}

// ActionKind names a user intent dispatched through the sync loop.
type ActionKind string

const (
	ActionMarkRead          ActionKind = "mark_read"
	ActionMarkAllRead       ActionKind = "mark_all_read"
	ActionDelete            ActionKind = "delete"
	ActionUpdatePrice       ActionKind = "update_price"
	ActionRejectNegotiation ActionKind = "reject_negotiation"
)

// ActionRecord is the outcome of one dispatched intent.
type ActionRecord struct {
	ID        string     `db:"id"`
	Kind      ActionKind `db:"kind"`
	TargetID  string     `db:"target_id"`
	Succeeded bool       `db:"succeeded"`
	Error     string     `db:"error"`
	CreatedAt time.Time  `db:"created_at"`
}
