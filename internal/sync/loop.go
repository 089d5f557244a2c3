package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/craftnotify/internal/feed"
	"github.com/nhle/craftnotify/internal/marketplace"
	"github.com/nhle/craftnotify/internal/model"
)

// Phase is the state of the loop's fetch cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseFetching:
		return "fetching"
	case PhaseSettled:
		return "settled"
	default:
		return "idle"
	}
}

// Transport is the remote surface the loop drives. *marketplace.Adapter
// satisfies it.
type Transport interface {
	List(ctx context.Context) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	UpdateNegotiationPrice(ctx context.Context, reservationID string, price float64) error
	RejectNegotiation(ctx context.Context, reservationID string) error
}

// Journal records fetch and action outcomes. *store.SQLiteStore
// satisfies it.
type Journal interface {
	RecordFetch(ctx context.Context, run model.FetchRun) error
	RecordAction(ctx context.Context, rec model.ActionRecord) error
}

// Defaults used when Options leaves a field zero.
const (
	DefaultPollInterval   = 30 * time.Second
	DefaultReconcileDelay = 1500 * time.Millisecond
	DefaultFetchTimeout   = 30 * time.Second
)

const eventBuffer = 64

// Options configures a Loop. Zero values fall back to the defaults.
type Options struct {
	PollInterval   time.Duration
	ReconcileDelay time.Duration
	FetchTimeout   time.Duration
	Journal        Journal
	Logger         *zap.Logger
	Clock          func() time.Time
}

// Loop owns the canonical notification collection. Every write to it
// goes through apply; readers only ever see copies.
type Loop struct {
	transport Transport
	journal   Journal
	logger    *zap.Logger
	now       func() time.Time

	pollInterval   time.Duration
	reconcileDelay time.Duration
	fetchTimeout   time.Duration

	events chan Event

	mu           gosync.Mutex
	items        []model.Notification
	phase        Phase
	settledOnce  bool
	lastErr      error
	seq          uint64
	pending      []*pendingEdit
	negotiating  int
	deferred     bool
	reconcile    *time.Timer
	reconcileGen uint64
	running      bool
	stopCh       chan struct{}
}

// New creates a Loop around transport. The loop does nothing until Start
// or one of the action methods is called.
func New(transport Transport, opts Options) *Loop {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ReconcileDelay <= 0 {
		opts.ReconcileDelay = DefaultReconcileDelay
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Loop{
		transport:      transport,
		journal:        opts.Journal,
		logger:         opts.Logger.Named("sync"),
		now:            opts.Clock,
		pollInterval:   opts.PollInterval,
		reconcileDelay: opts.ReconcileDelay,
		fetchTimeout:   opts.FetchTimeout,
		events:         make(chan Event, eventBuffer),
	}
}

// Start fetches immediately and then every poll interval until Stop. The
// returned command delivers the next Event to the Bubble Tea runtime.
func (l *Loop) Start() tea.Cmd {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.stopCh = make(chan struct{})
	stopCh := l.stopCh
	l.mu.Unlock()

	go l.run(stopCh)

	return l.WaitForEvent()
}

// Stop cancels the ticker and any pending reconcile, and invalidates
// fetches still in flight.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cancelReconcileLocked()
	l.seq++
	if l.phase == PhaseFetching {
		l.phase = PhaseIdle
		if l.settledOnce {
			l.phase = PhaseSettled
		}
	}

	if !l.running {
		return
	}
	close(l.stopCh)
	l.running = false
}

func (l *Loop) run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	l.background(stopCh, model.TriggerMount)

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			l.background(stopCh, model.TriggerTimer)
		}
	}
}

// background runs a fetch whose error is only surfaced as an event.
func (l *Loop) background(stopCh <-chan struct{}, trigger model.FetchTrigger) {
	select {
	case <-stopCh:
		return
	default:
	}
	if err := l.fetch(context.Background(), trigger); err != nil {
		l.logger.Warn("background fetch failed",
			zap.String("trigger", string(trigger)),
			zap.Error(err),
		)
	}
}

// Refresh runs a user-initiated fetch. It returns the fetch error so the
// caller can offer a retry; a fetch superseded by a newer one returns nil.
func (l *Loop) Refresh(ctx context.Context) error {
	return l.fetch(ctx, model.TriggerUser)
}

// fetch lists the feed and replaces the collection if this is still the
// most recently initiated fetch when the result arrives.
func (l *Loop) fetch(ctx context.Context, trigger model.FetchTrigger) error {
	l.mu.Lock()
	if l.negotiating > 0 && (trigger == model.TriggerTimer || trigger == model.TriggerReconcile) {
		l.deferred = true
		l.mu.Unlock()
		l.logger.Debug("fetch deferred while negotiation in flight", zap.String("trigger", string(trigger)))
		return nil
	}
	l.seq++
	seq := l.seq
	l.pending = unsettled(l.pending)
	l.phase = PhaseFetching
	l.mu.Unlock()

	userInitiated := trigger == model.TriggerUser
	l.emit(Event{Kind: EventFetchStarted, Trigger: trigger, UserInitiated: userInitiated})

	run := model.FetchRun{Seq: seq, Trigger: trigger, StartedAt: l.now()}

	fetchCtx, cancel := context.WithTimeout(ctx, l.fetchTimeout)
	items, err := l.transport.List(fetchCtx)
	cancel()
	run.FinishedAt = l.now()

	l.mu.Lock()
	switch {
	case err != nil && seq == l.seq:
		run.Outcome = model.FetchFailed
		run.Error = err.Error()
		l.lastErr = err
		l.phase = PhaseSettled
		l.settledOnce = true
	case err != nil:
		run.Outcome = model.FetchDiscarded
		run.Error = err.Error()
	case l.apply(mutation{kind: mutReplace, seq: seq, items: items}):
		run.Outcome = model.FetchApplied
		run.ItemCount = len(l.items)
		l.lastErr = nil
		l.phase = PhaseSettled
		l.settledOnce = true
	default:
		run.Outcome = model.FetchDiscarded
		run.ItemCount = len(items)
	}
	l.mu.Unlock()

	l.recordFetch(ctx, run)

	switch run.Outcome {
	case model.FetchFailed:
		l.emit(Event{Kind: EventFetchFailed, Trigger: trigger, Err: err, UserInitiated: userInitiated})
		return err
	case model.FetchApplied:
		l.emit(Event{Kind: EventSynced, Trigger: trigger, UserInitiated: userInitiated})
	default:
		l.logger.Debug("discarded stale fetch result", zap.Uint64("seq", seq))
	}
	return nil
}

// MarkRead marks id read locally, then remotely. The local edit stays
// even if the remote call fails; the scheduled reconcile corrects it.
func (l *Loop) MarkRead(ctx context.Context, id string) error {
	edit := l.optimistic(mutation{kind: mutMarkRead, id: id})

	err := l.transport.MarkRead(ctx, id)
	l.settle(edit)
	l.finishAction(ctx, model.ActionMarkRead, id, err)
	l.scheduleReconcile()

	return err
}

// MarkAllRead marks the whole collection read locally, then remotely.
func (l *Loop) MarkAllRead(ctx context.Context) error {
	edit := l.optimistic(mutation{kind: mutMarkAllRead})

	err := l.transport.MarkAllRead(ctx)
	l.settle(edit)
	l.finishAction(ctx, model.ActionMarkAllRead, "", err)
	l.scheduleReconcile()

	return err
}

// Delete removes id locally, then remotely. A failed remote delete forces
// an immediate refetch so the entry either reappears or is confirmed
// gone. Deleting an id the server no longer has counts as success.
func (l *Loop) Delete(ctx context.Context, id string) error {
	edit := l.optimistic(mutation{kind: mutRemove, id: id})

	err := l.transport.Delete(ctx, id)
	l.settle(edit)
	if marketplace.IsNotFound(err) {
		l.logger.Debug("deleted notification already gone", zap.String("id", id))
		err = nil
	}
	l.finishAction(ctx, model.ActionDelete, id, err)
	if err == nil {
		return nil
	}

	if resyncErr := l.fetch(ctx, model.TriggerResync); resyncErr != nil {
		l.logger.Warn("resync after failed delete failed", zap.Error(resyncErr))
	}
	return err
}

// UpdatePrice counter-offers price on a reservation.
func (l *Loop) UpdatePrice(ctx context.Context, reservationID string, price float64) error {
	return l.negotiate(ctx, model.ActionUpdatePrice, reservationID, func(ctx context.Context) error {
		return l.transport.UpdateNegotiationPrice(ctx, reservationID, price)
	})
}

// RejectNegotiation rejects the negotiation on a reservation.
func (l *Loop) RejectNegotiation(ctx context.Context, reservationID string) error {
	return l.negotiate(ctx, model.ActionRejectNegotiation, reservationID, func(ctx context.Context) error {
		return l.transport.RejectNegotiation(ctx, reservationID)
	})
}

// negotiate holds timer and reconcile fetches while call runs. Once the
// last negotiation call returns, a reconciling fetch runs if any call
// succeeded or a fetch was held back.
func (l *Loop) negotiate(ctx context.Context, kind model.ActionKind, reservationID string, call func(context.Context) error) error {
	l.mu.Lock()
	l.negotiating++
	l.mu.Unlock()

	err := call(ctx)

	l.mu.Lock()
	l.negotiating--
	if err == nil {
		l.deferred = true
	}
	refetch := l.negotiating == 0 && l.deferred
	if refetch {
		l.deferred = false
	}
	l.mu.Unlock()

	l.finishAction(ctx, kind, reservationID, err)

	if refetch {
		if fetchErr := l.fetch(ctx, model.TriggerReconcile); fetchErr != nil {
			l.logger.Warn("reconcile after negotiation failed", zap.Error(fetchErr))
		}
	}
	return err
}

// scheduleReconcile arms a debounced reconciling fetch.
func (l *Loop) scheduleReconcile() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cancelReconcileLocked()
	gen := l.reconcileGen
	l.reconcile = time.AfterFunc(l.reconcileDelay, func() {
		l.mu.Lock()
		current := gen == l.reconcileGen
		l.mu.Unlock()
		if !current {
			return
		}
		if err := l.fetch(context.Background(), model.TriggerReconcile); err != nil {
			l.logger.Warn("reconcile fetch failed", zap.Error(err))
		}
	})
}

func (l *Loop) cancelReconcileLocked() {
	l.reconcileGen++
	if l.reconcile != nil {
		l.reconcile.Stop()
		l.reconcile = nil
	}
}

func (l *Loop) finishAction(ctx context.Context, kind model.ActionKind, target string, err error) {
	rec := model.ActionRecord{
		Kind:      kind,
		TargetID:  target,
		Succeeded: err == nil,
		CreatedAt: l.now(),
	}
	if err != nil {
		rec.Error = err.Error()
		l.logger.Warn("action failed",
			zap.String("action", string(kind)),
			zap.String("target", target),
			zap.Error(err),
		)
		l.emit(Event{Kind: EventActionFailed, Action: kind, Err: err, UserInitiated: true})
	}

	if l.journal == nil {
		return
	}
	if jerr := l.journal.RecordAction(context.WithoutCancel(ctx), rec); jerr != nil {
		l.logger.Warn("recording action", zap.Error(jerr))
	}
}

func (l *Loop) recordFetch(ctx context.Context, run model.FetchRun) {
	if l.journal == nil {
		return
	}
	if err := l.journal.RecordFetch(context.WithoutCancel(ctx), run); err != nil {
		l.logger.Warn("recording fetch", zap.Error(err))
	}
}

// Snapshot returns a copy of the canonical collection in fetch order.
func (l *Loop) Snapshot() []model.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.Notification, len(l.items))
	copy(out, l.items)
	return out
}

// View derives the display view for filter at the loop's clock.
func (l *Loop) View(filter feed.Filter) feed.View {
	return feed.BuildView(l.Snapshot(), filter, l.now())
}

// Phase returns the current fetch phase.
func (l *Loop) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// LastError returns the error of the last settled fetch, or nil if it
// succeeded.
func (l *Loop) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// UnreadBadge counts unread notifications for the header badge. It is 0
// while the last fetch failed.
func (l *Loop) UnreadBadge() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastErr != nil {
		return 0
	}
	return feed.UnreadCount(l.items)
}
