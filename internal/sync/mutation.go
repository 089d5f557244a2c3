package sync

import "github.com/nhle/craftnotify/internal/model"

type mutationKind int

const (
	mutReplace mutationKind = iota
	mutMarkRead
	mutMarkAllRead
	mutRemove
)

// mutation is a single change to the canonical collection.
type mutation struct {
	kind  mutationKind
	id    string
	seq   uint64
	items []model.Notification
}

// pendingEdit is an optimistic mutation. It stays pending until a fetch
// starts after its remote call has returned; until then every applied
// fetch result gets it re-applied.
type pendingEdit struct {
	m       mutation
	settled bool
}

// apply is the only writer of l.items. A replace is rejected unless seq
// is the most recently initiated fetch. Callers hold l.mu.
func (l *Loop) apply(m mutation) bool {
	if m.kind != mutReplace {
		l.edit(m)
		return true
	}

	if m.seq != l.seq {
		return false
	}
	l.items = dedupe(m.items)
	for _, p := range l.pending {
		l.edit(p.m)
	}
	return true
}

func (l *Loop) edit(m mutation) {
	switch m.kind {
	case mutMarkRead:
		for i := range l.items {
			if l.items[i].ID == m.id {
				l.items[i].SetRead(true)
			}
		}
	case mutMarkAllRead:
		for i := range l.items {
			l.items[i].SetRead(true)
		}
	case mutRemove:
		kept := l.items[:0:0]
		for _, n := range l.items {
			if n.ID != m.id {
				kept = append(kept, n)
			}
		}
		l.items = kept
	}
}

// optimistic applies m now and tracks it until it is settled.
func (l *Loop) optimistic(m mutation) *pendingEdit {
	l.mu.Lock()
	l.apply(m)
	p := &pendingEdit{m: m}
	l.pending = append(l.pending, p)
	l.mu.Unlock()

	l.emit(Event{Kind: EventChanged, UserInitiated: true})
	return p
}

func (l *Loop) settle(p *pendingEdit) {
	l.mu.Lock()
	p.settled = true
	l.mu.Unlock()
}

func unsettled(edits []*pendingEdit) []*pendingEdit {
	out := edits[:0:0]
	for _, p := range edits {
		if !p.settled {
			out = append(out, p)
		}
	}
	return out
}

// dedupe keeps the first position of each id and the last value seen
// for it.
func dedupe(items []model.Notification) []model.Notification {
	out := make([]model.Notification, 0, len(items))
	index := make(map[string]int, len(items))
	for _, n := range items {
		if i, ok := index[n.ID]; ok {
			out[i] = n
			continue
		}
		index[n.ID] = len(out)
		out = append(out, n)
	}
	return out
}
