// Package feed derives everything the notification center displays from a
// snapshot of the canonical collection. Nothing here performs I/O or
// mutates its input.
package feed

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nhle/craftnotify/internal/model"
)

// Filter is the UI-local read-state filter.
type Filter int

const (
	FilterAll Filter = iota
	FilterUnread
	FilterRead
)

var filterNames = []string{"all", "unread", "read"}

func (f Filter) String() string {
	if f < 0 || int(f) >= len(filterNames) {
		return "all"
	}
	return filterNames[f]
}

// Next cycles all → unread → read → all.
func (f Filter) Next() Filter {
	return (f + 1) % Filter(len(filterNames))
}

// ParseFilter maps a filter name onto a Filter.
func ParseFilter(s string) (Filter, error) {
	for i, name := range filterNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Filter(i), nil
		}
	}
	return FilterAll, fmt.Errorf("unknown filter %q", s)
}

// Groups partitions a feed by calendar day relative to now.
type Groups struct {
	Today     []model.Notification
	Yesterday []model.Notification
	Older     []model.Notification
}

// Len returns the total number of notifications across all groups.
func (g Groups) Len() int {
	return len(g.Today) + len(g.Yesterday) + len(g.Older)
}

// View is the read-only object handed to the presentation layer.
type View struct {
	All         []model.Notification
	Grouped     Groups
	UnreadCount int
	Filter      Filter
}

// SortByRecency returns a copy ordered newest first. Equal timestamps keep
// their fetch order.
func SortByRecency(list []model.Notification) []model.Notification {
	sorted := make([]model.Notification, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted
}

// PartitionByDate splits list into today, yesterday and older by calendar
// day in now's location. Timestamps after today also land in Today.
func PartitionByDate(list []model.Notification, now time.Time) Groups {
	loc := now.Location()
	today := calendarDay(now, loc)
	yesterday := today.AddDate(0, 0, -1)

	var g Groups
	for _, n := range list {
		day := calendarDay(n.CreatedAt, loc)
		switch {
		case !day.Before(today):
			g.Today = append(g.Today, n)
		case day.Equal(yesterday):
			g.Yesterday = append(g.Yesterday, n)
		default:
			g.Older = append(g.Older, n)
		}
	}
	return g
}

func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// FilterBy returns the entries matching f, preserving order.
func FilterBy(list []model.Notification, f Filter) []model.Notification {
	if f == FilterAll {
		out := make([]model.Notification, len(list))
		copy(out, list)
		return out
	}
	out := make([]model.Notification, 0, len(list))
	for _, n := range list {
		if (f == FilterUnread) == !n.IsRead {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount counts entries with IsRead unset.
func UnreadCount(list []model.Notification) int {
	count := 0
	for _, n := range list {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// BuildView sorts, filters and groups a snapshot. UnreadCount always
// covers the whole snapshot, not just the filtered entries.
func BuildView(list []model.Notification, f Filter, now time.Time) View {
	filtered := FilterBy(SortByRecency(list), f)
	return View{
		All:         filtered,
		Grouped:     PartitionByDate(filtered, now),
		UnreadCount: UnreadCount(list),
		Filter:      f,
	}
}
