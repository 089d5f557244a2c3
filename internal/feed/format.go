package feed

import (
	"fmt"
	"time"

	"github.com/nhle/craftnotify/internal/model"
)

// dateLayout renders notifications older than a week.
const dateLayout = "1/2/2006"

// RelativeTime labels createdAt relative to now using whole elapsed units,
// always rounded down. "Yesterday" means 24 to 48 elapsed hours, which is
// not the same as the calendar-day grouping of PartitionByDate: shortly
// after midnight an entry can sit in the Yesterday group while reading
// "2h ago".
func RelativeTime(createdAt, now time.Time) string {
	elapsed := now.Sub(createdAt)
	if elapsed < time.Minute {
		return "Just now"
	}
	if elapsed < time.Hour {
		return fmt.Sprintf("%dm ago", int(elapsed/time.Minute))
	}
	if elapsed < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(elapsed/time.Hour))
	}

	days := int(elapsed / (24 * time.Hour))
	switch {
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	default:
		return createdAt.In(now.Location()).Format(dateLayout)
	}
}

// DefaultIcon is shown for types outside the known vocabulary.
const DefaultIcon = "🔔"

var icons = map[model.NotificationType]string{
	model.TypeBooking:      "📅",
	model.TypeReview:       "⭐",
	model.TypePayment:      "💳",
	model.TypeMessage:      "💬",
	model.TypeSystem:       "⚙",
	model.TypeNegotiation:  "🤝",
	model.TypeStatusUpdate: "🔄",
}

// IconFor returns the glyph for a notification type. It never fails.
func IconFor(t model.NotificationType) string {
	known, ok := t.Canonical()
	if !ok {
		return DefaultIcon
	}
	if icon, ok := icons[known]; ok {
		return icon
	}
	return DefaultIcon
}
