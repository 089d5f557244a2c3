// Package negotiation drives the per-notification price negotiation
// workflow: counter-offering a price or rejecting the negotiation.
package negotiation

import (
	"strings"

	"github.com/nhle/craftnotify/internal/model"
)

// keyword marks a message as negotiation related regardless of its type.
const keyword = "negotiate"

// Eligible reports whether n can start a negotiation. A reservation id is
// always required; then either the type or the message text must match.
func Eligible(n model.Notification) bool {
	if !n.HasReservation() {
		return false
	}
	if n.Type.Is(model.TypeNegotiation) {
		return true
	}
	return strings.Contains(strings.ToLower(n.Message), keyword)
}
