package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NotificationType is the kind of event a notification describes. The raw
// server value is kept verbatim so unrecognized types survive a round trip.
type NotificationType string

// Known notification types. Matching is case- and separator-insensitive,
// see Canonical.
const (
	TypeBooking      NotificationType = "booking"
	TypeReview       NotificationType = "review"
	TypePayment      NotificationType = "payment"
	TypeMessage      NotificationType = "message"
	TypeSystem       NotificationType = "system"
	TypeNegotiation  NotificationType = "negotiation"
	TypeStatusUpdate NotificationType = "status_update"
)

var knownTypes = map[string]NotificationType{
	"booking":      TypeBooking,
	"review":       TypeReview,
	"payment":      TypePayment,
	"message":      TypeMessage,
	"system":       TypeSystem,
	"negotiation":  TypeNegotiation,
	"statusupdate": TypeStatusUpdate,
}

// Canonical maps the raw type onto the known vocabulary. The second return
// value is false for types outside it.
func (t NotificationType) Canonical() (NotificationType, bool) {
	key := strings.NewReplacer("_", "", "-", "", " ", "").
		Replace(strings.ToLower(strings.TrimSpace(string(t))))
	known, ok := knownTypes[key]
	return known, ok
}

// Is reports whether t denotes the same known type as other.
func (t NotificationType) Is(other NotificationType) bool {
	c, ok := t.Canonical()
	if !ok {
		return false
	}
	o, ok := other.Canonical()
	return ok && c == o
}

// Notification is a server-owned entry of the user's notification feed.
type Notification struct {
	// ID is the server-assigned identifier, unique within a feed.
	ID string `json:"id"`

	// Type is the raw notification type as sent by the server.
	Type NotificationType `json:"type"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// CreatedAt orders the feed; newest first.
	CreatedAt time.Time `json:"createdAt"`

	// IsRead and Read mirror each other. Some backends send one, some the
	// other; local mutations always keep both equal via SetRead.
	IsRead bool `json:"isRead"`
	Read   bool `json:"read"`

	// ReservationID links negotiation notifications to a reservation.
	// Empty when the server did not send one.
	ReservationID string `json:"reservationId,omitempty"`
}

// SetRead flips both read flags together.
func (n *Notification) SetRead(read bool) {
	n.IsRead = read
	n.Read = read
}

// HasReservation reports whether the notification links to a reservation.
func (n Notification) HasReservation() bool {
	return n.ReservationID != ""
}

// wireNotification accepts the field spellings seen across backends.
type wireNotification struct {
	ID                 flexString      `json:"id"`
	MongoID            flexString      `json:"_id"`
	Type               string          `json:"type"`
	Message            string          `json:"message"`
	CreatedAt          json.RawMessage `json:"createdAt"`
	CreatedAtSnake     json.RawMessage `json:"created_at"`
	IsRead             *bool           `json:"isRead"`
	IsReadSnake        *bool           `json:"is_read"`
	Read               *bool           `json:"read"`
	ReservationID      flexString      `json:"reservationId"`
	ReservationIDSnake flexString      `json:"reservation_id"`
}

// UnmarshalJSON decodes a notification from any of the supported payload
// spellings.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var w wireNotification
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id := string(w.ID)
	if id == "" {
		id = string(w.MongoID)
	}
	if id == "" {
		return fmt.Errorf("notification without id")
	}

	raw := w.CreatedAt
	if len(raw) == 0 || string(raw) == "null" {
		raw = w.CreatedAtSnake
	}
	createdAt, err := parseTimestamp(raw)
	if err != nil {
		return fmt.Errorf("notification %s: %w", id, err)
	}

	isRead := w.IsRead
	if isRead == nil {
		isRead = w.IsReadSnake
	}
	read := false
	if isRead != nil {
		read = *isRead
	}
	if w.Read != nil {
		read = read || *w.Read
	}

	reservationID := string(w.ReservationID)
	if reservationID == "" {
		reservationID = string(w.ReservationIDSnake)
	}

	*n = Notification{
		ID:            id,
		Type:          NotificationType(w.Type),
		Message:       w.Message,
		CreatedAt:     createdAt,
		ReservationID: reservationID,
	}
	n.SetRead(read)
	return nil
}

// flexString decodes a JSON string or number into its string form.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(num.String())
	return nil
}

// parseTimestamp accepts RFC 3339 strings or Unix epoch milliseconds.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, fmt.Errorf("missing createdAt")
	}

	if raw[0] != '"' {
		ms, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing createdAt %s: %w", raw, err)
		}
		return time.UnixMilli(ms), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing createdAt %q: unsupported format", s)
}
