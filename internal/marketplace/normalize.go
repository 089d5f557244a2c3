package marketplace

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nhle/craftnotify/internal/model"
)

// feedEnvelope covers the two wrapped list shapes.
type feedEnvelope struct {
	Notifications json.RawMessage `json:"notifications"`
	Data          json.RawMessage `json:"data"`
}

// decodeFeed accepts a bare array, {"notifications": [...]} or
// {"data": [...]}. Items that fail to decode are skipped and counted.
func decodeFeed(body []byte) ([]model.Notification, int, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, 0, ErrShapeMismatch
	}

	var raw json.RawMessage
	switch body[0] {
	case '[':
		raw = body
	case '{':
		var env feedEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
		}
		switch {
		case isArray(env.Notifications):
			raw = env.Notifications
		case isArray(env.Data):
			raw = env.Data
		default:
			return nil, 0, ErrShapeMismatch
		}
	default:
		return nil, 0, ErrShapeMismatch
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}

	items := make([]model.Notification, 0, len(elems))
	skipped := 0
	for _, elem := range elems {
		var n model.Notification
		if err := json.Unmarshal(elem, &n); err != nil {
			skipped++
			continue
		}
		items = append(items, n)
	}

	return items, skipped, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
