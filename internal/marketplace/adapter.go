package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nhle/craftnotify/internal/model"
)

// Remote paths. Each notification operation maps onto exactly one of these,
// except MarkRead which falls back from notificationPath to readMarkerPath.
const (
	notificationsPath   = "/notifications"
	allReadMarkerPath   = "/notifications/read"
	notificationPathFmt = "/notifications/%s"
	readMarkerPathFmt   = "/notifications/%s/read"
	reservationPriceFmt = "/reservations/%s/price"
	reservationNegoFmt  = "/reservations/%s/negotiation"
)

// Operation names used for errors, spans and logs.
const (
	OpList                   = "list"
	OpMarkRead               = "mark_read"
	OpMarkAllRead            = "mark_all_read"
	OpDelete                 = "delete"
	OpUpdateNegotiationPrice = "update_negotiation_price"
	OpRejectNegotiation      = "reject_negotiation"
)

// Adapter maps notification operations onto the marketplace REST API and
// normalizes what comes back.
type Adapter struct {
	client *Client
	tracer trace.Tracer
	logger *zap.Logger
}

// NewAdapter wraps a client. Spans go to the global tracer provider.
func NewAdapter(client *Client, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client: client,
		tracer: otel.Tracer("github.com/nhle/craftnotify/internal/marketplace"),
		logger: logger.Named("adapter"),
	}
}

// span starts a span for op and returns a finisher that records err.
func (a *Adapter) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := a.tracer.Start(ctx, "marketplace."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// List fetches the whole feed. A payload in an unrecognized shape yields
// an empty feed, not an error.
func (a *Adapter) List(ctx context.Context) (_ []model.Notification, err error) {
	ctx, end := a.span(ctx, OpList)
	defer func() { end(err) }()

	body, err := a.client.Get(ctx, OpList, notificationsPath)
	if err != nil {
		return nil, err
	}

	items, skipped, err := decodeFeed(body)
	if errors.Is(err, ErrShapeMismatch) {
		a.logger.Warn("degrading to empty feed", zap.Error(err), zap.Int("bytes", len(body)))
		return []model.Notification{}, nil
	}
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		a.logger.Warn("skipped undecodable notifications", zap.Int("skipped", skipped))
	}

	return items, nil
}

// MarkRead sets isRead=true for id. When the primary verb fails the
// read-marker endpoint is tried once; both failing is an error.
func (a *Adapter) MarkRead(ctx context.Context, id string) (err error) {
	ctx, end := a.span(ctx, OpMarkRead, attribute.String("notification.id", id))
	defer func() { end(err) }()

	primary := a.client.Patch(ctx, OpMarkRead, fmt.Sprintf(notificationPathFmt, url.PathEscape(id)), map[string]bool{
		"isRead": true,
		"read":   true,
	})
	if primary == nil {
		return nil
	}

	a.logger.Debug("primary mark-read failed, trying read marker",
		zap.String("id", id),
		zap.Error(primary),
	)

	fallback := a.client.Put(ctx, OpMarkRead, fmt.Sprintf(readMarkerPathFmt, url.PathEscape(id)), nil)
	if fallback == nil {
		return nil
	}

	return &Error{
		Op:         OpMarkRead,
		Kind:       KindOf(fallback),
		StatusCode: statusOf(fallback),
		Err:        errors.Join(primary, fallback),
	}
}

// MarkAllRead marks the whole feed as read in one call.
func (a *Adapter) MarkAllRead(ctx context.Context) (err error) {
	ctx, end := a.span(ctx, OpMarkAllRead)
	defer func() { end(err) }()

	return a.client.Put(ctx, OpMarkAllRead, allReadMarkerPath, nil)
}

// Delete removes a notification. Deleting an unknown id returns an error
// for which IsNotFound is true.
func (a *Adapter) Delete(ctx context.Context, id string) (err error) {
	ctx, end := a.span(ctx, OpDelete, attribute.String("notification.id", id))
	defer func() { end(err) }()

	return a.client.Delete(ctx, OpDelete, fmt.Sprintf(notificationPathFmt, url.PathEscape(id)))
}

// UpdateNegotiationPrice counter-offers a new price on a reservation.
func (a *Adapter) UpdateNegotiationPrice(ctx context.Context, reservationID string, price float64) (err error) {
	ctx, end := a.span(ctx, OpUpdateNegotiationPrice,
		attribute.String("reservation.id", reservationID),
		attribute.Float64("reservation.price", price),
	)
	defer func() { end(err) }()

	return a.client.Patch(ctx, OpUpdateNegotiationPrice,
		fmt.Sprintf(reservationPriceFmt, url.PathEscape(reservationID)),
		map[string]float64{"price": price},
	)
}

// RejectNegotiation marks the reservation's negotiation as rejected.
func (a *Adapter) RejectNegotiation(ctx context.Context, reservationID string) (err error) {
	ctx, end := a.span(ctx, OpRejectNegotiation, attribute.String("reservation.id", reservationID))
	defer func() { end(err) }()

	return a.client.Patch(ctx, OpRejectNegotiation,
		fmt.Sprintf(reservationNegoFmt, url.PathEscape(reservationID)),
		map[string]string{"status": "rejected"},
	)
}

// UnreadCount counts unread notifications for badge display. Any failure
// counts as zero so a badge never shows a number it cannot explain.
func (a *Adapter) UnreadCount(ctx context.Context) int {
	items, err := a.List(ctx)
	if err != nil {
		a.logger.Debug("unread count unavailable", zap.Error(err))
		return 0
	}
	count := 0
	for _, n := range items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

func statusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
