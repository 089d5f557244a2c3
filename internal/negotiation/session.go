package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nhle/craftnotify/internal/model"
)

// State is the phase of a negotiation session.
type State int

const (
	StateViewing State = iota
	StateEditingPrice
	StateRejectConfirming
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateEditingPrice:
		return "editing"
	case StateRejectConfirming:
		return "confirming"
	case StateSubmitting:
		return "submitting"
	default:
		return "viewing"
	}
}

var (
	// ErrNotEligible is returned for notifications that cannot negotiate.
	ErrNotEligible = errors.New("notification is not eligible for negotiation")

	// ErrInvalidTransition is returned when an action does not apply to
	// the session's current state.
	ErrInvalidTransition = errors.New("invalid negotiation transition")
)

// Negotiator performs the remote negotiation calls. The sync loop
// implements it so a successful call is followed by a reconciling fetch.
type Negotiator interface {
	UpdatePrice(ctx context.Context, reservationID string, price float64) error
	RejectNegotiation(ctx context.Context, reservationID string) error
}

// Session is the negotiation state of one notification card. It is safe
// to call from the UI goroutine while a submission runs elsewhere.
type Session struct {
	notificationID string
	reservationID  string

	mu         sync.Mutex
	state      State
	returnTo   State
	draft      string
	validation string
	err        error
}

// NewSession opens a session for n in the Viewing state.
func NewSession(n model.Notification) (*Session, error) {
	if !Eligible(n) {
		return nil, fmt.Errorf("notification %s: %w", n.ID, ErrNotEligible)
	}
	return &Session{
		notificationID: n.ID,
		reservationID:  n.ReservationID,
	}, nil
}

// NotificationID returns the id of the card this session belongs to.
func (s *Session) NotificationID() string { return s.notificationID }

// ReservationID returns the reservation being negotiated.
func (s *Session) ReservationID() string { return s.reservationID }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Draft returns the price text being edited.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Validation returns the current validation message, if any.
func (s *Session) Validation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validation
}

// Err returns the last remote failure. It is cleared by the next
// transition out of the state the failure returned to.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// BeginEdit opens the price form. A draft kept from a failed submission
// is preserved.
func (s *Session) BeginEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateViewing:
		s.state = StateEditingPrice
		s.err = nil
		return nil
	case StateEditingPrice:
		return nil
	default:
		return fmt.Errorf("begin edit while %s: %w", s.state, ErrInvalidTransition)
	}
}

// SetDraft replaces the price text and clears any validation message.
func (s *Session) SetDraft(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditingPrice {
		return fmt.Errorf("set draft while %s: %w", s.state, ErrInvalidTransition)
	}
	s.draft = text
	s.validation = ""
	return nil
}

// CancelEdit closes the price form and discards the draft.
func (s *Session) CancelEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditingPrice {
		return fmt.Errorf("cancel edit while %s: %w", s.state, ErrInvalidTransition)
	}
	s.state = StateViewing
	s.draft = ""
	s.validation = ""
	s.err = nil
	return nil
}

// Submit validates the draft and sends it as a counter-offer. An invalid
// draft returns a *ValidationError without any remote call. While a
// submission is in flight further calls return nil and do nothing.
func (s *Session) Submit(ctx context.Context, neg Negotiator) error {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return nil
	}
	if s.state != StateEditingPrice {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("submit while %s: %w", state, ErrInvalidTransition)
	}

	price, err := ParsePrice(s.draft)
	if err != nil {
		s.validation = err.Error()
		s.mu.Unlock()
		return err
	}
	s.begin(StateEditingPrice)
	s.mu.Unlock()

	err = neg.UpdatePrice(ctx, s.reservationID, price)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.fail(err)
		return err
	}
	s.state = StateViewing
	s.draft = ""
	return nil
}

// BeginReject asks for confirmation before rejecting.
func (s *Session) BeginReject() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateViewing {
		return fmt.Errorf("begin reject while %s: %w", s.state, ErrInvalidTransition)
	}
	s.state = StateRejectConfirming
	s.err = nil
	return nil
}

// CancelReject returns to Viewing without rejecting.
func (s *Session) CancelReject() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRejectConfirming {
		return fmt.Errorf("cancel reject while %s: %w", s.state, ErrInvalidTransition)
	}
	s.state = StateViewing
	return nil
}

// ConfirmReject rejects the negotiation. Either way the session ends in
// Viewing; a failure is kept in Err.
func (s *Session) ConfirmReject(ctx context.Context, neg Negotiator) error {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return nil
	}
	if s.state != StateRejectConfirming {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("confirm reject while %s: %w", state, ErrInvalidTransition)
	}
	s.begin(StateViewing)
	s.mu.Unlock()

	err := neg.RejectNegotiation(ctx, s.reservationID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.fail(err)
		return err
	}
	s.state = StateViewing
	return nil
}

// begin enters Submitting; returnTo is where a failure lands. Callers
// hold s.mu.
func (s *Session) begin(returnTo State) {
	s.state = StateSubmitting
	s.returnTo = returnTo
	s.validation = ""
	s.err = nil
}

func (s *Session) fail(err error) {
	s.state = s.returnTo
	s.err = err
}
