package negotiation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nhle/craftnotify/internal/model"
)

// MockNegotiator is a mock type for Negotiator.
type MockNegotiator struct {
	mock.Mock
}

func (m *MockNegotiator) UpdatePrice(ctx context.Context, reservationID string, price float64) error {
	args := m.Called(ctx, reservationID, price)
	return args.Error(0)
}

func (m *MockNegotiator) RejectNegotiation(ctx context.Context, reservationID string) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

func negotiable() model.Notification {
	return model.Notification{
		ID:            "n1",
		Type:          model.TypeNegotiation,
		Message:       "Buyer proposed a new price",
		CreatedAt:     time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		ReservationID: "r-42",
	}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		n    model.Notification
		want bool
	}{
		{
			name: "negotiation type",
			n:    model.Notification{Type: "Negotiation", ReservationID: "r1"},
			want: true,
		},
		{
			name: "message text match",
			n:    model.Notification{Type: "Message", Message: "let's NEGOTIATE the price", ReservationID: "r1"},
			want: true,
		},
		{
			name: "neither type nor text",
			n:    model.Notification{Type: "Booking", Message: "New booking", ReservationID: "r1"},
			want: false,
		},
		{
			name: "type match without reservation",
			n:    model.Notification{Type: "Negotiation", Message: "negotiate"},
			want: false,
		},
		{
			name: "text match without reservation",
			n:    model.Notification{Type: "Message", Message: "let's negotiate the price"},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Eligible(tc.n))
		})
	}
}

func TestNewSession_RejectsIneligible(t *testing.T) {
	_, err := NewSession(model.Notification{ID: "x", Type: model.TypeNegotiation})
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestParsePrice(t *testing.T) {
	for _, ok := range []string{"10", " 12.50 ", "0.01", "1e3"} {
		_, err := ParsePrice(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "0", "-5", "abc", "NaN", "Inf", "1e400", "12,50"} {
		_, err := ParsePrice(bad)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, bad)
		assert.Equal(t, InvalidPriceMessage, verr.Message)
	}
}

func TestSession_SubmitInvalidPriceMakesNoCall(t *testing.T) {
	for _, draft := range []string{"0", "abc"} {
		t.Run(draft, func(t *testing.T) {
			neg := new(MockNegotiator)
			s, err := NewSession(negotiable())
			require.NoError(t, err)
			require.NoError(t, s.BeginEdit())
			require.NoError(t, s.SetDraft(draft))

			err = s.Submit(context.Background(), neg)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, StateEditingPrice, s.State())
			assert.Equal(t, InvalidPriceMessage, s.Validation())
			assert.Equal(t, draft, s.Draft())
			neg.AssertNotCalled(t, "UpdatePrice", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSession_SubmitSuccess(t *testing.T) {
	neg := new(MockNegotiator)
	neg.On("UpdatePrice", mock.Anything, "r-42", 80.0).Return(nil).Once()

	s, err := NewSession(negotiable())
	require.NoError(t, err)
	require.NoError(t, s.BeginEdit())
	require.NoError(t, s.SetDraft("80"))

	require.NoError(t, s.Submit(context.Background(), neg))

	assert.Equal(t, StateViewing, s.State())
	assert.Empty(t, s.Draft())
	assert.NoError(t, s.Err())
	neg.AssertExpectations(t)
}

func TestSession_SubmitFailureKeepsDraft(t *testing.T) {
	boom := errors.New("server unavailable")
	neg := new(MockNegotiator)
	neg.On("UpdatePrice", mock.Anything, "r-42", 55.5).Return(boom).Once()

	s, err := NewSession(negotiable())
	require.NoError(t, err)
	require.NoError(t, s.BeginEdit())
	require.NoError(t, s.SetDraft("55.5"))

	err = s.Submit(context.Background(), neg)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateEditingPrice, s.State())
	assert.Equal(t, "55.5", s.Draft())
	assert.ErrorIs(t, s.Err(), boom)
	neg.AssertExpectations(t)
}

func TestSession_SecondSubmitIsIgnored(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	neg := new(MockNegotiator)
	neg.On("UpdatePrice", mock.Anything, "r-42", 20.0).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(nil).Once()

	s, err := NewSession(negotiable())
	require.NoError(t, err)
	require.NoError(t, s.BeginEdit())
	require.NoError(t, s.SetDraft("20"))

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), neg) }()
	<-entered
	assert.Equal(t, StateSubmitting, s.State())

	assert.NoError(t, s.Submit(context.Background(), neg))
	assert.NoError(t, s.ConfirmReject(context.Background(), neg))

	close(release)
	require.NoError(t, <-done)
	neg.AssertNumberOfCalls(t, "UpdatePrice", 1)
	neg.AssertNotCalled(t, "RejectNegotiation", mock.Anything, mock.Anything)
}

func TestSession_RejectRequiresConfirmation(t *testing.T) {
	neg := new(MockNegotiator)
	s, err := NewSession(negotiable())
	require.NoError(t, err)

	assert.ErrorIs(t, s.ConfirmReject(context.Background(), neg), ErrInvalidTransition)

	require.NoError(t, s.BeginReject())
	assert.Equal(t, StateRejectConfirming, s.State())
	require.NoError(t, s.CancelReject())
	assert.Equal(t, StateViewing, s.State())
	neg.AssertNotCalled(t, "RejectNegotiation", mock.Anything, mock.Anything)
}

func TestSession_ConfirmReject(t *testing.T) {
	boom := errors.New("conflict")
	neg := new(MockNegotiator)
	neg.On("RejectNegotiation", mock.Anything, "r-42").Return(boom).Once()
	neg.On("RejectNegotiation", mock.Anything, "r-42").Return(nil).Once()

	s, err := NewSession(negotiable())
	require.NoError(t, err)

	require.NoError(t, s.BeginReject())
	require.ErrorIs(t, s.ConfirmReject(context.Background(), neg), boom)
	assert.Equal(t, StateViewing, s.State())
	assert.ErrorIs(t, s.Err(), boom)

	require.NoError(t, s.BeginReject())
	assert.NoError(t, s.Err(), "a new attempt clears the old failure")
	require.NoError(t, s.ConfirmReject(context.Background(), neg))
	assert.Equal(t, StateViewing, s.State())
	neg.AssertExpectations(t)
}

func TestSession_InvalidTransitions(t *testing.T) {
	s, err := NewSession(negotiable())
	require.NoError(t, err)

	assert.ErrorIs(t, s.SetDraft("1"), ErrInvalidTransition)
	assert.ErrorIs(t, s.CancelEdit(), ErrInvalidTransition)
	assert.ErrorIs(t, s.Submit(context.Background(), new(MockNegotiator)), ErrInvalidTransition)

	require.NoError(t, s.BeginEdit())
	assert.ErrorIs(t, s.BeginReject(), ErrInvalidTransition)
	require.NoError(t, s.CancelEdit())
	assert.Equal(t, StateViewing, s.State())
}
