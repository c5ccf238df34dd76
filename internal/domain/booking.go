package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingRejected  BookingStatus = "rejected"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Terminal statuses are immutable except for audit fields.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingRejected, BookingCompleted, BookingCancelled:
		return true
	default:
		return false
	}
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingRejected, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// CanTransition reports whether from -> to is a legal booking move.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RefundOnTransition decides the refund against the pre-transition status:
// only a move into rejected/cancelled out of pending/confirmed gives points back.
func RefundOnTransition(from, to BookingStatus) bool {
	if to != BookingRejected && to != BookingCancelled {
		return false
	}
	return from == BookingPending || from == BookingConfirmed
}

// ResponseAction is the provider's answer to a pending booking.
type ResponseAction string

const (
	ActionConfirm ResponseAction = "confirm"
	ActionReject  ResponseAction = "reject"
)

const (
	DefaultConfirmResponse = "Meeting confirmed!"
	DefaultRejectResponse  = "Unfortunately I cannot confirm this meeting."
)

// Booking is a scheduled paid session between a requester and a provider.
type Booking struct {
	ID              int64         `json:"id"`
	RequesterID     int64         `json:"requester_id"`
	ProviderID      int64         `json:"provider_id"`
	ScheduledAt     time.Time     `json:"meeting_date"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          BookingStatus `json:"status"`
	Message         string        `json:"student_message,omitempty"`
	Response        string        `json:"professor_response,omitempty"`
	MeetingLink     string        `json:"meeting_link,omitempty"`
	Cost            int64         `json:"points_cost"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsParty reports whether the account is the requester or the provider.
func (b Booking) IsParty(accountID int64) bool {
	return b.RequesterID == accountID || b.ProviderID == accountID
}

// Upcoming reports whether the meeting lies in the future at now.
func (b Booking) Upcoming(now time.Time) bool {
	return b.ScheduledAt.After(now)
}
