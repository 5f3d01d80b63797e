package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "pending_payment"
	BookingPaymentFailed  BookingStatus = "payment_failed"
	BookingUpcoming       BookingStatus = "upcoming"
	BookingConfirmed      BookingStatus = "confirmed"
	BookingCompleted      BookingStatus = "completed"
	BookingCancelled      BookingStatus = "cancelled"
)

// Payable reports whether a checkout may be started for a booking in this status.
func (s BookingStatus) Payable() bool {
	switch s {
	case BookingPendingPayment, BookingPaymentFailed, BookingUpcoming:
		return true
	}
	return false
}

type Booking struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	SalonID      uuid.UUID       `json:"salon_id"`
	ServiceName  string          `json:"service_name"`
	ServicePrice decimal.Decimal `json:"service_price"`
	Status       BookingStatus   `json:"status"`
	BookingDate  *time.Time      `json:"booking_date,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
