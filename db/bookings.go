package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/models"
)

func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	var status string
	var bookingDate sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, salon_id, service_name, service_price, status, booking_date, created_at, updated_at
		FROM bookings WHERE id = $1`, id).
		Scan(&b.ID, &b.UserID, &b.SalonID, &b.ServiceName, &b.ServicePrice, &status, &bookingDate, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.E(errors.NotFound, errors.Code("invalid_booking"), "booking not found", err)
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error fetching booking", err)
	}
	b.Status = models.BookingStatus(status)
	if bookingDate.Valid {
		b.BookingDate = &bookingDate.Time
	}
	return &b, nil
}

// ConfirmBooking moves a booking to confirmed. It reports false when the booking was already confirmed.
func (s *Store) ConfirmBooking(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> $2`, id, string(models.BookingConfirmed))
	if err != nil {
		return false, errors.E(errors.Internal, "error confirming booking", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.E(errors.Internal, "error confirming booking", err)
	}
	return n > 0, nil
}

// FailBookingPayment moves the booking behind a gateway order to payment_failed while it is still awaiting payment.
func (s *Store) FailBookingPayment(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bookings SET status = $2, updated_at = NOW()
		WHERE id = (SELECT booking_id FROM payments WHERE razorpay_order_id = $1)
		  AND status = $3`,
		orderID, string(models.BookingPaymentFailed), string(models.BookingPendingPayment))
	if err != nil {
		return errors.E(errors.Internal, "error marking booking payment failed", err)
	}
	return nil
}
