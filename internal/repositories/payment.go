package repositories

import (
	"context"
	"errors"
	"time"

	"bookingpay/internal/models"

	"github.com/google/uuid"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrBookingNotFound = errors.New("booking not found")
	// ErrStatusConflict means the stored payment is already final with a
	// different status.
	ErrStatusConflict  = errors.New("payment status conflict")
)

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	Save(ctx context.Context, payment *models.Payment) error

	// ListOnHold returns on-hold payments last updated (and last reconciled)
	// before olderThan, least recently reconciled first.
	ListOnHold(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error)
}

// BookingRepository defines the interface for booking reads
type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}
