package settlement

import (
	"context"
	"time"

	"bookingpay/internal/models"

	"github.com/google/uuid"
)

// Service defines the settlement engine
type Service interface {
	// Checkout
	CreatePaymentIntent(ctx context.Context, paymentID uuid.UUID) (*CheckoutData, error)
	ProcessPayment(ctx context.Context, paymentID uuid.UUID, fields PaymentFields) (*Outcome, error)

	// Charge-and-split of a chargeable source
	ChargeSource(ctx context.Context, paymentID uuid.UUID, sourceID string) (*ChargeOutcome, error)

	// Reconciliation of payments parked on hold
	Reconcile(ctx context.Context, paymentID uuid.UUID) (*Outcome, error)
}

// PaymentRepository persists payments. GetByID must return a copy that the
// caller may mutate freely.
type PaymentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	Save(ctx context.Context, payment *models.Payment) error
}

// BookingRepository reads bookings.
type BookingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// Locker serializes work on a key across goroutines (and processes, for a
// distributed implementation).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// MetricsCollector receives settlement events.
type MetricsCollector interface {
	RecordTransition(from, to models.PaymentStatus)
	RecordProcessorCall(op string, ok bool, duration time.Duration)
	RecordTransfer(kind string, ok bool)
	RecordRefusedCharge()
}
