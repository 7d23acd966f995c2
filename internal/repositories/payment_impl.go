package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookingpay/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var finalStatuses = []models.PaymentStatus{models.PaymentStatusCompleted, models.PaymentStatusFailed}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{
		db: db,
	}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

// Save writes every column of payment. A payment that no longer exists is
// reported as ErrPaymentNotFound instead of being recreated. A stored
// completed or failed payment is only written with the same status;
// anything else is ErrStatusConflict.
func (r *paymentRepository) Save(ctx context.Context, payment *models.Payment) error {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND (status NOT IN ? OR status = ?)", payment.ID, finalStatuses, payment.Status).
		Select("*").
		Omit("id", "created_at").
		Updates(payment)
	if result.Error != nil {
		return fmt.Errorf("failed to save payment: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var stored models.Payment
	err := r.db.WithContext(ctx).Select("status").First(&stored, "id = ?", payment.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPaymentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return fmt.Errorf("%w: stored %s, writing %s", ErrStatusConflict, stored.Status, payment.Status)
}

// ListOnHold returns payments never reconciled first, then the ones
// reconciled longest ago, so unresolved payments cannot starve the rest.
func (r *paymentRepository) ListOnHold(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.PaymentStatusOnHold, olderThan).
		Where("(reconciled_at IS NULL OR reconciled_at < ?)", olderThan).
		Order("reconciled_at ASC NULLS FIRST").
		Order("updated_at ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list on-hold payments: %w", err)
	}
	return payments, nil
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{
		db: db,
	}
}

func (r *bookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if err := r.db.WithContext(ctx).Create(booking).Error; err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}
