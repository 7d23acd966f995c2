package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusOnHold    PaymentStatus = "on-hold"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// Payment method tags posted by the checkout page.
const (
	PaymentMethodCard       = "card"
	PaymentMethodBancontact = "bancontact"
	PaymentMethodIdeal      = "ideal"
	PaymentMethodGiropay    = "giropay"
	PaymentMethodSepaDebit  = "sepa_debit"
	PaymentMethodSofort     = "sofort"
)

// Metadata keys written by the settlement engine.
const (
	MetaCommissionTransferID = "commission_transfer_id"
	MetaHotelTransferID      = "hotel_transfer_id"
	MetaPaymentIntentID      = "payment_intent_id"
	// MetaChargeSourceID is written before the charge request goes out, so an
	// interrupted charge can be replayed with the same idempotency key.
	MetaChargeSourceID       = "charge_source_id"
)

// Payment is one guest payment against a booking.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"booking_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Currency      string          `gorm:"size:3;not null" json:"currency"`
	Status        PaymentStatus   `gorm:"size:20;index;not null;default:'pending'" json:"status"`
	PaymentMethod string          `gorm:"size:32" json:"payment_method,omitempty"`
	TransactionID string          `gorm:"size:255;index" json:"transaction_id,omitempty"`
	SourceID      string          `gorm:"size:255" json:"source_id,omitempty"`
	Log           PaymentLog      `gorm:"type:jsonb" json:"log"`
	Metadata      JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	ReconciledAt  *time.Time      `gorm:"index" json:"reconciled_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// BeforeCreate assigns an id to new payments.
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// AddLog appends a timestamped line to the payment log.
func (p *Payment) AddLog(message string) {
	p.Log = append(p.Log, LogEntry{Time: time.Now().UTC(), Message: message})
}

// SetMeta records a processor reference on the payment.
func (p *Payment) SetMeta(key string, value interface{}) {
	if p.Metadata == nil {
		p.Metadata = JSON{}
	}
	p.Metadata[key] = value
}

// MetaString returns a string metadata value or "".
func (p *Payment) MetaString(key string) string {
	if p.Metadata == nil {
		return ""
	}
	s, _ := p.Metadata[key].(string)
	return s
}

// Clone returns a copy that shares no slices or maps with p.
func (p *Payment) Clone() *Payment {
	c := *p
	c.Log = append(PaymentLog(nil), p.Log...)
	if p.Metadata != nil {
		c.Metadata = make(JSON, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
