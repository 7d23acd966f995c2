package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Booking is the reservation a payment settles. The settlement engine only reads it.
type Booking struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Reference         string          `gorm:"size:64;uniqueIndex" json:"reference"`
	CustomerFirstName string          `gorm:"size:100" json:"customer_first_name"`
	CustomerLastName  string          `gorm:"size:100" json:"customer_last_name"`
	CustomerEmail     string          `gorm:"size:255" json:"customer_email"`
	Description       string          `gorm:"size:255" json:"description,omitempty"`
	CheckInDate       time.Time       `gorm:"type:date" json:"check_in_date"`
	CheckOutDate      time.Time       `gorm:"type:date" json:"check_out_date"`
	TotalPrice        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_price"`
	ProcessingFee     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"processing_fee"`
	Currency          string          `gorm:"size:3" json:"currency"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// BeforeCreate assigns an id to new bookings.
func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// TotalPriceWithoutProcessingFee is the commission base. ok is false when
// the booking carries no usable total.
func (b *Booking) TotalPriceWithoutProcessingFee() (amount decimal.Decimal, ok bool) {
	if b == nil || !b.TotalPrice.IsPositive() {
		return decimal.Zero, false
	}
	net := b.TotalPrice.Sub(b.ProcessingFee)
	if !net.IsPositive() {
		return decimal.Zero, false
	}
	return net, true
}

// CustomerName joins first and last name.
func (b *Booking) CustomerName() string {
	return strings.TrimSpace(b.CustomerFirstName + " " + b.CustomerLastName)
}

// ItemName is the charge description shown on the guest's statement.
func (b *Booking) ItemName() string {
	if b.Description != "" {
		return b.Description
	}
	ref := b.Reference
	if ref == "" {
		ref = b.ID.String()
	}
	return fmt.Sprintf("Reservation #%s", ref)
}

// Label identifies the booking in log lines.
func (b *Booking) Label() string {
	if b.Reference != "" {
		return b.Reference
	}
	return b.ID.String()
}
