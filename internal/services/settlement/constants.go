package settlement

import "bookingpay/internal/models"

// Redirect-based methods the processor offers for euro payments.
var redirectMethods = []string{
	models.PaymentMethodBancontact,
	models.PaymentMethodIdeal,
	models.PaymentMethodGiropay,
	models.PaymentMethodSepaDebit,
	models.PaymentMethodSofort,
}

// Currency the redirect methods are restricted to.
const redirectMethodsCurrency = "EUR"

// Lock and idempotency key prefixes
const (
	lockKeyPrefix          = "settlement:payment:"
	chargeKeyPrefix        = "charge-"
	intentKeyPrefix        = "intent-"
	commissionKeyPrefix    = "commission-"
	hotelTransferKeyPrefix = "hotel-"
)

// Transfer kinds
const (
	TransferCommission = "commission"
	TransferHotel      = "hotel"
)
