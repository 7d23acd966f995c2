package settlement

import (
	"strings"

	"bookingpay/internal/models"
	"bookingpay/internal/services/commission"
)

// Config is the gateway snapshot one settlement run works with.
type Config struct {
	Commission         commission.Config
	PlatformAccountID  string
	HotelAccountID     string
	HotelPayoutEnabled bool
	// PaymentMethods enabled by the operator; card is always added.
	PaymentMethods []string
	PublicKey      string
	Locale         string
}

// AllowedMethods returns the methods the checkout may offer for currency.
// Redirect methods are euro-only.
func (c Config) AllowedMethods(currency string) []string {
	methods := []string{models.PaymentMethodCard}
	if !strings.EqualFold(currency, redirectMethodsCurrency) {
		return methods
	}
	for _, m := range c.PaymentMethods {
		if m == models.PaymentMethodCard || !isRedirectMethod(m) || contains(methods, m) {
			continue
		}
		methods = append(methods, m)
	}
	return methods
}

// PaymentFields are the hidden fields posted by the checkout page.
type PaymentFields struct {
	PaymentMethod       string `json:"payment_method" form:"payment_method"`
	PaymentIntentID     string `json:"payment_intent_id" form:"payment_intent_id"`
	PaymentIntentStatus string `json:"payment_intent_status" form:"payment_intent_status"`
	SourceID            string `json:"source_id" form:"source_id"`
	RedirectURL         string `json:"redirect_url" form:"redirect_url" validate:"omitempty,url"`
}

// Redirect tells the caller which page the guest goes to next.
type Redirect string

const (
	RedirectSuccess  Redirect = "success"
	RedirectPending  Redirect = "pending"
	RedirectFailure  Redirect = "failure"
	RedirectExternal Redirect = "external"
)

// Outcome is the result of a checkout or reconciliation step.
type Outcome struct {
	Payment  *models.Payment
	Redirect Redirect
	// RedirectURL is set for RedirectExternal only.
	RedirectURL string
	Changed     bool
}

// ChargeStatus summarizes a charge-and-split attempt.
type ChargeStatus string

const (
	ChargeCompleted        ChargeStatus = "completed"
	ChargeOnHold           ChargeStatus = "on-hold"
	ChargeFailed           ChargeStatus = "failed"
	ChargeAlreadyCompleted ChargeStatus = "already-completed"
	ChargeAwaitingWebhook  ChargeStatus = "awaiting-webhook"
)

// TransferOutcome records one commission or payout transfer.
type TransferOutcome struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	AmountMinor int64  `json:"amount"`
	TransferID  string `json:"transfer_id,omitempty"`
	Error       string `json:"error,omitempty"`
	Skipped     bool   `json:"skipped,omitempty"`
}

// ChargeOutcome is the result of ChargeSource.
type ChargeOutcome struct {
	Status    ChargeStatus
	ChargeID  string
	Payment   *models.Payment
	Transfers []TransferOutcome
}

// OK reports whether the charge was accepted by the processor.
func (o *ChargeOutcome) OK() bool {
	return o.Status == ChargeCompleted || o.Status == ChargeOnHold
}

// CheckoutData is what the checkout page needs to confirm a card payment.
type CheckoutData struct {
	PaymentID       string   `json:"payment_id"`
	PaymentIntentID string   `json:"payment_intent_id"`
	ClientSecret    string   `json:"client_secret"`
	PublicKey       string   `json:"public_key"`
	Locale          string   `json:"locale"`
	Currency        string   `json:"currency"`
	AmountMinor     int64    `json:"amount"`
	PaymentMethods  []string `json:"payment_methods"`
}

func redirectFor(status models.PaymentStatus) Redirect {
	switch status {
	case models.PaymentStatusCompleted:
		return RedirectSuccess
	case models.PaymentStatusFailed:
		return RedirectFailure
	default:
		return RedirectPending
	}
}

func isRedirectMethod(m string) bool {
	return contains(redirectMethods, m)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
