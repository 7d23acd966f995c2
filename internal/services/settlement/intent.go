package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bookingpay/internal/models"
	"bookingpay/internal/services/money"
	"bookingpay/internal/services/processor"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreatePaymentIntent opens a card payment intent for the checkout page.
// Transfers are not created here; they follow a successful charge.
func (s *service) CreatePaymentIntent(ctx context.Context, paymentID uuid.UUID) (*CheckoutData, error) {
	var data *CheckoutData
	err := s.withPayment(ctx, paymentID, func(p *models.Payment) error {
		if p.Status.IsTerminal() {
			return ErrPaymentFinalized
		}
		if !money.MeetsMinimum(p.Amount, p.Currency) {
			return fmt.Errorf("%w: %s %s", ErrBelowMinimum, money.Round(p.Amount, p.Currency), strings.ToUpper(p.Currency))
		}

		booking := s.booking(ctx, p)
		amount := money.ToMinorUnits(p.Amount, p.Currency)
		req := processor.IntentRequest{
			AmountMinor:        amount,
			Currency:           strings.ToLower(p.Currency),
			PaymentMethodTypes: []string{models.PaymentMethodCard},
			TransferGroup:      p.ID.String(),
			Metadata:           paymentMetadata(p, booking),
			IdempotencyKey:     intentKeyPrefix + p.ID.String(),
		}
		if booking != nil {
			req.Description = booking.ItemName()
		}

		start := time.Now()
		intent, callErr := s.processor.CreatePaymentIntent(ctx, req)
		s.metrics.RecordProcessorCall("payment_intent.create", callErr == nil, time.Since(start))

		if callErr != nil {
			p.AddLog(fmt.Sprintf("Failed to create payment intent. %s", callErr.Error()))
			if err := s.save(ctx, p); err != nil {
				return err
			}
			s.log.Warn("payment intent not created", zap.String("payment_id", p.ID.String()), zap.Error(callErr))
			return fmt.Errorf("%w: %v", ErrIntentFailed, callErr)
		}

		if p.MetaString(models.MetaPaymentIntentID) != intent.ID {
			p.SetMeta(models.MetaPaymentIntentID, intent.ID)
			p.AddLog(fmt.Sprintf("PaymentIntent %s created for %s.", intent.ID, money.FormatMinor(amount, p.Currency)))
			if err := s.save(ctx, p); err != nil {
				return err
			}
		}

		data = &CheckoutData{
			PaymentID:       p.ID.String(),
			PaymentIntentID: intent.ID,
			ClientSecret:    intent.ClientSecret,
			PublicKey:       s.config.PublicKey,
			Locale:          s.config.Locale,
			Currency:        strings.ToUpper(p.Currency),
			AmountMinor:     amount,
			PaymentMethods:  s.config.AllowedMethods(p.Currency),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
