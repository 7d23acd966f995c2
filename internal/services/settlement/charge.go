package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bookingpay/internal/models"
	"bookingpay/internal/services/commission"
	"bookingpay/internal/services/money"
	"bookingpay/internal/services/processor"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChargeSource charges a chargeable source once and, on success, transfers
// the commission. The status check and the state write share one critical
// section, so concurrent calls for the same payment charge at most once.
func (s *service) ChargeSource(ctx context.Context, paymentID uuid.UUID, sourceID string) (*ChargeOutcome, error) {
	var out *ChargeOutcome
	err := s.withPayment(ctx, paymentID, func(p *models.Payment) error {
		var err error
		out, err = s.charge(ctx, p, strings.TrimSpace(sourceID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// charge expects the payment lock to be held.
func (s *service) charge(ctx context.Context, p *models.Payment, sourceID string) (*ChargeOutcome, error) {
	if p.Status != models.PaymentStatusPending && p.Status != models.PaymentStatusOnHold {
		s.metrics.RecordRefusedCharge()
		s.log.Warn("can't charge the payment again: payment flow already completed",
			zap.String("payment_id", p.ID.String()),
			zap.String("status", string(p.Status)),
			zap.String("source_id", sourceID),
		)
		return &ChargeOutcome{Status: ChargeAlreadyCompleted, ChargeID: p.TransactionID, Payment: p}, nil
	}

	if sourceID == "" {
		if err := s.fail(ctx, p, "Source ID is not set."); err != nil {
			return nil, err
		}
		return &ChargeOutcome{Status: ChargeFailed, Payment: p}, nil
	}

	if !money.MeetsMinimum(p.Amount, p.Currency) {
		msg := fmt.Sprintf("Amount %s %s is below the minimum chargeable amount of %s %s.",
			money.Round(p.Amount, p.Currency), strings.ToUpper(p.Currency),
			money.MinimumChargeable(p.Currency), strings.ToUpper(p.Currency))
		if err := s.fail(ctx, p, msg); err != nil {
			return nil, err
		}
		return &ChargeOutcome{Status: ChargeFailed, Payment: p}, nil
	}

	booking := s.booking(ctx, p)
	amount := money.ToMinorUnits(p.Amount, p.Currency)
	req := processor.ChargeRequest{
		AmountMinor:    amount,
		Currency:       strings.ToLower(p.Currency),
		SourceID:       sourceID,
		Metadata:       paymentMetadata(p, booking),
		IdempotencyKey: chargeKeyPrefix + p.ID.String(),
	}
	if booking != nil {
		req.Description = booking.ItemName()
	}

	// Written before the request so reconciliation can replay an
	// interrupted charge with the same idempotency key.
	if p.SourceID == "" {
		p.SourceID = sourceID
	}
	p.SetMeta(models.MetaChargeSourceID, sourceID)
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	start := time.Now()
	ch, callErr := s.processor.CreateCharge(ctx, req)
	s.metrics.RecordProcessorCall("charge.create", callErr == nil, time.Since(start))

	if callErr != nil {
		// The charge may have gone through on the processor side: wait for the webhook.
		p.AddLog(fmt.Sprintf("Charge error. %s", callErr.Error()))
		s.transition(p, models.PaymentStatusOnHold)
		if err := s.save(ctx, p); err != nil {
			return nil, err
		}
		return &ChargeOutcome{Status: ChargeAwaitingWebhook, Payment: p}, nil
	}

	p.TransactionID = ch.ID

	switch ch.Status {
	case processor.ChargeSucceeded:
		p.AddLog(fmt.Sprintf("Charge %s succeeded.", ch.ID))
		s.transition(p, models.PaymentStatusCompleted)
		if err := s.save(ctx, p); err != nil {
			return nil, err
		}
		transfers := s.settle(ctx, p, booking, ch.ID)
		if err := s.save(ctx, p); err != nil {
			return nil, err
		}
		return &ChargeOutcome{Status: ChargeCompleted, ChargeID: ch.ID, Payment: p, Transfers: transfers}, nil

	case processor.ChargePending:
		p.AddLog(fmt.Sprintf("Charge %s for %s created.", ch.ID, money.FormatMinor(amount, p.Currency)))
		s.transition(p, models.PaymentStatusOnHold)
		if err := s.save(ctx, p); err != nil {
			return nil, err
		}
		return &ChargeOutcome{Status: ChargeOnHold, ChargeID: ch.ID, Payment: p}, nil

	default:
		if err := s.fail(ctx, p, fmt.Sprintf("Charge %s failed.", ch.ID)); err != nil {
			return nil, err
		}
		return &ChargeOutcome{Status: ChargeFailed, ChargeID: ch.ID, Payment: p}, nil
	}
}

// settle runs the commission sub-flow after a successful charge. It never
// changes the payment status; failures end up in the payment log.
func (s *service) settle(ctx context.Context, p *models.Payment, booking *models.Booking, chargeID string) []TransferOutcome {
	base, ok := booking.TotalPriceWithoutProcessingFee()
	if !ok {
		base = p.Amount
	}
	split := commission.Calculate(money.Round(base, p.Currency), s.config.Commission)

	transfers := []TransferOutcome{
		s.transfer(ctx, p, booking, transferSpec{
			kind:        TransferCommission,
			destination: s.config.PlatformAccountID,
			amount:      split.Commission,
			metaKey:     models.MetaCommissionTransferID,
			keyPrefix:   commissionKeyPrefix,
			description: commissionDescription(p, booking),
			chargeID:    chargeID,
		}),
	}

	if s.config.HotelPayoutEnabled {
		transfers = append(transfers, s.transfer(ctx, p, booking, transferSpec{
			kind:        TransferHotel,
			destination: s.config.HotelAccountID,
			amount:      split.Net,
			metaKey:     models.MetaHotelTransferID,
			keyPrefix:   hotelTransferKeyPrefix,
			description: hotelDescription(p, booking),
			chargeID:    chargeID,
		}))
	}

	s.log.Info("payment settled",
		zap.String("payment_id", p.ID.String()),
		zap.String("charge_id", chargeID),
		zap.String("commission_rule", s.config.Commission.String()),
		zap.String("base", split.Base.String()),
		zap.String("commission", split.Commission.String()),
		zap.String("net", split.Net.String()),
	)
	return transfers
}

type transferSpec struct {
	kind        string
	destination string
	amount      decimal.Decimal
	metaKey     string
	keyPrefix   string
	description string
	chargeID    string
}

func (s *service) transfer(ctx context.Context, p *models.Payment, booking *models.Booking, spec transferSpec) TransferOutcome {
	out := TransferOutcome{Kind: spec.kind, Destination: spec.destination}
	label := bookingLabel(p, booking)

	// A recorded transfer is never sent again.
	if id := p.MetaString(spec.metaKey); id != "" {
		out.TransferID = id
		out.Skipped = true
		return out
	}
	if spec.destination == "" {
		out.Skipped = true
		p.AddLog(fmt.Sprintf("No %s account configured: %s transfer for booking %s skipped.", spec.kind, spec.kind, label))
		return out
	}

	amount := money.ToMinorUnits(spec.amount, p.Currency)
	out.AmountMinor = amount
	if amount <= 0 {
		out.Skipped = true
		p.AddLog(fmt.Sprintf("No %s due for booking %s.", spec.kind, label))
		return out
	}

	meta := paymentMetadata(p, booking)
	meta["charge_id"] = spec.chargeID
	req := processor.TransferRequest{
		AmountMinor:    amount,
		Currency:       strings.ToLower(p.Currency),
		Destination:    spec.destination,
		Description:    spec.description,
		SourceType:     processor.SourceTypeCard,
		TransferGroup:  p.ID.String(),
		Metadata:       meta,
		IdempotencyKey: spec.keyPrefix + p.ID.String(),
	}

	start := time.Now()
	res := s.processor.CreateTransfer(ctx, req)
	s.metrics.RecordProcessorCall("transfer.create", !res.Failed(), time.Since(start))
	s.metrics.RecordTransfer(spec.kind, !res.Failed())

	if res.Failed() {
		payload, err := json.Marshal(req)
		if err != nil {
			s.log.Error("failed to serialize transfer payload", zap.String("payment_id", p.ID.String()), zap.Error(err))
		}
		out.Error = res.Error
		p.AddLog(fmt.Sprintf("Can't transfer the %s for booking %s. Actual message: %s. Payload: %s",
			spec.kind, label, res.Error, payload))
		s.log.Warn("transfer failed",
			zap.String("payment_id", p.ID.String()),
			zap.String("kind", spec.kind),
			zap.String("destination", spec.destination),
			zap.String("error", res.Error),
		)
		return out
	}

	out.TransferID = res.ID
	p.SetMeta(spec.metaKey, res.ID)
	p.AddLog(fmt.Sprintf("Transfer of %s %s for booking %s completed. Transfer ID: %q.",
		money.FormatMinor(amount, p.Currency), spec.kind, label, res.ID))
	return out
}

func paymentMetadata(p *models.Payment, booking *models.Booking) map[string]string {
	meta := map[string]string{"payment_id": p.ID.String()}
	if p.BookingID != uuid.Nil {
		meta["booking_id"] = p.BookingID.String()
	}
	if booking != nil {
		if booking.Reference != "" {
			meta["booking_reference"] = booking.Reference
		}
		if name := booking.CustomerName(); name != "" {
			meta["customer"] = name
		}
		if !booking.CheckInDate.IsZero() {
			meta["check_in"] = booking.CheckInDate.Format("2006-01-02")
		}
	}
	return meta
}

func commissionDescription(p *models.Payment, booking *models.Booking) string {
	switch {
	case booking == nil:
		return fmt.Sprintf("Commission for payment %s", p.ID)
	case booking.Description != "":
		return fmt.Sprintf("Commission for %s", booking.Description)
	default:
		return fmt.Sprintf("Commission for booking %s on %s", booking.CustomerName(), booking.CheckInDate.Format("2006-01-02"))
	}
}

func hotelDescription(p *models.Payment, booking *models.Booking) string {
	switch {
	case booking == nil:
		return fmt.Sprintf("Hotel payout for payment %s", p.ID)
	case booking.Description != "":
		return fmt.Sprintf("Hotel payout for %s", booking.Description)
	default:
		return fmt.Sprintf("Hotel payout for booking %s on %s", booking.CustomerName(), booking.CheckInDate.Format("2006-01-02"))
	}
}

func bookingLabel(p *models.Payment, booking *models.Booking) string {
	if booking != nil {
		return booking.Label()
	}
	return p.BookingID.String()
}
