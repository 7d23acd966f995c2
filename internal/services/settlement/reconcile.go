package settlement

import (
	"context"
	"fmt"
	"time"

	"bookingpay/internal/models"
	"bookingpay/internal/services/processor"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reconcile asks the processor about a payment parked on hold and applies
// the answer. Processor errors leave the status untouched. Every pass is
// stamped on the payment so unresolved payments rotate to the back of the
// poller's queue.
func (s *service) Reconcile(ctx context.Context, paymentID uuid.UUID) (*Outcome, error) {
	var out *Outcome
	err := s.withPayment(ctx, paymentID, func(p *models.Payment) error {
		out = &Outcome{Payment: p, Redirect: redirectFor(p.Status)}
		if p.Status != models.PaymentStatusOnHold {
			return nil
		}

		now := time.Now().UTC()
		p.ReconciledAt = &now
		before := p.Status

		var err error
		switch {
		case p.MetaString(models.MetaChargeSourceID) != "":
			err = s.reconcileSource(ctx, p, p.MetaString(models.MetaChargeSourceID), out)
		case p.PaymentMethod == models.PaymentMethodCard:
			err = s.reconcileIntent(ctx, p, out)
		case p.SourceID != "":
			err = s.reconcileSource(ctx, p, p.SourceID, out)
		default:
			s.log.Info("nothing to reconcile against", zap.String("payment_id", p.ID.String()))
		}
		if err != nil {
			return err
		}

		out.Changed = out.Changed || p.Status != before
		out.Redirect = redirectFor(p.Status)
		if !out.Changed {
			return s.save(ctx, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) reconcileIntent(ctx context.Context, p *models.Payment, out *Outcome) error {
	intentID := p.MetaString(models.MetaPaymentIntentID)
	if intentID == "" {
		intentID = p.TransactionID
	}

	start := time.Now()
	intent, callErr := s.processor.RetrievePaymentIntent(ctx, intentID)
	s.metrics.RecordProcessorCall("payment_intent.retrieve", callErr == nil, time.Since(start))
	if callErr != nil {
		s.log.Warn("payment intent lookup failed",
			zap.String("payment_id", p.ID.String()),
			zap.String("intent_id", intentID),
			zap.Error(callErr),
		)
		return nil
	}

	switch intent.Status {
	case processor.IntentSucceeded:
		p.AddLog(fmt.Sprintf("Payment for PaymentIntent %s succeeded.", intent.ID))
		s.transition(p, models.PaymentStatusCompleted)
		if err := s.save(ctx, p); err != nil {
			return err
		}
		s.settle(ctx, p, s.booking(ctx, p), intent.ID)
		out.Changed = true
		return s.save(ctx, p)

	case processor.IntentCanceled:
		out.Changed = true
		return s.fail(ctx, p, fmt.Sprintf("PaymentIntent %s was canceled.", intent.ID))
	}
	return nil
}

func (s *service) reconcileSource(ctx context.Context, p *models.Payment, sourceID string, out *Outcome) error {
	start := time.Now()
	src, callErr := s.processor.RetrieveSource(ctx, sourceID)
	s.metrics.RecordProcessorCall("source.retrieve", callErr == nil, time.Since(start))
	if callErr != nil {
		s.log.Warn("source lookup failed",
			zap.String("payment_id", p.ID.String()),
			zap.String("source_id", sourceID),
			zap.Error(callErr),
		)
		return nil
	}
	if p.PaymentMethod == "" && src.Type != "" {
		p.PaymentMethod = src.Type
	}

	switch src.Status {
	case processor.SourceChargeable:
		_, err := s.charge(ctx, p, src.ID)
		return err
	case processor.SourceConsumed:
		if p.MetaString(models.MetaChargeSourceID) != src.ID {
			out.Changed = true
			return s.fail(ctx, p, fmt.Sprintf("Payment source %s was consumed by another charge.", src.ID))
		}
		// Our own charge went through: the same idempotency key returns it.
		p.AddLog(fmt.Sprintf("Payment source %s is consumed, replaying the charge.", src.ID))
		_, err := s.charge(ctx, p, src.ID)
		return err
	case processor.SourceCanceled:
		out.Changed = true
		return s.fail(ctx, p, fmt.Sprintf("Payment source %s was cancelled by customer.", src.ID))
	case processor.SourceFailed:
		out.Changed = true
		return s.fail(ctx, p, fmt.Sprintf("Payment source %s failed: processing failed.", src.ID))
	}
	return nil
}
