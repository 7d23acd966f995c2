package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bookingpay/internal/models"
	"bookingpay/internal/services/processor"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type service struct {
	payments  PaymentRepository
	bookings  BookingRepository
	processor processor.Client
	locker    Locker
	config    Config
	metrics   MetricsCollector
	log       *zap.Logger
}

// NewService creates a new settlement service
func NewService(
	payments PaymentRepository,
	bookings BookingRepository,
	client processor.Client,
	locker Locker,
	config Config,
	metrics MetricsCollector,
	log *zap.Logger,
) Service {
	if payments == nil {
		panic("payment repository is required")
	}
	if bookings == nil {
		panic("booking repository is required")
	}
	if client == nil {
		panic("processor client is required")
	}

	// Single-process deployments fall back to an in-memory lock
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if config.Locale == "" {
		config.Locale = "auto"
	}

	return &service{
		payments:  payments,
		bookings:  bookings,
		processor: client,
		locker:    locker,
		config:    config,
		metrics:   metrics,
		log:       log.With(zap.String("service", "settlement")),
	}
}

// withPayment runs fn on a fresh copy of the payment while holding its lock.
func (s *service) withPayment(ctx context.Context, id uuid.UUID, fn func(p *models.Payment) error) error {
	unlock, err := s.locker.Lock(ctx, lockKeyPrefix+id.String())
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrLockFailed, id, err)
	}
	defer unlock()

	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}
	return fn(p)
}

// transition moves p to status. Final statuses are never left.
func (s *service) transition(p *models.Payment, to models.PaymentStatus) bool {
	from := p.Status
	if from == to {
		return false
	}
	if from.IsTerminal() {
		s.log.Warn("refusing to leave final status",
			zap.String("payment_id", p.ID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false
	}
	p.Status = to
	s.metrics.RecordTransition(from, to)
	s.log.Info("payment status changed",
		zap.String("payment_id", p.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return true
}

func (s *service) save(ctx context.Context, p *models.Payment) error {
	if err := s.payments.Save(ctx, p); err != nil {
		s.log.Error("failed to save payment",
			zap.String("payment_id", p.ID.String()),
			zap.String("status", string(p.Status)),
			zap.String("transaction_id", p.TransactionID),
			zap.Error(err),
		)
		return fmt.Errorf("%w %s: %v", ErrSaveFailed, p.ID, err)
	}
	return nil
}

// fail logs message on the payment and moves it to failed.
func (s *service) fail(ctx context.Context, p *models.Payment, message string) error {
	p.AddLog(message)
	s.transition(p, models.PaymentStatusFailed)
	return s.save(ctx, p)
}

// booking returns nil when the booking cannot be loaded; settlement goes on without it.
func (s *service) booking(ctx context.Context, p *models.Payment) *models.Booking {
	if p.BookingID == uuid.Nil {
		return nil
	}
	b, err := s.bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		s.log.Warn("booking not available",
			zap.String("payment_id", p.ID.String()),
			zap.String("booking_id", p.BookingID.String()),
			zap.Error(err),
		)
		return nil
	}
	return b
}

// ProcessPayment validates the posted checkout fields and routes the payment
// to the card or the redirect-source path.
func (s *service) ProcessPayment(ctx context.Context, paymentID uuid.UUID, fields PaymentFields) (*Outcome, error) {
	var out *Outcome
	err := s.withPayment(ctx, paymentID, func(p *models.Payment) error {
		if p.Status.IsTerminal() {
			s.log.Warn("checkout posted for a final payment",
				zap.String("payment_id", p.ID.String()),
				zap.String("status", string(p.Status)),
			)
			out = &Outcome{Payment: p, Redirect: redirectFor(p.Status)}
			return nil
		}

		fields = normalizeFields(fields)
		if msg := s.validateFields(p, fields); msg != "" {
			if err := s.fail(ctx, p, msg); err != nil {
				return err
			}
			out = &Outcome{Payment: p, Redirect: RedirectFailure, Changed: true}
			return nil
		}

		p.PaymentMethod = fields.PaymentMethod

		var err error
		if fields.PaymentMethod == models.PaymentMethodCard {
			out, err = s.processCard(ctx, p, fields.PaymentIntentID, fields.PaymentIntentStatus)
		} else {
			out, err = s.processSource(ctx, p, fields.SourceID, fields.RedirectURL)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeFields(f PaymentFields) PaymentFields {
	f.PaymentMethod = strings.ToLower(strings.TrimSpace(f.PaymentMethod))
	f.PaymentIntentID = strings.TrimSpace(f.PaymentIntentID)
	f.PaymentIntentStatus = strings.ToLower(strings.TrimSpace(f.PaymentIntentStatus))
	f.SourceID = strings.TrimSpace(f.SourceID)
	f.RedirectURL = strings.TrimSpace(f.RedirectURL)
	return f
}

// validateFields returns the log message for the first problem found.
func (s *service) validateFields(p *models.Payment, f PaymentFields) string {
	if f.PaymentMethod == "" {
		return "The payment method is not selected."
	}
	if !contains(s.config.AllowedMethods(p.Currency), f.PaymentMethod) {
		return fmt.Sprintf("Payment method %q is not available for %s payments.", f.PaymentMethod, strings.ToUpper(p.Currency))
	}
	if f.PaymentMethod == models.PaymentMethodCard {
		if f.PaymentIntentID == "" {
			return "Payment intent ID is not set."
		}
		return ""
	}
	if f.SourceID == "" {
		return "Source ID is not set."
	}
	return ""
}

// processCard trusts the intent status reported by the checkout redirect.
// No processor call is made here; reconciliation verifies it later.
func (s *service) processCard(ctx context.Context, p *models.Payment, intentID, status string) (*Outcome, error) {
	p.TransactionID = intentID
	p.SetMeta(models.MetaPaymentIntentID, intentID)

	switch status {
	case processor.IntentSucceeded:
		p.AddLog(fmt.Sprintf("Payment for PaymentIntent %s succeeded.", intentID))
		s.transition(p, models.PaymentStatusCompleted)
		if err := s.save(ctx, p); err != nil {
			return nil, err
		}
		s.settle(ctx, p, s.booking(ctx, p), intentID)
		if err := s.save(ctx, p); err != nil {
			return nil, err
		}
		return &Outcome{Payment: p, Redirect: RedirectSuccess, Changed: true}, nil

	case processor.IntentCanceled:
		if err := s.fail(ctx, p, fmt.Sprintf("PaymentIntent %s was canceled.", intentID)); err != nil {
			return nil, err
		}
		return &Outcome{Payment: p, Redirect: RedirectFailure, Changed: true}, nil

	default:
		p.AddLog(fmt.Sprintf("Payment for PaymentIntent %s is processing.", intentID))
		s.transition(p, models.PaymentStatusOnHold)
		if err := s.save(ctx, p); err != nil {
			return nil, err
		}
		return &Outcome{Payment: p, Redirect: RedirectPending, Changed: true}, nil
	}
}

func (s *service) processSource(ctx context.Context, p *models.Payment, sourceID, redirectURL string) (*Outcome, error) {
	start := time.Now()
	src, callErr := s.processor.RetrieveSource(ctx, sourceID)
	s.metrics.RecordProcessorCall("source.retrieve", callErr == nil, time.Since(start))

	if callErr != nil {
		// Status is left for reconciliation.
		p.AddLog(fmt.Sprintf("Failed to process Source payment. %s", callErr.Error()))
		if err := s.save(ctx, p); err != nil {
			return nil, err
		}
		return &Outcome{Payment: p, Redirect: RedirectFailure}, nil
	}

	p.SourceID = sourceID
	p.TransactionID = sourceID

	var msg string
	switch src.Status {
	case processor.SourcePending:
		// The processor's own redirect wins over the posted one.
		if src.RedirectURL != "" {
			redirectURL = src.RedirectURL
		}
		if redirectURL != "" {
			p.AddLog(fmt.Sprintf("Payment source %s is awaiting confirmation from the customer.", sourceID))
			s.transition(p, models.PaymentStatusOnHold)
			if err := s.save(ctx, p); err != nil {
				return nil, err
			}
			return &Outcome{Payment: p, Redirect: RedirectExternal, RedirectURL: redirectURL, Changed: true}, nil
		}
		msg = fmt.Sprintf("Pending source %s received, but the redirect URL is empty.", sourceID)
	case processor.SourceCanceled:
		msg = fmt.Sprintf("Payment source %s was cancelled by customer.", sourceID)
	case processor.SourceFailed:
		msg = fmt.Sprintf("Payment source %s failed: processing failed.", sourceID)
	default:
		msg = fmt.Sprintf("Failed to process payment source %s: unsupported status %q.", sourceID, src.Status)
	}

	if err := s.fail(ctx, p, msg); err != nil {
		return nil, err
	}
	return &Outcome{Payment: p, Redirect: RedirectFailure, Changed: true}, nil
}
