package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bookingpay/internal/models"
	"bookingpay/internal/services/commission"
	"bookingpay/internal/services/processor"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	errNotFound       = errors.New("not found")
	errStatusConflict = errors.New("status conflict")
)

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) CreateCharge(ctx context.Context, req processor.ChargeRequest) (*processor.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.ChargeResult), args.Error(1)
}

func (m *MockProcessor) CreatePaymentIntent(ctx context.Context, req processor.IntentRequest) (*processor.IntentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.IntentResult), args.Error(1)
}

func (m *MockProcessor) RetrievePaymentIntent(ctx context.Context, id string) (*processor.IntentResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.IntentResult), args.Error(1)
}

func (m *MockProcessor) RetrieveSource(ctx context.Context, id string) (*processor.SourceResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.SourceResult), args.Error(1)
}

func (m *MockProcessor) CreateTransfer(ctx context.Context, req processor.TransferRequest) processor.TransferResult {
	args := m.Called(ctx, req)
	return args.Get(0).(processor.TransferResult)
}

// memPayments stores copies so the service never shares memory with the store.
type memPayments struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*models.Payment
	saves   int
	saveErr error
}

func newMemPayments(ps ...*models.Payment) *memPayments {
	m := &memPayments{items: make(map[uuid.UUID]*models.Payment)}
	for _, p := range ps {
		m.items[p.ID] = p.Clone()
	}
	return m
}

func (m *memPayments) GetByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, errNotFound
	}
	return p.Clone(), nil
}

func (m *memPayments) Save(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	// Same rule as the database: a final status is only rewritten as itself.
	if stored, ok := m.items[p.ID]; ok && stored.Status.IsTerminal() && stored.Status != p.Status {
		return errStatusConflict
	}
	m.saves++
	m.items[p.ID] = p.Clone()
	return nil
}

func (m *memPayments) get(t *testing.T, id uuid.UUID) *models.Payment {
	t.Helper()
	p, err := m.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

type memBookings struct {
	items map[uuid.UUID]*models.Booking
}

func newMemBookings(bs ...*models.Booking) *memBookings {
	m := &memBookings{items: make(map[uuid.UUID]*models.Booking)}
	for _, b := range bs {
		m.items[b.ID] = b
	}
	return m
}

func (m *memBookings) GetByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	b, ok := m.items[id]
	if !ok {
		return nil, errNotFound
	}
	return b, nil
}

type recordingMetrics struct {
	NoopMetricsCollector
	mu      sync.Mutex
	refused int
}

func (r *recordingMetrics) RecordRefusedCharge() {
	r.mu.Lock()
	r.refused++
	r.mu.Unlock()
}

func (r *recordingMetrics) refusedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refused
}

func testBooking() *models.Booking {
	return &models.Booking{
		ID:                uuid.New(),
		Reference:         "BK-1001",
		CustomerFirstName: "Ada",
		CustomerLastName:  "Lovelace",
		CheckInDate:       time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
		TotalPrice:        decimal.NewFromInt(103),
		ProcessingFee:     decimal.NewFromInt(3),
		Currency:          "EUR",
	}
}

func testPayment(b *models.Booking, status models.PaymentStatus) *models.Payment {
	return &models.Payment{
		ID:        uuid.New(),
		BookingID: b.ID,
		Amount:    decimal.NewFromInt(103),
		Currency:  "EUR",
		Status:    status,
	}
}

func testConfig() Config {
	return Config{
		Commission:        commission.Config{Mode: commission.ModePercentage, Rate: decimal.NewFromInt(2)},
		PlatformAccountID: "acct_platform",
		HotelAccountID:    "acct_hotel",
		PaymentMethods:    []string{models.PaymentMethodBancontact, models.PaymentMethodIdeal},
		PublicKey:         "pk_test_123",
		Locale:            "en",
	}
}

type fixture struct {
	payments  *memPayments
	processor *MockProcessor
	metrics   *recordingMetrics
	svc       Service
}

func newFixture(cfg Config, b *models.Booking, ps ...*models.Payment) *fixture {
	f := &fixture{
		payments:  newMemPayments(ps...),
		processor: new(MockProcessor),
		metrics:   &recordingMetrics{},
	}
	bookings := newMemBookings()
	if b != nil {
		bookings = newMemBookings(b)
	}
	f.svc = NewService(f.payments, bookings, f.processor, NewKeyedMutex(), cfg, f.metrics, nil)
	return f
}
