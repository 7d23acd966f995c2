package settlement

import (
	"context"
	"testing"
	"time"

	"bookingpay/internal/models"
	"bookingpay/internal/services/processor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestService_Reconcile(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		status      models.PaymentStatus
		setupMock   func(*MockProcessor, string)
		wantStatus  models.PaymentStatus
		wantChanged bool
	}{
		{
			name:   "card intent succeeded",
			method: models.PaymentMethodCard,
			status: models.PaymentStatusOnHold,
			setupMock: func(p *MockProcessor, id string) {
				p.On("RetrievePaymentIntent", mock.Anything, "pi_1").
					Return(&processor.IntentResult{ID: "pi_1", Status: "succeeded"}, nil).Once()
				p.On("CreateTransfer", mock.Anything, commissionTransfer(id)).
					Return(processor.TransferResult{ID: "tr_1"}).Once()
			},
			wantStatus:  models.PaymentStatusCompleted,
			wantChanged: true,
		},
		{
			name:   "card intent canceled",
			method: models.PaymentMethodCard,
			status: models.PaymentStatusOnHold,
			setupMock: func(p *MockProcessor, id string) {
				p.On("RetrievePaymentIntent", mock.Anything, "pi_1").
					Return(&processor.IntentResult{ID: "pi_1", Status: "canceled"}, nil).Once()
			},
			wantStatus:  models.PaymentStatusFailed,
			wantChanged: true,
		},
		{
			name:   "card intent still processing",
			method: models.PaymentMethodCard,
			status: models.PaymentStatusOnHold,
			setupMock: func(p *MockProcessor, id string) {
				p.On("RetrievePaymentIntent", mock.Anything, "pi_1").
					Return(&processor.IntentResult{ID: "pi_1", Status: "processing"}, nil).Once()
			},
			wantStatus: models.PaymentStatusOnHold,
		},
		{
			name:   "lookup error changes nothing",
			method: models.PaymentMethodCard,
			status: models.PaymentStatusOnHold,
			setupMock: func(p *MockProcessor, id string) {
				p.On("RetrievePaymentIntent", mock.Anything, "pi_1").
					Return(nil, &processor.Error{Op: "payment_intent.retrieve", Message: "timeout"}).Once()
			},
			wantStatus: models.PaymentStatusOnHold,
		},
		{
			name:   "chargeable source is charged",
			method: models.PaymentMethodIdeal,
			status: models.PaymentStatusOnHold,
			setupMock: func(p *MockProcessor, id string) {
				p.On("RetrieveSource", mock.Anything, "src_1").
					Return(&processor.SourceResult{ID: "src_1", Status: "chargeable"}, nil).Once()
				p.On("CreateCharge", mock.Anything, mock.MatchedBy(func(req processor.ChargeRequest) bool {
					return req.SourceID == "src_1"
				})).Return(&processor.ChargeResult{ID: "ch_1", Status: "succeeded"}, nil).Once()
				p.On("CreateTransfer", mock.Anything, commissionTransfer(id)).
					Return(processor.TransferResult{ID: "tr_1"}).Once()
			},
			wantStatus:  models.PaymentStatusCompleted,
			wantChanged: true,
		},
		{
			name:   "canceled source fails",
			method: models.PaymentMethodIdeal,
			status: models.PaymentStatusOnHold,
			setupMock: func(p *MockProcessor, id string) {
				p.On("RetrieveSource", mock.Anything, "src_1").
					Return(&processor.SourceResult{ID: "src_1", Status: "canceled"}, nil).Once()
			},
			wantStatus:  models.PaymentStatusFailed,
			wantChanged: true,
		},
		{
			name:       "completed payment is left alone",
			method:     models.PaymentMethodCard,
			status:     models.PaymentStatusCompleted,
			wantStatus: models.PaymentStatusCompleted,
		},
		{
			name:       "pending payment is left alone",
			method:     models.PaymentMethodIdeal,
			status:     models.PaymentStatusPending,
			wantStatus: models.PaymentStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBooking()
			p := testPayment(b, tt.status)
			p.PaymentMethod = tt.method
			if tt.method == models.PaymentMethodCard {
				p.TransactionID = "pi_1"
				p.SetMeta(models.MetaPaymentIntentID, "pi_1")
			} else {
				p.TransactionID = "src_1"
				p.SourceID = "src_1"
			}
			f := newFixture(testConfig(), b, p)
			if tt.setupMock != nil {
				tt.setupMock(f.processor, p.ID.String())
			}

			out, err := f.svc.Reconcile(context.Background(), p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, out.Changed)
			assert.Equal(t, redirectFor(tt.wantStatus), out.Redirect)
			assert.Equal(t, tt.wantStatus, f.payments.get(t, p.ID).Status)

			if tt.setupMock == nil {
				assert.Empty(t, f.processor.Calls)
			}
			f.processor.AssertExpectations(t)
		})
	}
}

func TestService_Reconcile_ReplaysInterruptedCharge(t *testing.T) {
	tests := []struct {
		name     string
		status   models.PaymentStatus
		sourceID string
	}{
		{
			name:     "on-hold payment whose source went through",
			status:   models.PaymentStatusOnHold,
			sourceID: "src_1",
		},
		{
			name:     "pending payment charged straight from the admin",
			status:   models.PaymentStatusPending,
			sourceID: "src_9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBooking()
			p := testPayment(b, tt.status)
			if tt.status == models.PaymentStatusOnHold {
				p.PaymentMethod = models.PaymentMethodIdeal
				p.SourceID = tt.sourceID
			}
			f := newFixture(testConfig(), b, p)
			id := p.ID.String()

			sameCharge := mock.MatchedBy(func(req processor.ChargeRequest) bool {
				return req.SourceID == tt.sourceID && req.IdempotencyKey == chargeKeyPrefix+id
			})
			f.processor.On("CreateCharge", mock.Anything, sameCharge).
				Return(nil, &processor.Error{Op: "charge.create", Message: "context deadline exceeded"}).Once()

			out, err := f.svc.ChargeSource(context.Background(), p.ID, tt.sourceID)
			require.NoError(t, err)
			require.Equal(t, ChargeAwaitingWebhook, out.Status)

			stored := f.payments.get(t, p.ID)
			assert.Equal(t, models.PaymentStatusOnHold, stored.Status)
			assert.Equal(t, tt.sourceID, stored.SourceID)
			assert.Equal(t, tt.sourceID, stored.MetaString(models.MetaChargeSourceID))

			// The charge reached the processor after all: the source is consumed
			// and the same idempotency key hands back the original charge.
			f.processor.On("RetrieveSource", mock.Anything, tt.sourceID).
				Return(&processor.SourceResult{ID: tt.sourceID, Status: "consumed", Type: "ideal"}, nil).Once()
			f.processor.On("CreateCharge", mock.Anything, sameCharge).
				Return(&processor.ChargeResult{ID: "ch_1", Status: "succeeded"}, nil).Once()
			f.processor.On("CreateTransfer", mock.Anything, commissionTransfer(id)).
				Return(processor.TransferResult{ID: "tr_1"}).Once()

			rec, err := f.svc.Reconcile(context.Background(), p.ID)
			require.NoError(t, err)
			assert.True(t, rec.Changed)
			assert.Equal(t, RedirectSuccess, rec.Redirect)

			stored = f.payments.get(t, p.ID)
			assert.Equal(t, models.PaymentStatusCompleted, stored.Status)
			assert.Equal(t, "ch_1", stored.TransactionID)
			assert.Equal(t, models.PaymentMethodIdeal, stored.PaymentMethod)
			assert.Equal(t, "tr_1", stored.MetaString(models.MetaCommissionTransferID))
			assert.True(t, stored.Log.Contains("replaying the charge"), "log: %v", stored.Log)

			// Nothing left to do on the next pass.
			again, err := f.svc.Reconcile(context.Background(), p.ID)
			require.NoError(t, err)
			assert.False(t, again.Changed)
			f.processor.AssertExpectations(t)
		})
	}
}

func TestService_Reconcile_SourceConsumedElsewhere(t *testing.T) {
	b := testBooking()
	p := testPayment(b, models.PaymentStatusOnHold)
	p.PaymentMethod = models.PaymentMethodIdeal
	p.SourceID = "src_1"
	f := newFixture(testConfig(), b, p)

	f.processor.On("RetrieveSource", mock.Anything, "src_1").
		Return(&processor.SourceResult{ID: "src_1", Status: "consumed"}, nil).Once()

	out, err := f.svc.Reconcile(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, out.Changed)

	stored := f.payments.get(t, p.ID)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
	assert.True(t, stored.Log.Contains("consumed by another charge"), "log: %v", stored.Log)
	f.processor.AssertNotCalled(t, "CreateCharge", mock.Anything, mock.Anything)
}

func TestService_Reconcile_StampsUnresolvedPayments(t *testing.T) {
	b := testBooking()
	p := testPayment(b, models.PaymentStatusOnHold)
	p.PaymentMethod = models.PaymentMethodCard
	p.SetMeta(models.MetaPaymentIntentID, "pi_1")
	f := newFixture(testConfig(), b, p)

	f.processor.On("RetrievePaymentIntent", mock.Anything, "pi_1").
		Return(&processor.IntentResult{ID: "pi_1", Status: "processing"}, nil).Twice()

	before := time.Now().UTC()
	out, err := f.svc.Reconcile(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, out.Changed)

	stored := f.payments.get(t, p.ID)
	require.NotNil(t, stored.ReconciledAt)
	assert.False(t, stored.ReconciledAt.Before(before))
	assert.Equal(t, models.PaymentStatusOnHold, stored.Status)
	assert.Equal(t, 1, f.payments.saves)

	first := *stored.ReconciledAt
	_, err = f.svc.Reconcile(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, f.payments.get(t, p.ID).ReconciledAt.Before(first))
	assert.Equal(t, 2, f.payments.saves)
	f.processor.AssertExpectations(t)
}
