package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"bookingpay/internal/handlers"
	"bookingpay/internal/middleware"
	"bookingpay/internal/models"
	"bookingpay/internal/repositories"
	"bookingpay/internal/services/auth"
	"bookingpay/internal/services/settlement"
	"bookingpay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "0123456789abcdef0123"

type MockSettlement struct {
	mock.Mock
}

func (m *MockSettlement) CreatePaymentIntent(ctx context.Context, id uuid.UUID) (*settlement.CheckoutData, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.CheckoutData), args.Error(1)
}

func (m *MockSettlement) ProcessPayment(ctx context.Context, id uuid.UUID, f settlement.PaymentFields) (*settlement.Outcome, error) {
	args := m.Called(ctx, id, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Outcome), args.Error(1)
}

func (m *MockSettlement) ChargeSource(ctx context.Context, id uuid.UUID, sourceID string) (*settlement.ChargeOutcome, error) {
	args := m.Called(ctx, id, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.ChargeOutcome), args.Error(1)
}

func (m *MockSettlement) Reconcile(ctx context.Context, id uuid.UUID) (*settlement.Outcome, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Outcome), args.Error(1)
}

type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func setupApp(t *testing.T, svc *MockSettlement, payments *MockPayments) *fiber.App {
	t.Helper()
	hash, err := auth.HashPassword("s3cret-pass!")
	require.NoError(t, err)
	authSvc := auth.NewService(auth.Config{
		AdminEmail:        "ops@example.com",
		AdminPasswordHash: hash,
		JWTSecret:         jwtSecret,
		TokenTTL:          time.Hour,
	}, nil)

	app := fiber.New()
	SetupRoutes(app, Handlers{
		Health: handlers.NewHealthHandler("test", map[string]handlers.Check{
			"database": func(context.Context) error { return nil },
		}),
		Payment: handlers.NewPaymentHandler(svc, handlers.Pages{
			Success: "https://hotel.example.com/thanks",
			Pending: "https://hotel.example.com/pending",
			Failure: "https://hotel.example.com/failed?lang=en",
		}, nil),
		Admin: handlers.NewAdminHandler(authSvc, svc, payments, nil),
		Auth:  middleware.NewAuthMiddleware(authSvc, nil),
	})
	return app
}

func adminToken(t *testing.T, permissions ...string) string {
	t.Helper()
	token, _, err := utils.GenerateToken(&models.AdminClaims{
		Email:       "ops@example.com",
		Role:        models.RoleAdmin,
		Permissions: permissions,
	}, jwtSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestHealth(t *testing.T) {
	app := setupApp(t, new(MockSettlement), new(MockPayments))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, resp)["status"])
}

func TestCreateIntent(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		path       string
		setupMock  func(*MockSettlement)
		wantStatus int
	}{
		{
			name: "checkout data",
			path: "/api/payments/" + id.String() + "/intent",
			setupMock: func(s *MockSettlement) {
				s.On("CreatePaymentIntent", mock.Anything, id).Return(&settlement.CheckoutData{
					PaymentID:    id.String(),
					ClientSecret: "pi_1_secret",
				}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "bad id",
			path:       "/api/payments/nope/intent",
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "finalized payment",
			path: "/api/payments/" + id.String() + "/intent",
			setupMock: func(s *MockSettlement) {
				s.On("CreatePaymentIntent", mock.Anything, id).Return(nil, settlement.ErrPaymentFinalized)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "processor down",
			path: "/api/payments/" + id.String() + "/intent",
			setupMock: func(s *MockSettlement) {
				s.On("CreatePaymentIntent", mock.Anything, id).
					Return(nil, errors.Join(settlement.ErrIntentFailed, errors.New("No such API key: sk_live_...")))
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "unknown payment",
			path: "/api/payments/" + id.String() + "/intent",
			setupMock: func(s *MockSettlement) {
				s.On("CreatePaymentIntent", mock.Anything, id).Return(nil, repositories.ErrPaymentNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSettlement)
			if tt.setupMock != nil {
				tt.setupMock(svc)
			}
			app := setupApp(t, svc, new(MockPayments))

			resp, err := app.Test(httptest.NewRequest(http.MethodPost, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := decode(t, resp)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "pi_1_secret", body["client_secret"])
			} else {
				assert.NotContains(t, body["error"], "sk_live")
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestProcess(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name         string
		body         url.Values
		setupMock    func(*MockSettlement)
		wantStatus   int
		wantLocation string
	}{
		{
			name: "card success",
			body: url.Values{"payment_method": {"card"}, "payment_intent_id": {"pi_1"}, "payment_intent_status": {"succeeded"}},
			setupMock: func(s *MockSettlement) {
				s.On("ProcessPayment", mock.Anything, id, settlement.PaymentFields{
					PaymentMethod: "card", PaymentIntentID: "pi_1", PaymentIntentStatus: "succeeded",
				}).Return(&settlement.Outcome{Redirect: settlement.RedirectSuccess}, nil)
			},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "https://hotel.example.com/thanks?payment_id=" + id.String(),
		},
		{
			name: "source awaiting confirmation",
			body: url.Values{"payment_method": {"ideal"}, "source_id": {"src_1"}, "redirect_url": {"https://bank.example.com/auth"}},
			setupMock: func(s *MockSettlement) {
				s.On("ProcessPayment", mock.Anything, id, mock.Anything).Return(&settlement.Outcome{
					Redirect:    settlement.RedirectExternal,
					RedirectURL: "https://bank.example.com/auth",
				}, nil)
			},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "https://bank.example.com/auth",
		},
		{
			name: "failure keeps page query",
			body: url.Values{"payment_method": {"ideal"}},
			setupMock: func(s *MockSettlement) {
				s.On("ProcessPayment", mock.Anything, id, mock.Anything).
					Return(&settlement.Outcome{Redirect: settlement.RedirectFailure}, nil)
			},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "https://hotel.example.com/failed?lang=en&payment_id=" + id.String(),
		},
		{
			name: "save failure sends the guest to the failure page",
			body: url.Values{"payment_method": {"card"}, "payment_intent_id": {"pi_1"}},
			setupMock: func(s *MockSettlement) {
				s.On("ProcessPayment", mock.Anything, id, mock.Anything).Return(nil, settlement.ErrSaveFailed)
			},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "https://hotel.example.com/failed?lang=en&payment_id=" + id.String(),
		},
		{
			name:       "malformed redirect url",
			body:       url.Values{"payment_method": {"ideal"}, "source_id": {"src_1"}, "redirect_url": {"not a url"}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSettlement)
			if tt.setupMock != nil {
				tt.setupMock(svc)
			}
			app := setupApp(t, svc, new(MockPayments))

			req := httptest.NewRequest(http.MethodPost, "/api/payments/"+id.String()+"/process", strings.NewReader(tt.body.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, resp.Header.Get("Location"))
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAdminLogin(t *testing.T) {
	app := setupApp(t, new(MockSettlement), new(MockPayments))

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "valid", body: `{"email":"ops@example.com","password":"s3cret-pass!"}`, wantStatus: http.StatusOK},
		{name: "wrong password", body: `{"email":"ops@example.com","password":"nope"}`, wantStatus: http.StatusUnauthorized},
		{name: "invalid email", body: `{"email":"ops","password":"nope"}`, wantStatus: http.StatusBadRequest},
		{name: "not json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusOK {
				assert.NotEmpty(t, decode(t, resp)["access_token"])
			}
		})
	}
}

func TestAdminPayments(t *testing.T) {
	id := uuid.New()
	payment := &models.Payment{ID: id, Currency: "EUR", Status: models.PaymentStatusCompleted, TransactionID: "ch_1"}

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		token      string
		setupMock  func(*MockSettlement, *MockPayments)
		wantStatus int
	}{
		{
			name:       "no token",
			method:     http.MethodGet,
			path:       "/api/admin/payments/" + id.String(),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bad token",
			method:     http.MethodGet,
			path:       "/api/admin/payments/" + id.String(),
			token:      "garbage",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "read payment",
			method: http.MethodGet,
			path:   "/api/admin/payments/" + id.String(),
			token:  adminToken(t, models.PermissionPaymentRead),
			setupMock: func(s *MockSettlement, p *MockPayments) {
				p.On("GetByID", mock.Anything, id).Return(payment, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "charge without permission",
			method:     http.MethodPost,
			path:       "/api/admin/payments/" + id.String() + "/charge",
			body:       `{"source_id":"src_1"}`,
			token:      adminToken(t, models.PermissionPaymentRead),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "charge without source",
			method:     http.MethodPost,
			path:       "/api/admin/payments/" + id.String() + "/charge",
			body:       `{}`,
			token:      adminToken(t, models.PermissionPaymentCharge),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "charge completed",
			method: http.MethodPost,
			path:   "/api/admin/payments/" + id.String() + "/charge",
			body:   `{"source_id":"src_1"}`,
			token:  adminToken(t, models.PermissionPaymentCharge),
			setupMock: func(s *MockSettlement, p *MockPayments) {
				s.On("ChargeSource", mock.Anything, id, "src_1").Return(&settlement.ChargeOutcome{
					Status: settlement.ChargeCompleted, ChargeID: "ch_1", Payment: payment,
				}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "charge refused on a completed payment",
			method: http.MethodPost,
			path:   "/api/admin/payments/" + id.String() + "/charge",
			body:   `{"source_id":"src_1"}`,
			token:  adminToken(t, models.PermissionPaymentCharge),
			setupMock: func(s *MockSettlement, p *MockPayments) {
				s.On("ChargeSource", mock.Anything, id, "src_1").Return(&settlement.ChargeOutcome{
					Status: settlement.ChargeAlreadyCompleted, Payment: payment,
				}, nil)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:   "charge parked for webhook",
			method: http.MethodPost,
			path:   "/api/admin/payments/" + id.String() + "/charge",
			body:   `{"source_id":"src_1"}`,
			token:  adminToken(t, models.PermissionPaymentCharge),
			setupMock: func(s *MockSettlement, p *MockPayments) {
				s.On("ChargeSource", mock.Anything, id, "src_1").Return(&settlement.ChargeOutcome{
					Status: settlement.ChargeAwaitingWebhook, Payment: payment,
				}, nil)
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name:   "reconcile",
			method: http.MethodPost,
			path:   "/api/admin/payments/" + id.String() + "/reconcile",
			token:  adminToken(t, models.PermissionPaymentCharge),
			setupMock: func(s *MockSettlement, p *MockPayments) {
				s.On("Reconcile", mock.Anything, id).Return(&settlement.Outcome{Payment: payment, Changed: true}, nil)
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSettlement)
			payments := new(MockPayments)
			if tt.setupMock != nil {
				tt.setupMock(svc, payments)
			}
			app := setupApp(t, svc, payments)

			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			req.Header.Set("Content-Type", "application/json")
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			svc.AssertExpectations(t)
			payments.AssertExpectations(t)
		})
	}
}
