package handlers

import (
	"context"
	"errors"

	"bookingpay/internal/models"
	"bookingpay/internal/services/auth"
	"bookingpay/internal/services/settlement"
	"bookingpay/internal/utils"
	"bookingpay/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentReader loads a payment for display.
type PaymentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

type AdminHandler struct {
	auth       auth.Service
	settlement settlement.Service
	payments   PaymentReader
	log        *zap.Logger
}

func NewAdminHandler(authSvc auth.Service, svc settlement.Service, payments PaymentReader, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{
		auth:       authSvc,
		settlement: svc,
		payments:   payments,
		log:        log.With(zap.String("handler", "admin")),
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := validation.Struct(req); err != nil {
		return utils.ValidationFailed(c, err)
	}

	token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return utils.Unauthorized(c, "Invalid credentials")
	case errors.Is(err, auth.ErrLoginDisabled):
		return utils.Error(c, fiber.StatusServiceUnavailable, "Admin login is disabled")
	case err != nil:
		return utils.InternalError(c, "Login failed")
	}

	return utils.Success(c, token)
}

func (h *AdminHandler) GetPayment(c *fiber.Ctx) error {
	id, ok := paymentID(c)
	if !ok {
		return utils.BadRequest(c, "Invalid payment ID")
	}

	payment, err := h.payments.GetByID(c.UserContext(), id)
	if err != nil {
		status := statusFor(err)
		return utils.Error(c, status, publicMessage(status))
	}
	return utils.Success(c, payment)
}

type chargeRequest struct {
	SourceID string `json:"source_id" validate:"required"`
}

type chargeResponse struct {
	Status    settlement.ChargeStatus      `json:"status"`
	ChargeID  string                       `json:"charge_id,omitempty"`
	Payment   *models.Payment              `json:"payment"`
	Transfers []settlement.TransferOutcome `json:"transfers,omitempty"`
}

// Charge runs charge-and-split on a chargeable source.
func (h *AdminHandler) Charge(c *fiber.Ctx) error {
	id, ok := paymentID(c)
	if !ok {
		return utils.BadRequest(c, "Invalid payment ID")
	}

	var req chargeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := validation.Struct(req); err != nil {
		return utils.ValidationFailed(c, err)
	}

	out, err := h.settlement.ChargeSource(c.UserContext(), id, req.SourceID)
	if err != nil {
		status := statusFor(err)
		if status >= fiber.StatusInternalServerError {
			h.log.Error("charge failed", zap.String("payment_id", id.String()), zap.Error(err))
		}
		return utils.Error(c, status, publicMessage(status))
	}

	if claims, err := utils.GetAdminClaims(c); err == nil {
		h.log.Info("charge requested",
			zap.String("payment_id", id.String()),
			zap.String("admin", claims.Email),
			zap.String("result", string(out.Status)),
		)
	}

	return utils.Respond(c, chargeHTTPStatus(out.Status), chargeResponse{
		Status:    out.Status,
		ChargeID:  out.ChargeID,
		Payment:   out.Payment,
		Transfers: out.Transfers,
	})
}

func chargeHTTPStatus(s settlement.ChargeStatus) int {
	switch s {
	case settlement.ChargeCompleted, settlement.ChargeOnHold:
		return fiber.StatusOK
	case settlement.ChargeAwaitingWebhook:
		return fiber.StatusAccepted
	case settlement.ChargeAlreadyCompleted:
		return fiber.StatusConflict
	default:
		return fiber.StatusUnprocessableEntity
	}
}

// Reconcile runs one reconciliation pass for a payment.
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	id, ok := paymentID(c)
	if !ok {
		return utils.BadRequest(c, "Invalid payment ID")
	}

	out, err := h.settlement.Reconcile(c.UserContext(), id)
	if err != nil {
		status := statusFor(err)
		return utils.Error(c, status, publicMessage(status))
	}

	return utils.Success(c, fiber.Map{
		"changed": out.Changed,
		"status":  out.Payment.Status,
		"payment": out.Payment,
	})
}
