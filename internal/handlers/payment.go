package handlers

import (
	"net/url"

	"bookingpay/internal/services/settlement"
	"bookingpay/internal/utils"
	"bookingpay/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Pages are where the guest lands after checkout.
type Pages struct {
	Success string
	Pending string
	Failure string
}

type PaymentHandler struct {
	settlement settlement.Service
	pages      Pages
	log        *zap.Logger
}

func NewPaymentHandler(svc settlement.Service, pages Pages, log *zap.Logger) *PaymentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentHandler{
		settlement: svc,
		pages:      pages,
		log:        log.With(zap.String("handler", "payment")),
	}
}

// CreateIntent returns what the checkout page needs to confirm a card payment.
func (h *PaymentHandler) CreateIntent(c *fiber.Ctx) error {
	id, ok := paymentID(c)
	if !ok {
		return utils.BadRequest(c, "Invalid payment ID")
	}

	data, err := h.settlement.CreatePaymentIntent(c.UserContext(), id)
	if err != nil {
		status := statusFor(err)
		if status >= fiber.StatusInternalServerError {
			h.log.Error("failed to create payment intent", zap.String("payment_id", id.String()), zap.Error(err))
		}
		return utils.Error(c, status, publicMessage(status))
	}

	return utils.Success(c, data)
}

// Process handles the checkout form post and redirects the guest.
func (h *PaymentHandler) Process(c *fiber.Ctx) error {
	id, ok := paymentID(c)
	if !ok {
		return utils.BadRequest(c, "Invalid payment ID")
	}

	var fields settlement.PaymentFields
	if err := c.BodyParser(&fields); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := validation.Struct(fields); err != nil {
		return utils.ValidationFailed(c, err)
	}

	out, err := h.settlement.ProcessPayment(c.UserContext(), id, fields)
	if err != nil {
		status := statusFor(err)
		if status == fiber.StatusNotFound {
			return utils.NotFound(c, publicMessage(status))
		}
		h.log.Error("failed to process payment", zap.String("payment_id", id.String()), zap.Error(err))
		return c.Redirect(h.page(settlement.RedirectFailure, id.String()), fiber.StatusSeeOther)
	}

	if out.Redirect == settlement.RedirectExternal {
		return c.Redirect(out.RedirectURL, fiber.StatusSeeOther)
	}
	return c.Redirect(h.page(out.Redirect, id.String()), fiber.StatusSeeOther)
}

func (h *PaymentHandler) page(r settlement.Redirect, paymentID string) string {
	target := h.pages.Failure
	switch r {
	case settlement.RedirectSuccess:
		target = h.pages.Success
	case settlement.RedirectPending:
		target = h.pages.Pending
	}

	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("payment_id", paymentID)
	u.RawQuery = q.Encode()
	return u.String()
}
