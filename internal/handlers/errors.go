package handlers

import (
	"errors"

	"bookingpay/internal/repositories"
	"bookingpay/internal/services/settlement"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrPaymentNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, settlement.ErrPaymentFinalized):
		return fiber.StatusConflict
	case errors.Is(err, settlement.ErrBelowMinimum):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, settlement.ErrIntentFailed):
		return fiber.StatusBadGateway
	case errors.Is(err, settlement.ErrLockFailed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// publicMessage never leaks processor or database error text.
func publicMessage(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "Payment not found"
	case fiber.StatusConflict:
		return "Payment is already completed or failed"
	case fiber.StatusUnprocessableEntity:
		return "Amount is below the minimum chargeable amount"
	case fiber.StatusBadGateway:
		return "Payment processor unavailable"
	case fiber.StatusServiceUnavailable:
		return "Payment is busy, try again"
	default:
		return "Internal server error"
	}
}

func paymentID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}
