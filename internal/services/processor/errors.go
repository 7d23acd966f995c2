package processor

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v72"
)

var (
	ErrInvalidRequest = errors.New("invalid processor request")
	ErrMissingKey     = errors.New("processor secret key is not set")
)

// Error is returned when a processor call fails or times out.
type Error struct {
	Op         string
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("processor %s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("processor %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsProcessorError reports whether err came from the processor adapter.
func IsProcessorError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	pe := &Error{Op: op, Message: err.Error(), Err: err}
	var se *stripe.Error
	if errors.As(err, &se) {
		pe.Message = se.Msg
		pe.Code = string(se.Code)
		pe.HTTPStatus = se.HTTPStatusCode
		if pe.Message == "" {
			pe.Message = string(se.Type)
		}
	}
	return pe
}
