package processor

import "context"

// Client is the adapter over the payment processor's remote API.
//
// Every monetary argument is already in minor units and every currency is
// lower-case; the client does no currency math. Each call is a single
// synchronous request. Failures come back as *Error, except for
// CreateTransfer, which folds them into TransferResult.
type Client interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*IntentResult, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*IntentResult, error)
	RetrieveSource(ctx context.Context, id string) (*SourceResult, error)
	CreateTransfer(ctx context.Context, req TransferRequest) TransferResult
}
