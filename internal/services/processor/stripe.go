package processor

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
)

// APIVersion is the processor API version every request is pinned to.
const APIVersion = stripe.APIVersion

// DefaultTimeout bounds one HTTP attempt against the processor.
const DefaultTimeout = 80 * time.Second

// Config configures the Stripe adapter.
type Config struct {
	SecretKey string
	// APIURL overrides the processor endpoint, for tests and proxies.
	APIURL            string
	MaxNetworkRetries int64
	Timeout           time.Duration

	AppName    string
	AppVersion string
	AppURL     string
	PartnerID  string
}

type keyContextKey struct{}

// WithSecretKey makes calls made with ctx authenticate as a different
// processor account than the configured one.
func WithSecretKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyContextKey{}, key)
}

type stripeClient struct {
	cfg      Config
	backends *stripe.Backends
	log      *zap.Logger
}

// NewStripeClient builds the processor adapter. App info and backends are set
// up here once; the secret key is bound on every call.
func NewStripeClient(cfg Config, log *zap.Logger) Client {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.AppName != "" {
		stripe.SetAppInfo(&stripe.AppInfo{
			Name:      cfg.AppName,
			Version:   cfg.AppVersion,
			URL:       cfg.AppURL,
			PartnerID: cfg.PartnerID,
		})
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		LeveledLogger:     log.Sugar(),
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(strings.TrimRight(cfg.APIURL, "/"))
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}

	log.Info("processor client ready", zap.String("api_version", APIVersion))

	return &stripeClient{
		cfg:      cfg,
		backends: backends,
		log:      log.With(zap.String("component", "stripe")),
	}
}

func (c *stripeClient) api(ctx context.Context) (*client.API, error) {
	key := c.cfg.SecretKey
	if k, ok := ctx.Value(keyContextKey{}).(string); ok && k != "" {
		key = k
	}
	if key == "" {
		return nil, ErrMissingKey
	}
	return client.New(key, c.backends), nil
}

func (c *stripeClient) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	const op = "charge.create"
	if req.AmountMinor <= 0 || req.Currency == "" || req.SourceID == "" {
		return nil, &Error{Op: op, Message: "amount, currency and source are required", Err: ErrInvalidRequest}
	}
	sc, err := c.api(ctx)
	if err != nil {
		return nil, wrapError(op, err)
	}

	params := &stripe.ChargeParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	if err := params.SetSource(req.SourceID); err != nil {
		return nil, wrapError(op, err)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	applyParams(ctx, &params.Params, req.Metadata, req.IdempotencyKey)

	ch, err := sc.Charges.New(params)
	if err != nil {
		return nil, wrapError(op, err)
	}

	return &ChargeResult{
		ID:             ch.ID,
		Status:         string(ch.Status),
		AmountMinor:    ch.Amount,
		Currency:       string(ch.Currency),
		FailureMessage: ch.FailureMessage,
	}, nil
}

func (c *stripeClient) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	const op = "payment_intent.create"
	if req.AmountMinor <= 0 || req.Currency == "" {
		return nil, &Error{Op: op, Message: "amount and currency are required", Err: ErrInvalidRequest}
	}
	sc, err := c.api(ctx)
	if err != nil {
		return nil, wrapError(op, err)
	}

	methods := req.PaymentMethodTypes
	if len(methods) == 0 {
		methods = []string{"card"}
	}
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountMinor),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethodTypes: stripe.StringSlice(methods),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.TransferGroup != "" {
		params.TransferGroup = stripe.String(req.TransferGroup)
	}
	applyParams(ctx, &params.Params, req.Metadata, req.IdempotencyKey)

	pi, err := sc.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return intentResult(pi), nil
}

func (c *stripeClient) RetrievePaymentIntent(ctx context.Context, id string) (*IntentResult, error) {
	const op = "payment_intent.retrieve"
	if id == "" {
		return nil, &Error{Op: op, Message: "id is required", Err: ErrInvalidRequest}
	}
	sc, err := c.api(ctx)
	if err != nil {
		return nil, wrapError(op, err)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := sc.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return intentResult(pi), nil
}

func (c *stripeClient) RetrieveSource(ctx context.Context, id string) (*SourceResult, error) {
	const op = "source.retrieve"
	if id == "" {
		return nil, &Error{Op: op, Message: "id is required", Err: ErrInvalidRequest}
	}
	sc, err := c.api(ctx)
	if err != nil {
		return nil, wrapError(op, err)
	}

	params := &stripe.SourceObjectParams{}
	params.Context = ctx
	src, err := sc.Sources.Get(id, params)
	if err != nil {
		return nil, wrapError(op, err)
	}

	res := &SourceResult{
		ID:          src.ID,
		Status:      string(src.Status),
		Type:        string(src.Type),
		AmountMinor: src.Amount,
		Currency:    string(src.Currency),
	}
	if src.Redirect != nil {
		res.RedirectURL = src.Redirect.URL
	}
	return res, nil
}

// CreateTransfer never returns an error: a failed call comes back with the
// error tag set so the caller can log it and move on.
func (c *stripeClient) CreateTransfer(ctx context.Context, req TransferRequest) TransferResult {
	const op = "transfer.create"
	if req.AmountMinor <= 0 || req.Currency == "" || req.Destination == "" {
		return TransferResult{Error: (&Error{Op: op, Message: "amount, currency and destination are required"}).Error()}
	}
	sc, err := c.api(ctx)
	if err != nil {
		return TransferResult{Error: wrapError(op, err).Error()}
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Destination: stripe.String(req.Destination),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.SourceType != "" {
		params.SourceType = stripe.String(req.SourceType)
	}
	if req.TransferGroup != "" {
		params.TransferGroup = stripe.String(req.TransferGroup)
	}
	applyParams(ctx, &params.Params, req.Metadata, req.IdempotencyKey)

	tr, err := sc.Transfers.New(params)
	if err != nil {
		perr := wrapError(op, err)
		c.log.Warn("transfer failed", zap.String("destination", req.Destination), zap.Error(perr))
		return TransferResult{Error: perr.Error()}
	}
	return TransferResult{ID: tr.ID}
}

func applyParams(ctx context.Context, p *stripe.Params, metadata map[string]string, idempotencyKey string) {
	p.Context = ctx
	for k, v := range metadata {
		p.AddMetadata(k, v)
	}
	if idempotencyKey != "" {
		p.SetIdempotencyKey(idempotencyKey)
	}
}

func intentResult(pi *stripe.PaymentIntent) *IntentResult {
	return &IntentResult{
		ID:           pi.ID,
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Description:  pi.Description,
	}
}
