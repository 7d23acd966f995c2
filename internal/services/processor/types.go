package processor

// Payment intent statuses
const (
	IntentSucceeded             = "succeeded"
	IntentProcessing            = "processing"
	IntentRequiresAction        = "requires_action"
	IntentRequiresPaymentMethod = "requires_payment_method"
	IntentCanceled              = "canceled"
)

// Source statuses
const (
	SourcePending    = "pending"
	SourceChargeable = "chargeable"
	SourceConsumed   = "consumed"
	SourceCanceled   = "canceled"
	SourceFailed     = "failed"
)

// Charge statuses
const (
	ChargeSucceeded = "succeeded"
	ChargePending   = "pending"
	ChargeFailed    = "failed"
)

// SourceTypeCard marks transfers funded from card balance.
const SourceTypeCard = "card"

type ChargeRequest struct {
	AmountMinor    int64
	Currency       string
	SourceID       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

type ChargeResult struct {
	ID             string
	Status         string
	AmountMinor    int64
	Currency       string
	FailureMessage string
}

type IntentRequest struct {
	AmountMinor        int64
	Currency           string
	Description        string
	PaymentMethodTypes []string
	TransferGroup      string
	Metadata           map[string]string
	IdempotencyKey     string
}

type IntentResult struct {
	ID           string
	Status       string
	ClientSecret string
	AmountMinor  int64
	Currency     string
	Description  string
}

type SourceResult struct {
	ID          string
	Status      string
	Type        string
	AmountMinor int64
	Currency    string
	RedirectURL string
}

// TransferRequest is serialized into the payment log when a transfer fails,
// so its JSON names follow the processor's field names.
type TransferRequest struct {
	AmountMinor    int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Destination    string            `json:"destination"`
	Description    string            `json:"description,omitempty"`
	SourceType     string            `json:"source_type,omitempty"`
	TransferGroup  string            `json:"transfer_group,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"-"`
}

// TransferResult is either a created transfer or an error_transfer tag.
type TransferResult struct {
	ID    string
	Error string
}

// Failed reports whether the result carries the error tag.
func (r TransferResult) Failed() bool {
	return r.Error != "" || r.ID == ""
}
