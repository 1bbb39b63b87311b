package payment

import "context"

const (
	MsgNotConfigured = "card payments are not configured"
	MsgTimedOut      = "payment timed out, please try again"
	MsgGeneric       = "payment could not be processed"
	MsgUnsupported   = "card payments are not available in this currency"
)

// Gateway charges a tokenised card. Charge never returns an error: failures are
// reported through ChargeResult with a message safe to show to the member.
type Gateway interface {
	Configured() bool
	SupportsCurrency(code string) bool
	Charge(ctx context.Context, req ChargeRequest) ChargeResult
	Void(ctx context.Context, transactionID string) error
}

type ChargeRequest struct {
	Token          string
	AmountCents    int64  // minor units of Currency
	Currency       string // ISO 4217 code
	IdempotencyKey string
	ReferenceID    string
	Note           string
	CustomerEmail  string
	CustomerName   string
}

type ChargeResult struct {
	Success       bool
	TransactionID string
	ReceiptURL    string
	ErrorMessage  string
}

func failure(msg string) ChargeResult {
	return ChargeResult{ErrorMessage: msg}
}
