package billing

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GatewayResult is the outcome of a payment attempt at the gateway.
type GatewayResult struct {
	Success       bool
	TransactionID string
	CardBrand     string
	LastFour      string
	Error         string
}

// RefundResult is the outcome of a refund attempt at the gateway.
type RefundResult struct {
	Success  bool
	RefundID string
	Error    string
}

// Gateway is the external payment processor. The ledger is agnostic to the
// concrete implementation; it only reacts to success or failure.
type Gateway interface {

	// ProcessPayment charges the given card.
	ProcessPayment(ctx context.Context, card CardDetails, amount decimal.Decimal, currency string) (*GatewayResult, error)

	// ProcessTokenPayment charges a previously tokenized card.
	ProcessTokenPayment(ctx context.Context, token string, amount decimal.Decimal, currency string) (*GatewayResult, error)

	// ProcessRefund refunds part or all of a settled transaction.
	ProcessRefund(ctx context.Context, transactionID string, amount decimal.Decimal) (*RefundResult, error)

	// Tokenize exchanges card details for a reusable token.
	Tokenize(ctx context.Context, card CardDetails) (string, error)
}

type mockGateway struct{}

// NewMockGateway creates a Gateway that approves every charge. Real gateway
// integration is out of scope; this keeps the ledger's contract exercised
// end to end.
func NewMockGateway() Gateway {
	return &mockGateway{}
}

// newTransactionID generates a gateway transaction reference.
func newTransactionID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "TXN-" + raw[:12]
}

func (g mockGateway) ProcessPayment(_ context.Context, card CardDetails, _ decimal.Decimal, _ string) (*GatewayResult, error) {
	return &GatewayResult{
		Success:       true,
		TransactionID: newTransactionID(),
		CardBrand:     card.Brand(),
		LastFour:      card.LastFour(),
	}, nil
}

func (g mockGateway) ProcessTokenPayment(_ context.Context, _ string, _ decimal.Decimal, _ string) (*GatewayResult, error) {
	return &GatewayResult{
		Success:       true,
		TransactionID: newTransactionID(),
	}, nil
}

func (g mockGateway) ProcessRefund(_ context.Context, _ string, _ decimal.Decimal) (*RefundResult, error) {
	return &RefundResult{
		Success:  true,
		RefundID: newTransactionID(),
	}, nil
}

func (g mockGateway) Tokenize(_ context.Context, _ CardDetails) (string, error) {
	tokenUUID, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return "tok_" + strings.ReplaceAll(tokenUUID.String(), "-", ""), nil
}
