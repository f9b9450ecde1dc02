package payments

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anhpnguyen/edupay-backend/pkg/config"
	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
)

// Intent is the gateway-side handle for a pending payment. TransactionCode is
// the code the gateway echoes back in callbacks; QRPayload is rendered as-is
// by the client.
type Intent struct {
	TransactionCode string
	QRPayload       string
	ExpiresAt       time.Time
}

// Gateway abstracts the payment processor. VerifyCallback is the only trust
// boundary between the public webhook endpoint and the ledger.
type Gateway interface {
	CreateIntent(ctx context.Context, order *models.Order, amount decimal.Decimal) (*Intent, error)
	VerifyCallback(payload []byte, signature string) bool
}

const intentTTL = 15 * time.Minute

type mockGateway struct {
	secret          []byte
	bankBin         string
	bankAccount     string
	bankAccountName string
}

// NewMockGateway builds the simulated gateway used outside production. It
// mints VIETQR-shaped payloads and verifies callbacks with the same shared
// secret scheme the real processor uses.
func NewMockGateway(cfg config.GatewayConfig) Gateway {
	return &mockGateway{
		secret:          []byte(cfg.WebhookSecret),
		bankBin:         cfg.BankBin,
		bankAccount:     cfg.BankAccount,
		bankAccountName: cfg.BankAccountName,
	}
}

func (g *mockGateway) CreateIntent(_ context.Context, order *models.Order, amount decimal.Decimal) (*Intent, error) {
	if order == nil {
		return nil, fmt.Errorf("order required")
	}

	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate transaction code: %w", err)
	}
	code := "TXN-" + strings.ToUpper(hex.EncodeToString(buf))

	payload := fmt.Sprintf(
		"VIETQR|%s|%s|%s|%s|%s",
		g.bankBin,
		g.bankAccount,
		amount.StringFixed(0),
		code,
		order.Code,
	)

	return &Intent{
		TransactionCode: code,
		QRPayload:       payload,
		ExpiresAt:       time.Now().Add(intentTTL),
	}, nil
}

// VerifyCallback checks a hex-encoded HMAC-SHA256 over the raw body. The
// comparison is constant-time; absent or malformed headers never match.
func (g *mockGateway) VerifyCallback(payload []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil || len(provided) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, g.secret)
	mac.Write(payload)
	return hmac.Equal(provided, mac.Sum(nil))
}

// SignCallback computes the signature the gateway would attach to a callback
// body. Exposed for tooling and tests that simulate deliveries.
func SignCallback(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
