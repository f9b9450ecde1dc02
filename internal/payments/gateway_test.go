package payments

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhpnguyen/edupay-backend/pkg/config"
	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
)

func testGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		WebhookSecret:   "gateway-secret",
		BankBin:         "970436",
		BankAccount:     "0123456789",
		BankAccountName: "TRUONG TIEU HOC",
	}
}

func TestMockGatewayCreateIntent(t *testing.T) {
	gw := NewMockGateway(testGatewayConfig())
	order := &models.Order{
		ID:     uuid.New(),
		Code:   "ORD-2026-0001",
		Amount: decimal.NewFromInt(500000),
	}

	intent, err := gw.CreateIntent(context.Background(), order, order.Amount)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(intent.TransactionCode, "TXN-"))
	assert.Len(t, intent.TransactionCode, len("TXN-")+12)
	assert.Contains(t, intent.QRPayload, "970436")
	assert.Contains(t, intent.QRPayload, "500000")
	assert.Contains(t, intent.QRPayload, order.Code)
	assert.Contains(t, intent.QRPayload, intent.TransactionCode)
	assert.False(t, intent.ExpiresAt.IsZero())
}

func TestMockGatewayCreateIntentUniqueCodes(t *testing.T) {
	gw := NewMockGateway(testGatewayConfig())
	order := &models.Order{ID: uuid.New(), Code: "ORD-1", Amount: decimal.NewFromInt(1000)}

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		intent, err := gw.CreateIntent(context.Background(), order, order.Amount)
		require.NoError(t, err)
		if _, dup := seen[intent.TransactionCode]; dup {
			t.Fatalf("duplicate transaction code %s", intent.TransactionCode)
		}
		seen[intent.TransactionCode] = struct{}{}
	}
}

func TestVerifyCallback(t *testing.T) {
	cfg := testGatewayConfig()
	gw := NewMockGateway(cfg)
	body := []byte(`{"payment_code":"TXN-ABC123","status":"success"}`)
	valid := SignCallback(cfg.WebhookSecret, body)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		want      bool
	}{
		{"valid signature", body, valid, true},
		{"missing signature", body, "", false},
		{"whitespace signature", body, "   ", false},
		{"not hex", body, "zz" + valid[2:], false},
		{"truncated", body, valid[:16], false},
		{"wrong secret", body, SignCallback("other-secret", body), false},
		{"tampered body", []byte(`{"payment_code":"TXN-ABC123","status":"failed"}`), valid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gw.VerifyCallback(tt.payload, tt.signature))
		})
	}
}
