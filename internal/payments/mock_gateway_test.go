package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chargeRequest(token string) *ChargeRequest {
	return &ChargeRequest{
		ReservationID: uuid.New().String(),
		UserID:        uuid.New().String(),
		Amount:        120,
		Currency:      "USD",
		Method:        "card",
		PaymentToken:  token,
	}
}

func TestChargeSucceeds(t *testing.T) {
	gateway := NewMockGateway(nil)

	resp, err := gateway.Charge(context.Background(), chargeRequest("tok_visa"))
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	assert.NotEmpty(t, resp.TransactionID)
}

func TestChargeFailTokenAlwaysDeclines(t *testing.T) {
	gateway := NewMockGateway(nil)

	resp, err := gateway.Charge(context.Background(), chargeRequest("fail_card_declined"))
	assert.ErrorIs(t, err, ErrChargeDeclined)
	require.NotNil(t, resp)
	assert.Equal(t, "failed", resp.Status)
	assert.NotEmpty(t, resp.FailureReason)
}

func TestChargeZeroSuccessRateDeclines(t *testing.T) {
	gateway := NewMockGateway(&MockGatewayConfig{SuccessRate: 1.0})
	gateway.SetSuccessRate(0)

	_, err := gateway.Charge(context.Background(), chargeRequest("tok_visa"))
	assert.ErrorIs(t, err, ErrChargeDeclined)
}

func TestRefundKnownTransaction(t *testing.T) {
	gateway := NewMockGateway(nil)

	resp, err := gateway.Charge(context.Background(), chargeRequest("tok_visa"))
	require.NoError(t, err)

	assert.NoError(t, gateway.Refund(context.Background(), resp.TransactionID, 120))
}

func TestRefundUnknownTransaction(t *testing.T) {
	gateway := NewMockGateway(nil)

	err := gateway.Refund(context.Background(), uuid.New().String(), 50)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}
