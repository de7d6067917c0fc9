package payments

import (
	"context"
	"errors"
)

// ErrChargeDeclined is returned when the gateway rejects a charge. The
// caller compensates by releasing the held seats.
var ErrChargeDeclined = errors.New("charge declined by payment gateway")

// ErrTransactionNotFound is returned when a refund references an unknown
// transaction.
var ErrTransactionNotFound = errors.New("transaction not found")

// ChargeRequest carries everything the gateway needs to settle a hold.
type ChargeRequest struct {
	ReservationID string
	UserID        string
	Amount        float64
	Currency      string
	Method        string
	PaymentToken  string
}

// ChargeResponse is the gateway's settlement result.
type ChargeResponse struct {
	TransactionID string
	Status        string
	FailureReason string
}

// Gateway abstracts the payment processor. The production deployment would
// plug a real provider in here, the shipped implementation is MockGateway.
type Gateway interface {
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error)
	Refund(ctx context.Context, transactionID string, amount float64) error
}
