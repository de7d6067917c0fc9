package payments

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockGateway simulates a payment processor. Tokens prefixed with "fail"
// always decline, everything else succeeds with the configured probability.
type MockGateway struct {
	config       *MockGatewayConfig
	transactions sync.Map
	mu           sync.RWMutex
}

type transactionRecord struct {
	TransactionID string
	Status        string
	Amount        float64
	Currency      string
	CreatedAt     time.Time
}

// MockGatewayConfig holds configuration for the mock gateway
type MockGatewayConfig struct {
	// SuccessRate is the probability of a successful charge (0.0 to 1.0)
	SuccessRate float64

	// Delay is the simulated processing latency
	Delay time.Duration

	// FailureReasons is sampled on declined charges
	FailureReasons []string
}

// DefaultMockGatewayConfig returns default configuration
func DefaultMockGatewayConfig() *MockGatewayConfig {
	return &MockGatewayConfig{
		SuccessRate: 1.0,
		Delay:       0,
		FailureReasons: []string{
			"insufficient_funds",
			"card_declined",
			"expired_card",
			"processing_error",
		},
	}
}

// NewMockGateway creates a new mock gateway
func NewMockGateway(config *MockGatewayConfig) *MockGateway {
	if config == nil {
		config = DefaultMockGatewayConfig()
	}
	if config.SuccessRate < 0 {
		config.SuccessRate = 0
	}
	if config.SuccessRate > 1 {
		config.SuccessRate = 1
	}

	return &MockGateway{config: config}
}

func (g *MockGateway) sleep(ctx context.Context) error {
	if g.config.Delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.config.Delay):
		return nil
	}
}

// Charge processes a mock payment charge
func (g *MockGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("charge amount must be positive")
	}

	if err := g.sleep(ctx); err != nil {
		return nil, err
	}

	declined := strings.HasPrefix(req.PaymentToken, "fail")
	if !declined {
		g.mu.RLock()
		rate := g.config.SuccessRate
		g.mu.RUnlock()
		declined = rand.Float64() >= rate
	}

	transactionID := fmt.Sprintf("mock_txn_%s", uuid.New().String()[:8])
	resp := &ChargeResponse{TransactionID: transactionID}

	if declined {
		resp.Status = "failed"
		if len(g.config.FailureReasons) > 0 {
			resp.FailureReason = g.config.FailureReasons[rand.Intn(len(g.config.FailureReasons))]
		} else {
			resp.FailureReason = "payment_failed"
		}
		return resp, ErrChargeDeclined
	}

	resp.Status = "completed"
	g.transactions.Store(transactionID, &transactionRecord{
		TransactionID: transactionID,
		Status:        "completed",
		Amount:        req.Amount,
		Currency:      req.Currency,
		CreatedAt:     time.Now(),
	})

	return resp, nil
}

// Refund processes a mock refund
func (g *MockGateway) Refund(ctx context.Context, transactionID string, amount float64) error {
	if transactionID == "" {
		return fmt.Errorf("transaction ID is required")
	}

	if err := g.sleep(ctx); err != nil {
		return err
	}

	txn, ok := g.transactions.Load(transactionID)
	if !ok {
		return ErrTransactionNotFound
	}

	record := txn.(*transactionRecord)
	record.Status = "refunded"
	g.transactions.Store(transactionID, record)

	return nil
}

// SetSuccessRate updates the success rate
func (g *MockGateway) SetSuccessRate(rate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	g.config.SuccessRate = rate
}
