// Package wallet provides the in-process native-value wallet the marketplace pays out to.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
)

var ErrInvalidAmount = errors.New("amount must be above zero")

// Transfer records one outbound payment.
type Transfer struct {
	Ref     string        `json:"ref"`
	Account string        `json:"account"`
	Amount  domain.Amount `json:"amount"`
	SentAt  time.Time     `json:"sent_at"`
}

// Memory implements port.ValueSender by crediting in-process balances.
type Memory struct {
	mu        sync.Mutex
	balances  map[domain.Account]domain.Amount
	transfers []Transfer
	failNext  error
	logger    *zap.Logger
}

func NewMemory(logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		balances: make(map[domain.Account]domain.Amount),
		logger:   logger,
	}
}

func (m *Memory) SendValue(ctx context.Context, account domain.Account, amount domain.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}

	t := Transfer{
		Ref:     uuid.NewString(),
		Account: account.String(),
		Amount:  amount,
		SentAt:  time.Now().UTC(),
	}
	m.balances[account] = m.balances[account].Add(amount)
	m.transfers = append(m.transfers, t)

	m.logger.Debug("value sent",
		zap.String("ref", t.Ref),
		zap.Stringer("account", account),
		zap.Stringer("amount", amount),
	)
	return nil
}

// Fund adds amount to account without recording a transfer.
func (m *Memory) Fund(ctx context.Context, account domain.Account, amount domain.Amount) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances[account] = m.balances[account].Add(amount)
	return nil
}

func (m *Memory) Balance(ctx context.Context, account domain.Account) (domain.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.balances[account], nil
}

// Transfers returns the payments sent so far, oldest first.
func (m *Memory) Transfers() []Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Transfer, len(m.transfers))
	copy(out, m.transfers)
	return out
}

// SimulateFailure makes the next SendValue return err without moving value.
func (m *Memory) SimulateFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}
