package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
	"github.com/rl1809/nft-marketplace/internal/port"
)

const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		collection VARCHAR(128) NOT NULL,
		token_id   VARCHAR(128) NOT NULL,
		seller     VARCHAR(128) NOT NULL,
		price      DECIMAL(65, 18) NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, token_id)
	)`,
	`CREATE TABLE IF NOT EXISTS proceeds (
		account    VARCHAR(128) NOT NULL,
		balance    DECIMAL(65, 18) NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (account)
	)`,
}

// MySQLAdapter keeps the ledgers in InnoDB tables. Rows read inside a transaction
// are locked with SELECT ... FOR UPDATE; transactions that lose a deadlock are
// retried from the start.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) Atomically(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = m.atomicallyOnce(ctx, fn)
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrTxConflict, err)
}

func (m *MySQLAdapter) atomicallyOnce(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{q: tx, lock: " FOR UPDATE"}); err != nil {
		return err
	}

	return tx.Commit()
}

func (m *MySQLAdapter) Listing(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	return mysqlListings{&mysqlTx{q: m.db}}.Get(ctx, key)
}

func (m *MySQLAdapter) Proceeds(ctx context.Context, account domain.Account) (domain.Amount, error) {
	return mysqlProceeds{&mysqlTx{q: m.db}}.Balance(ctx, account)
}

func isRetryable(err error) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockWaitTimeout
}

type mysqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type mysqlTx struct {
	q    mysqlQuerier
	lock string
}

func (t *mysqlTx) Listings() port.ListingLedger   { return mysqlListings{t} }
func (t *mysqlTx) Proceeds() port.ProceedsLedger { return mysqlProceeds{t} }

type mysqlListings struct{ tx *mysqlTx }

func (l mysqlListings) Get(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	var (
		seller string
		price  decimal.Decimal
	)
	err := l.tx.q.QueryRowContext(ctx, `
		SELECT seller, price FROM listings
		WHERE collection = ? AND token_id = ?`+l.tx.lock,
		key.Collection, key.TokenID,
	).Scan(&seller, &price)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query listing: %w", err)
	}

	return &domain.Listing{Key: key, Seller: domain.Account(seller), Price: price}, nil
}

func (l mysqlListings) Put(ctx context.Context, listing domain.Listing) error {
	_, err := l.tx.q.ExecContext(ctx, `
		INSERT INTO listings (collection, token_id, seller, price)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE seller = VALUES(seller), price = VALUES(price)`,
		listing.Key.Collection, listing.Key.TokenID, listing.Seller.String(), listing.Price,
	)
	if err != nil {
		return fmt.Errorf("upsert listing: %w", err)
	}
	return nil
}

func (l mysqlListings) Remove(ctx context.Context, key domain.ListingKey) error {
	_, err := l.tx.q.ExecContext(ctx, `
		DELETE FROM listings WHERE collection = ? AND token_id = ?`,
		key.Collection, key.TokenID,
	)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

type mysqlProceeds struct{ tx *mysqlTx }

func (p mysqlProceeds) Balance(ctx context.Context, account domain.Account) (domain.Amount, error) {
	var balance decimal.Decimal
	err := p.tx.q.QueryRowContext(ctx, `
		SELECT balance FROM proceeds WHERE account = ?`+p.tx.lock,
		account.String(),
	).Scan(&balance)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Amount{}, nil
	}
	if err != nil {
		return domain.Amount{}, fmt.Errorf("query proceeds: %w", err)
	}
	return balance, nil
}

func (p mysqlProceeds) Credit(ctx context.Context, account domain.Account, amount domain.Amount) error {
	if amount.IsNegative() {
		return ErrNegativeCredit
	}
	_, err := p.tx.q.ExecContext(ctx, `
		INSERT INTO proceeds (account, balance) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance)`,
		account.String(), amount,
	)
	if err != nil {
		return fmt.Errorf("credit proceeds: %w", err)
	}
	return nil
}

func (p mysqlProceeds) Drain(ctx context.Context, account domain.Account) (domain.Amount, error) {
	balance, err := p.Balance(ctx, account)
	if err != nil {
		return domain.Amount{}, err
	}
	if balance.IsZero() {
		return balance, nil
	}

	result, err := p.tx.q.ExecContext(ctx, `
		UPDATE proceeds SET balance = 0 WHERE account = ? AND balance = ?`,
		account.String(), balance,
	)
	if err != nil {
		return domain.Amount{}, fmt.Errorf("drain proceeds: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.Amount{}, ErrOptimisticLock
	}

	return balance, nil
}
