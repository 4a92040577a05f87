// Package storage implements the marketplace ledger store and idempotency claims
// on top of memory, pebble, MySQL and Redis.
package storage

import "errors"

var (
	ErrNegativeCredit = errors.New("credit amount must not be negative")
	ErrTxConflict     = errors.New("transaction aborted after repeated conflicts")
	ErrOptimisticLock = errors.New("optimistic lock conflict")
)

const maxTxAttempts = 5
