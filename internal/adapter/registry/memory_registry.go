// Package registry holds the in-process asset registry used for local runs and tests.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
)

var (
	ErrUnknownAsset  = errors.New("asset does not exist")
	ErrAlreadyMinted = errors.New("asset already minted")
	ErrNotCustodian  = errors.New("from is not the asset owner")
	ErrNotAuthorized = errors.New("caller is not owner nor approved")
	ErrZeroAccount   = errors.New("zero account")
)

// Memory is an ERC-721 style ownership table: one owner per token, one
// per-token approved account, and per-owner operators for all tokens.
type Memory struct {
	mu        sync.RWMutex
	owners    map[domain.ListingKey]domain.Account
	approved  map[domain.ListingKey]domain.Account
	operators map[domain.Account]map[domain.Account]bool
}

func NewMemory() *Memory {
	return &Memory{
		owners:    make(map[domain.ListingKey]domain.Account),
		approved:  make(map[domain.ListingKey]domain.Account),
		operators: make(map[domain.Account]map[domain.Account]bool),
	}
}

func (m *Memory) Mint(ctx context.Context, key domain.ListingKey, owner domain.Account) error {
	if owner.IsZero() {
		return ErrZeroAccount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.owners[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyMinted, key)
	}
	m.owners[key] = owner
	return nil
}

// Approve sets the single account allowed to move key. Passing the zero account
// clears the approval.
func (m *Memory) Approve(ctx context.Context, caller domain.Account, key domain.ListingKey, approved domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, ok := m.owners[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	if caller != owner && !m.operators[owner][caller] {
		return fmt.Errorf("%w: %s cannot approve %s", ErrNotAuthorized, caller, key)
	}

	if approved.IsZero() {
		delete(m.approved, key)
		return nil
	}
	m.approved[key] = approved
	return nil
}

func (m *Memory) SetApprovalForAll(ctx context.Context, owner, operator domain.Account, approved bool) error {
	if owner.IsZero() || operator.IsZero() {
		return ErrZeroAccount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !approved {
		delete(m.operators[owner], operator)
		return nil
	}
	if m.operators[owner] == nil {
		m.operators[owner] = make(map[domain.Account]bool)
	}
	m.operators[owner][operator] = true
	return nil
}

func (m *Memory) OwnerOf(ctx context.Context, key domain.ListingKey) (domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owner, ok := m.owners[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	return owner, nil
}

func (m *Memory) GetApproved(ctx context.Context, key domain.ListingKey) (domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.owners[key]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	return m.approved[key], nil
}

func (m *Memory) IsApprovedForOperator(ctx context.Context, key domain.ListingKey, operator domain.Account) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owner, ok := m.owners[key]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	return m.approved[key] == operator || m.operators[owner][operator], nil
}

func (m *Memory) TransferFrom(ctx context.Context, operator, from, to domain.Account, key domain.ListingKey) error {
	if to.IsZero() {
		return ErrZeroAccount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	owner, ok := m.owners[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	if owner != from {
		return fmt.Errorf("%w: %s does not hold %s", ErrNotCustodian, from, key)
	}
	if operator != from && m.approved[key] != operator && !m.operators[from][operator] {
		return fmt.Errorf("%w: %s on %s", ErrNotAuthorized, operator, key)
	}

	delete(m.approved, key)
	m.owners[key] = to
	return nil
}
