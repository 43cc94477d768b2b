package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mbyeon/gatekeeper"
	"github.com/mbyeon/gatekeeper/password"
)

// Store holds accounts keyed by login id. The zero value is not usable;
// use New.
type Store struct {
	mu      sync.RWMutex
	byLogin map[string]gatekeeper.Account
}

// New returns an empty store.
func New() *Store {
	return &Store{byLogin: make(map[string]gatekeeper.Account)}
}

// Put inserts or replaces an account. A missing ID is provisioned with a
// fresh UUID. The stored account is returned.
func (s *Store) Put(account gatekeeper.Account) (gatekeeper.Account, error) {
	if account.LoginID == "" {
		return gatekeeper.Account{}, fmt.Errorf("memstore: login id is required")
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byLogin[account.LoginID] = account
	return account, nil
}

// Register hashes the plaintext with the given hasher and stores the
// resulting account.
func (s *Store) Register(hasher password.Hasher, loginID, name, plaintext string) (gatekeeper.Account, error) {
	hash, err := hasher.Hash(plaintext)
	if err != nil {
		return gatekeeper.Account{}, fmt.Errorf("memstore: hash password: %w", err)
	}
	return s.Put(gatekeeper.Account{
		LoginID:      loginID,
		Name:         name,
		PasswordHash: hash,
	})
}

// FindByLoginID implements gatekeeper.AccountStore.
func (s *Store) FindByLoginID(ctx context.Context, loginID string) (gatekeeper.Account, error) {
	if err := ctx.Err(); err != nil {
		return gatekeeper.Account{}, err
	}

	s.mu.RLock()
	account, ok := s.byLogin[loginID]
	s.mu.RUnlock()
	if !ok {
		return gatekeeper.Account{}, gatekeeper.ErrAccountNotFound
	}
	return account, nil
}

// Delete removes the account for loginID. Unknown ids are a no-op.
func (s *Store) Delete(loginID string) {
	s.mu.Lock()
	delete(s.byLogin, loginID)
	s.mu.Unlock()
}

// Len reports the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byLogin)
}

// Seed loads the stock demo account (login "test", password "test!").
func Seed(s *Store, hasher password.Hasher) error {
	_, err := s.Register(hasher, "test", "tester", "test!")
	return err
}
