package platform

import (
	"errors"
	"fmt"
	"sync"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

var ErrNoClient = errors.New("no client configured")

// Account is one business identity on a social platform with its client.
type Account struct {
	ID     string
	Name   string
	Client SocialClient
}

// Registry holds the social clients per platform, keyed by business account id.
type Registry struct {
	mu       sync.RWMutex
	accounts map[model.Platform][]Account
}

func NewRegistry() *Registry {
	return &Registry{accounts: make(map[model.Platform][]Account)}
}

func (r *Registry) Register(p model.Platform, account Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[p] = append(r.accounts[p], account)
}

// Accounts returns the registered accounts for a platform in registration order.
func (r *Registry) Accounts(p model.Platform) []Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Account, len(r.accounts[p]))
	copy(out, r.accounts[p])
	return out
}

// Sender picks the client for accountID. With an unknown or empty id it falls
// back to the only account when the platform has exactly one.
func (r *Registry) Sender(p model.Platform, accountID string) (MessageSender, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := r.accounts[p]
	for _, a := range accounts {
		if a.ID == accountID && accountID != "" {
			return a.Client, nil
		}
	}
	if len(accounts) == 1 {
		return accounts[0].Client, nil
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%s: %w", p, ErrNoClient)
	}
	return nil, fmt.Errorf("%s account %q: %w", p, accountID, ErrNoClient)
}
