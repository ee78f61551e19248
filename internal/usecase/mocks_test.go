// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"cantera-billing/internal/domain"
	"cantera-billing/internal/domain/model"
	"cantera-billing/internal/domain/ports/repository"
)

// memTenantRepo is a small in-memory implementation used by unit tests.
type memTenantRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Tenant // by id
	findErr error                    // simulate lookup failures
}

func newMemTenantRepo() *memTenantRepo {
	return &memTenantRepo{store: make(map[string]*model.Tenant)}
}

func (m *memTenantRepo) add(t *model.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.store[t.ID] = &cp
}

func (m *memTenantRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTenantRepo) FindByOwnerEmail(ctx context.Context, tx repository.Tx, email string) (*model.Tenant, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.store {
		if strings.EqualFold(t.OwnerEmail, email) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memSubscriptionRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Subscription // by id
	saveErr error
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *memSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.store[s.ID]; !exists {
		// Mirror the store's unique index on transaction_id.
		for _, other := range m.store {
			if other.TransactionID == s.TransactionID {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.TransactionID == transactionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) FindByProviderSubscriptionID(ctx context.Context, tx repository.Tx, providerSubID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.ProviderSubscriptionID == providerSubID && providerSubID != "" {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) FindActiveByTenant(ctx context.Context, tx repository.Tx, tenantID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.TenantID == tenantID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) FindExpired(ctx context.Context, tx repository.Tx, limit int) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			cp := *s
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memSubscriptionRepo) CancelActiveByTenant(ctx context.Context, tx repository.Tx, tenantID, exceptID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := time.Now()
	for _, s := range m.store {
		if s.TenantID == tenantID && s.Status == model.SubscriptionStatusActive && s.ID != exceptID {
			s.Status = model.SubscriptionStatusCancelled
			s.CancelledAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.SubscriptionStatus]int)
	for _, s := range m.store {
		out[s.Status]++
	}
	return out, nil
}

func (m *memSubscriptionRepo) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

type memHistoryRepo struct {
	mu        sync.RWMutex
	entries   []*model.SubscriptionHistoryEntry
	appendErr error
}

func newMemHistoryRepo() *memHistoryRepo { return &memHistoryRepo{} }

func (m *memHistoryRepo) Append(ctx context.Context, tx repository.Tx, e *model.SubscriptionHistoryEntry) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memHistoryRepo) ListByTenant(ctx context.Context, tx repository.Tx, tenantID string, limit int) ([]*model.SubscriptionHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.SubscriptionHistoryEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].TenantID == tenantID {
			cp := *m.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memUsageRepo serves fixed counts per action.
type memUsageRepo struct {
	quarries, users, customers int
	productions, sales         int
	countErr                   error
}

func (m *memUsageRepo) CountQuarries(ctx context.Context, tx repository.Tx, tenantID string) (int, error) {
	return m.quarries, m.countErr
}
func (m *memUsageRepo) CountUsers(ctx context.Context, tx repository.Tx, tenantID string) (int, error) {
	return m.users, m.countErr
}
func (m *memUsageRepo) CountCustomers(ctx context.Context, tx repository.Tx, tenantID string) (int, error) {
	return m.customers, m.countErr
}
func (m *memUsageRepo) CountProductions(ctx context.Context, tx repository.Tx, tenantID string, from, to time.Time) (int, error) {
	return m.productions, m.countErr
}
func (m *memUsageRepo) CountSales(ctx context.Context, tx repository.Tx, tenantID string, from, to time.Time) (int, error) {
	return m.sales, m.countErr
}

// memTxManager runs the callback without a real transaction.
type memTxManager struct{}

func (memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}
