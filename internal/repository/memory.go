package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// MemoryStore is a map-backed RecordStore for tests and local tooling.
// It mirrors the SQL store's ordering contracts: ascending customer id
// for listings, newest first for per-customer history.
type MemoryStore struct {
	mu        sync.RWMutex
	profiles  map[string]*domain.CustomerProfile
	txns      map[string][]*domain.TransactionRecord
	salaries  map[string][]*domain.SalaryCreditRecord
	activity  map[string][]*domain.AppActivityRecord
	utilities map[string][]*domain.UtilityPaymentRecord
	audit     []*domain.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:  make(map[string]*domain.CustomerProfile),
		txns:      make(map[string][]*domain.TransactionRecord),
		salaries:  make(map[string][]*domain.SalaryCreditRecord),
		activity:  make(map[string][]*domain.AppActivityRecord),
		utilities: make(map[string][]*domain.UtilityPaymentRecord),
	}
}

func (m *MemoryStore) GetProfile(_ context.Context, customerID string) (*domain.CustomerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[customerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) ListProfiles(_ context.Context, search string, limit int) ([]*domain.CustomerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.CustomerProfile, 0, len(m.profiles))
	needle := strings.ToLower(search)
	for _, p := range m.profiles {
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.CustomerID), needle) &&
			!strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountProfiles(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles), nil
}

func (m *MemoryStore) GetTransactions(_ context.Context, customerID string, since time.Time) ([]*domain.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.TransactionRecord
	for _, tr := range m.txns[customerID] {
		if tr.Timestamp.Before(since) {
			continue
		}
		cp := *tr
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStore) GetSalaryHistory(_ context.Context, customerID string) ([]*domain.SalaryCreditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.SalaryCreditRecord, 0, len(m.salaries[customerID]))
	for _, sc := range m.salaries[customerID] {
		cp := *sc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreditDate.After(out[j].CreditDate) })
	return out, nil
}

func (m *MemoryStore) GetAppActivity(_ context.Context, customerID string, since time.Time) ([]*domain.AppActivityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.AppActivityRecord
	for _, a := range m.activity[customerID] {
		if a.Timestamp.Before(since) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStore) GetUtilityPayments(_ context.Context, customerID string) ([]*domain.UtilityPaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.UtilityPaymentRecord, 0, len(m.utilities[customerID]))
	for _, u := range m.utilities[customerID] {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BillDate.After(out[j].BillDate) })
	return out, nil
}

func (m *MemoryStore) ListSalaryLags(_ context.Context, minDelayDays int, limit int) ([]*domain.SalaryLag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.SalaryLag
	for id, history := range m.salaries {
		if len(history) == 0 {
			continue
		}
		latest := history[0]
		for _, sc := range history[1:] {
			if sc.CreditDate.After(latest.CreditDate) {
				latest = sc
			}
		}
		if latest.DelayDays < minDelayDays {
			continue
		}
		name := id
		if p, ok := m.profiles[id]; ok {
			name = p.Name
		}
		out = append(out, &domain.SalaryLag{
			CustomerID:   id,
			CustomerName: name,
			DelayDays:    latest.DelayDays,
			CreditDate:   latest.CreditDate,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DelayDays != out[j].DelayDays {
			return out[i].DelayDays > out[j].DelayDays
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) AppendAudit(_ context.Context, entry *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.audit = append(m.audit, &cp)
	return nil
}

// AuditEntries returns a snapshot of the audit log, oldest first.
func (m *MemoryStore) AuditEntries() []*domain.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}

func (m *MemoryStore) SaveProfile(_ context.Context, p *domain.CustomerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.CustomerID] = &cp
	return nil
}

func (m *MemoryStore) AddTransaction(_ context.Context, tr *domain.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tr
	m.txns[tr.CustomerID] = append(m.txns[tr.CustomerID], &cp)
	return nil
}

func (m *MemoryStore) AddSalaryCredit(_ context.Context, sc *domain.SalaryCreditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sc
	m.salaries[sc.CustomerID] = append(m.salaries[sc.CustomerID], &cp)
	return nil
}

func (m *MemoryStore) AddAppActivity(_ context.Context, a *domain.AppActivityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.activity[a.CustomerID] = append(m.activity[a.CustomerID], &cp)
	return nil
}

func (m *MemoryStore) AddUtilityPayment(_ context.Context, u *domain.UtilityPaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.utilities[u.CustomerID] = append(m.utilities[u.CustomerID], &cp)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }
