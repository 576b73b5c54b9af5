package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/brokerload/lenderdesk/internal/auth"
	"github.com/brokerload/lenderdesk/internal/lender"
	"github.com/google/uuid"
)

// MemoryLenderStore is an in-memory lender.Repository. It enforces the same
// code uniqueness constraint as the PostgreSQL store and keeps creation
// order, so handler and bulk-engine tests run against store-equivalent
// semantics without a database.
type MemoryLenderStore struct {
	mu      sync.Mutex
	byCode  map[string]*lender.Lender
	created []*lender.Lender // creation order
	clock   time.Time
}

// NewMemoryLenderStore creates an empty in-memory lender store.
func NewMemoryLenderStore() *MemoryLenderStore {
	return &MemoryLenderStore{
		byCode: make(map[string]*lender.Lender),
		clock:  time.Now().UTC(),
	}
}

// nextCreated hands out strictly increasing timestamps so creation order is
// total even within one test run.
func (m *MemoryLenderStore) nextCreated() time.Time {
	m.clock = m.clock.Add(time.Microsecond)
	return m.clock
}

func (m *MemoryLenderStore) Create(_ context.Context, in lender.CreateInput) (*lender.Lender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byCode[in.Code]; exists {
		return nil, fmt.Errorf("code %s: %w", in.Code, lender.ErrDuplicateCode)
	}

	rec := &lender.Lender{
		ID:                    uuid.NewString(),
		Name:                  in.Name,
		Code:                  in.Code,
		UpfrontCommissionRate: in.UpfrontCommissionRate,
		TrialCommissionRate:   in.TrialCommissionRate,
		Active:                in.Active,
		Created:               m.nextCreated(),
	}
	m.byCode[rec.Code] = rec
	m.created = append(m.created, rec)
	cp := *rec
	return &cp, nil
}

func (m *MemoryLenderStore) GetByCode(_ context.Context, code string) (*lender.Lender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byCode[code]
	if !ok {
		return nil, lender.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryLenderStore) First(_ context.Context) (*lender.Lender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.created) == 0 {
		return nil, lender.ErrNotFound
	}
	cp := *m.created[0]
	return &cp, nil
}

func (m *MemoryLenderStore) ForEachOrderedByCreation(_ context.Context, fn func(*lender.Lender) error) error {
	m.mu.Lock()
	snapshot := make([]*lender.Lender, len(m.created))
	for i, rec := range m.created {
		cp := *rec
		snapshot[i] = &cp
	}
	m.mu.Unlock()

	for _, rec := range snapshot {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryLenderStore) List(_ context.Context, q lender.ListQuery) (*lender.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*lender.Lender
	for _, rec := range m.created {
		if q.Active != nil && rec.Active != *q.Active {
			continue
		}
		if q.Code != "" && rec.Code != q.Code {
			continue
		}
		cp := *rec
		matched = append(matched, &cp)
	}

	if err := sortLenders(matched, q.OrderBy); err != nil {
		return nil, err
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 5
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	return &lender.Page{Count: len(matched), Items: matched[start:end]}, nil
}

func sortLenders(items []*lender.Lender, term string) error {
	desc := false
	if len(term) > 0 && term[0] == '-' {
		desc = true
		term = term[1:]
	}

	var less func(a, b *lender.Lender) bool
	switch term {
	case "", "created":
		less = func(a, b *lender.Lender) bool { return a.Created.Before(b.Created) }
	case "code":
		less = func(a, b *lender.Lender) bool { return a.Code < b.Code }
	case "upfront_commission_rate":
		less = func(a, b *lender.Lender) bool { return a.UpfrontCommissionRate < b.UpfrontCommissionRate }
	case "trial_commission_rate":
		less = func(a, b *lender.Lender) bool { return a.TrialCommissionRate < b.TrialCommissionRate }
	case "active":
		less = func(a, b *lender.Lender) bool { return !a.Active && b.Active }
	default:
		return fmt.Errorf("%w: %q", lender.ErrInvalidOrdering, term)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
	return nil
}

func (m *MemoryLenderStore) Update(_ context.Context, code string, in lender.UpdateInput) (*lender.Lender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byCode[code]
	if !ok {
		return nil, lender.ErrNotFound
	}
	if in.Code != code {
		if _, exists := m.byCode[in.Code]; exists {
			return nil, fmt.Errorf("code %s: %w", in.Code, lender.ErrDuplicateCode)
		}
		delete(m.byCode, code)
		m.byCode[in.Code] = rec
	}

	rec.Name = in.Name
	rec.Code = in.Code
	rec.UpfrontCommissionRate = in.UpfrontCommissionRate
	rec.TrialCommissionRate = in.TrialCommissionRate
	rec.Active = in.Active

	cp := *rec
	return &cp, nil
}

func (m *MemoryLenderStore) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byCode[code]
	if !ok {
		return lender.ErrNotFound
	}
	delete(m.byCode, code)
	for i, it := range m.created {
		if it == rec {
			m.created = append(m.created[:i], m.created[i+1:]...)
			break
		}
	}
	return nil
}

// MemoryUserSource is an in-memory auth.UserSource for tests.
type MemoryUserSource struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

// NewMemoryUserSource creates an empty in-memory user source.
func NewMemoryUserSource() *MemoryUserSource {
	return &MemoryUserSource{users: make(map[string]*auth.User)}
}

// Add stores a credential record.
func (m *MemoryUserSource) Add(u *auth.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.users[u.Username] = u
}

func (m *MemoryUserSource) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, auth.ErrUnknownUser
	}
	cp := *u
	return &cp, nil
}
