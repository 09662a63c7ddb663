// Package memory is a process-local Storage used for local runs and tests.
// A single lock guards all data, and ledger units of work hold it for their whole duration.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/ledger"
	"github.com/IlyasAtabaev731/market/internal/storage"
	"github.com/shopspring/decimal"
)

type Storage struct {
	mu           sync.RWMutex
	users        map[string]*models.User
	byName       map[string]string
	accounts     map[string]decimal.Decimal
	transactions []models.Transaction
	products     []models.Product
	reports      []models.Report
}

func New() *Storage {
	return &Storage{
		users:    make(map[string]*models.User),
		byName:   make(map[string]string),
		accounts: make(map[string]decimal.Decimal),
	}
}

func (s *Storage) SaveUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[user.Username]; ok {
		return storage.ErrUserExists
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	u := *user
	s.users[u.ID] = &u
	s.byName[u.Username] = u.ID

	return nil
}

func (s *Storage) GetUser(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *s.users[id]

	return &u, nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *user

	return &u, nil
}

func (s *Storage) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })

	return users, nil
}

func (s *Storage) UpdateBio(_ context.Context, id, bio string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.Bio = bio

	return nil
}

func (s *Storage) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.IsActive = active

	return nil
}

func (s *Storage) UserIDByUsername(_ context.Context, username string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok || !s.users[id].IsActive {
		return "", storage.ErrUserNotFound
	}

	return id, nil
}

func (s *Storage) GetBalance(_ context.Context, userID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.accounts[userID], nil
}

func (s *Storage) ListTransactions(_ context.Context, userID string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []models.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		t := s.transactions[i]
		if t.SenderID == userID || t.ReceiverID == userID {
			res = append(res, s.withNames(t))
		}
	}

	return res, nil
}

func (s *Storage) ListAllTransactions(_ context.Context) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]models.Transaction, 0, len(s.transactions))
	for i := len(s.transactions) - 1; i >= 0; i-- {
		res = append(res, s.withNames(s.transactions[i]))
	}

	return res, nil
}

func (s *Storage) withNames(t models.Transaction) models.Transaction {
	if u, ok := s.users[t.SenderID]; ok {
		t.SenderName = u.Username
	}
	if u, ok := s.users[t.ReceiverID]; ok {
		t.ReceiverName = u.Username
	}
	return t
}

// WithinTx stages every change and applies it only when fn succeeds.
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		s:        s,
		balances: make(map[string]decimal.Decimal),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, balance := range tx.balances {
		s.accounts[id] = balance
	}
	s.transactions = append(s.transactions, tx.records...)

	return nil
}

type memTx struct {
	s        *Storage
	balances map[string]decimal.Decimal
	records  []models.Transaction
}

func (t *memTx) EnsureAccount(_ context.Context, userID string) error {
	if _, ok := t.balances[userID]; ok {
		return nil
	}
	if balance, ok := t.s.accounts[userID]; ok {
		t.balances[userID] = balance
		return nil
	}
	if _, ok := t.s.users[userID]; !ok {
		return storage.ErrUserNotFound
	}
	t.balances[userID] = decimal.Zero

	return nil
}

func (t *memTx) LockBalances(_ context.Context, userIDs ...string) (map[string]decimal.Decimal, error) {
	res := make(map[string]decimal.Decimal, len(userIDs))
	for _, id := range userIDs {
		balance, ok := t.balances[id]
		if !ok {
			balance, ok = t.s.accounts[id]
		}
		if !ok {
			return nil, storage.ErrUserNotFound
		}
		res[id] = balance
	}

	return res, nil
}

func (t *memTx) AddToBalance(ctx context.Context, userID string, delta decimal.Decimal) error {
	balances, err := t.LockBalances(ctx, userID)
	if err != nil {
		return err
	}
	t.balances[userID] = balances[userID].Add(delta)

	return nil
}

func (t *memTx) RecordTransaction(_ context.Context, txn *models.Transaction) error {
	t.records = append(t.records, *txn)
	return nil
}

func (s *Storage) SaveProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.products = append(s.products, *p)

	return nil
}

// ViewProduct bumps the view counter and returns the updated product.
func (s *Storage) ViewProduct(_ context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i].Views++
			p := s.products[i]
			return &p, nil
		}
	}

	return nil, storage.ErrProductNotFound
}

func (s *Storage) SearchProducts(_ context.Context, filter models.ProductFilter) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyword := strings.ToLower(filter.Keyword)
	res := make([]models.Product, 0, len(s.products))
	for i := len(s.products) - 1; i >= 0; i-- {
		p := s.products[i]
		if keyword != "" && !strings.Contains(strings.ToLower(p.Title), keyword) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		res = append(res, p)
	}

	switch filter.Sort {
	case models.SortPrice:
		sort.SliceStable(res, func(i, j int) bool { return res[i].Price.LessThan(res[j].Price) })
	case models.SortPopular:
		sort.SliceStable(res, func(i, j int) bool { return res[i].Views > res[j].Views })
	}

	return res, nil
}

func (s *Storage) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.products {
		if s.products[i].ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			return nil
		}
	}

	return storage.ErrProductNotFound
}

func (s *Storage) SaveReport(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.reports = append(s.reports, *r)

	return nil
}

func (s *Storage) ListReports(_ context.Context) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]models.Report, 0, len(s.reports))
	for i := len(s.reports) - 1; i >= 0; i-- {
		res = append(res, s.reports[i])
	}

	return res, nil
}

func (s *Storage) Stop() error {
	return nil
}

func (s *Storage) Ping(_ context.Context) error {
	return nil
}
