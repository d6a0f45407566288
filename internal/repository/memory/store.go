// Package memory is a process-local implementation of the repository
// interfaces, used when APP_STORE=memory and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/tender-backend/internal/models"
	"github.com/baharkarakas/tender-backend/internal/repository"
)

type Store struct {
	mu           sync.RWMutex
	transactions map[string]models.Transaction
	intents      map[string]models.PaymentIntent
	audit        []models.AuditLog
	now          func() time.Time
}

func New() *Store {
	return &Store{
		transactions: make(map[string]models.Transaction),
		intents:      make(map[string]models.PaymentIntent),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Transactions() repository.Transactions { return txnStore{s} }
func (s *Store) Intents() repository.PaymentIntents     { return intentStore{s} }
func (s *Store) AuditLogs() repository.AuditLogs        { return auditStore{s} }

type txnStore struct{ *Store }

func (s txnStore) Create(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if _, ok := s.transactions[tx.ID]; ok {
		return models.Transaction{}, repository.ErrConflict
	}
	now := s.now()
	tx.Version = 1
	tx.CreatedAt, tx.UpdatedAt = now, now
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s txnStore) GetByID(_ context.Context, id string) (models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return models.Transaction{}, repository.ErrNotFound
	}
	return tx, nil
}

func (s txnStore) List(_ context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Transaction{}
	for _, tx := range s.transactions {
		if f.Kind != "" && tx.Kind != f.Kind {
			continue
		}
		if f.From != nil && tx.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && tx.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Offset >= len(out) {
		return []models.Transaction{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s txnStore) UpdateTenders(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTendersLocked(tx)
}

func (s *Store) updateTendersLocked(tx models.Transaction) (models.Transaction, error) {
	cur, ok := s.transactions[tx.ID]
	if !ok {
		return models.Transaction{}, repository.ErrNotFound
	}
	if cur.Version != tx.Version {
		return models.Transaction{}, repository.ErrConflict
	}
	cur.Tenders = tx.Tenders
	cur.TotalPaid = tx.TotalPaid
	cur.BalanceDue = tx.BalanceDue
	cur.PaymentStatus = tx.PaymentStatus
	cur.Version++
	cur.UpdatedAt = s.now()
	s.transactions[cur.ID] = cur
	return cur, nil
}

func (s txnStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.transactions, id)
	for k, in := range s.intents {
		if in.TransactionID == id {
			delete(s.intents, k)
		}
	}
	return nil
}

type intentStore struct{ *Store }

func (s intentStore) Create(_ context.Context, in models.PaymentIntent) (models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[in.TransactionID]; !ok {
		return models.PaymentIntent{}, repository.ErrNotFound
	}
	if _, ok := s.intents[in.OrderID]; ok {
		return models.PaymentIntent{}, repository.ErrConflict
	}
	in.Status = models.IntentCreated
	in.CreatedAt = s.now()
	s.intents[in.OrderID] = in
	return in, nil
}

func (s intentStore) GetByOrderID(_ context.Context, orderID string) (models.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.intents[orderID]
	if !ok {
		return models.PaymentIntent{}, repository.ErrNotFound
	}
	return in, nil
}

func (s intentStore) HasOpen(_ context.Context, transactionID string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, in := range s.intents {
		if in.TransactionID == transactionID && in.Status == models.IntentCreated && in.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s intentStore) Settle(_ context.Context, orderID, paymentID string, fn repository.SettleFunc) (models.PaymentIntent, models.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.intents[orderID]
	if !ok {
		return models.PaymentIntent{}, models.Transaction{}, false, repository.ErrNotFound
	}
	tx, ok := s.transactions[in.TransactionID]
	if !ok {
		return in, models.Transaction{}, false, repository.ErrNotFound
	}
	switch {
	case in.Status == models.IntentVerified && in.PaymentID == paymentID:
		return in, tx, false, nil
	case in.Status != models.IntentCreated:
		return in, tx, false, repository.ErrIntentClosed
	}

	next, err := fn(tx, in)
	if err != nil {
		return in, tx, false, err
	}
	tx, err = s.updateTendersLocked(next)
	if err != nil {
		return in, tx, false, err
	}
	now := s.now()
	in.Status = models.IntentVerified
	in.PaymentID = paymentID
	in.ResolvedAt = &now
	s.intents[orderID] = in
	return in, tx, true, nil
}

type auditStore struct{ *Store }

func (s auditStore) Create(_ context.Context, l models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	s.audit = append(s.audit, l)
	return nil
}

func (s auditStore) ListByEntity(_ context.Context, entityType, entityID string, limit int) ([]models.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.AuditLog{}
	for i := len(s.audit) - 1; i >= 0; i-- {
		l := s.audit[i]
		if l.EntityType != entityType || l.EntityID == nil || *l.EntityID != entityID {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
