package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"reengage/internal/customer/models"
)

// MemoryStore keeps the registry in memory for tests and development. It
// favors clarity over performance and mirrors the SQL store's semantics,
// including voucher preservation.
type MemoryStore struct {
	mu     sync.RWMutex
	byKey  map[string]*models.CustomerRecord
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: make(map[string]*models.CustomerRecord), nextID: 1}
}

func (s *MemoryStore) Upsert(_ context.Context, rec *models.CustomerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(rec)
	return nil
}

func (s *MemoryStore) upsertLocked(rec *models.CustomerRecord) {
	clone := *rec
	if existing, ok := s.byKey[rec.CustomerKey]; ok {
		clone.ID = existing.ID
		clone.Voucher = existing.Voucher
	} else {
		clone.ID = s.nextID
		s.nextID++
		clone.Voucher = ""
	}
	s.byKey[rec.CustomerKey] = &clone
}

func (s *MemoryStore) Replace(_ context.Context, recs []*models.CustomerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := make(map[string]bool, len(recs))
	for _, rec := range recs {
		s.upsertLocked(rec)
		keep[rec.CustomerKey] = true
	}
	for k := range s.byKey {
		if !keep[k] {
			delete(s.byKey, k)
		}
	}
	return nil
}

func (s *MemoryStore) Truncate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey = make(map[string]*models.CustomerRecord)
	return nil
}

func (s *MemoryStore) DeleteByID(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range s.byKey {
		if rec.ID == id {
			delete(s.byKey, k)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]*models.CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.CustomerRecord, 0, len(s.byKey))
	for _, rec := range s.byKey {
		clone := *rec
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		an, bn := noOrder(a), noOrder(b)
		if an != bn {
			return an
		}
		if !an && !a.LastOrderDate.Equal(*b.LastOrderDate) {
			return a.LastOrderDate.Before(*b.LastOrderDate)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *MemoryStore) FindInactive(_ context.Context, cutoff time.Time) ([]*models.CustomerRecord, error) {
	all, _ := s.ListAll(context.Background())
	out := all[:0]
	for _, rec := range all {
		if noOrder(rec) || rec.LastOrderDate.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) SetVoucherIfEmpty(_ context.Context, customerKey, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[customerKey]
	if !ok {
		return "", ErrNotFound
	}
	if rec.Voucher != "" {
		return rec.Voucher, nil
	}
	rec.Voucher = code
	return code, nil
}

func noOrder(rec *models.CustomerRecord) bool {
	return rec.LastOrderDate == nil || rec.LastOrderDate.IsZero()
}
