// Package memory provides a simple in-memory implementation used for development and tests.
// It keeps code paths easy to follow while allowing us to plug in a real DB later.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
)

// Store is an in-memory implementation of the repositories and writers used by the services.
// It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu sync.RWMutex
	// userID -> date -> record
	records map[string]map[string]finance.DailyRecord
	// Per-user sorted date keys for ordered range scans
	datesByUser map[string][]string
	categories  map[string]map[finance.Kind][]finance.Category
	settings    map[string]finance.Settings
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		records:     make(map[string]map[string]finance.DailyRecord),
		datesByUser: make(map[string][]string),
		categories:  make(map[string]map[finance.Kind][]finance.Category),
		settings:    make(map[string]finance.Settings),
	}
}

// SeedRecord stores a copy of r with its totals recomputed from the arrays.
func (s *Store) SeedRecord(r finance.DailyRecord) {
	r = r.Clone()
	r.Recompute()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(r)
}

// Ready always succeeds for the in-memory store.
func (s *Store) Ready(context.Context) error { return nil }

// --- Daily records ---

func (s *Store) GetRecord(_ context.Context, userID, date string) (finance.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[userID][date]
	if !ok {
		return finance.DailyRecord{}, errs.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) ListRecords(_ context.Context, userID, from, to string) ([]finance.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dates := s.rangeByDate(userID, from, to)
	out := make([]finance.DailyRecord, 0, len(dates))
	for _, d := range dates {
		out = append(out, s.records[userID][d].Clone())
	}
	return out, nil
}

func (s *Store) MutateRecord(_ context.Context, userID, date string, fn func(*finance.DailyRecord) error) (finance.DailyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[userID][date]
	if ok {
		r = r.Clone()
	} else {
		r = finance.NewDailyRecord(userID, date)
	}
	if err := fn(&r); err != nil {
		return finance.DailyRecord{}, err
	}
	r.Recompute()
	r.UserID, r.Date = userID, date
	r.Version++
	s.putLocked(r)
	return r.Clone(), nil
}

func (s *Store) RewriteRecords(_ context.Context, userID string, fn func(*finance.DailyRecord) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.datesByUser[userID] {
		r := s.records[userID][d].Clone()
		if !fn(&r) {
			continue
		}
		r.Version++
		s.putLocked(r)
		n++
	}
	return n, nil
}

func (s *Store) putLocked(r finance.DailyRecord) {
	byDate, ok := s.records[r.UserID]
	if !ok {
		byDate = make(map[string]finance.DailyRecord)
		s.records[r.UserID] = byDate
	}
	if _, exists := byDate[r.Date]; !exists {
		s.insertDateIndexLocked(r.UserID, r.Date)
	}
	byDate[r.Date] = r
}

// insertDateIndexLocked keeps datesByUser sorted ascending.
func (s *Store) insertDateIndexLocked(userID, date string) {
	keys := s.datesByUser[userID]
	i := sort.SearchStrings(keys, date)
	keys = append(keys, "")
	copy(keys[i+1:], keys[i:])
	keys[i] = date
	s.datesByUser[userID] = keys
}

// rangeByDate returns the date keys within [from, to]; empty bounds are open.
func (s *Store) rangeByDate(userID, from, to string) []string {
	keys := s.datesByUser[userID]
	lo := 0
	if from != "" {
		lo = sort.SearchStrings(keys, from)
	}
	hi := len(keys)
	if to != "" {
		hi = sort.Search(len(keys), func(i int) bool { return keys[i] > to })
	}
	if lo >= hi {
		return nil
	}
	return append([]string(nil), keys[lo:hi]...)
}

// --- Categories ---

func (s *Store) categoriesLocked(userID string) map[finance.Kind][]finance.Category {
	m, ok := s.categories[userID]
	if !ok {
		m = make(map[finance.Kind][]finance.Category)
		s.categories[userID] = m
	}
	return m
}

func (s *Store) ListCategories(_ context.Context, userID string, kind finance.Kind) ([]finance.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]finance.Category{}, s.categories[userID][kind]...), nil
}

func (s *Store) CreateCategory(_ context.Context, c finance.Category) (finance.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.categoriesLocked(c.UserID)
	for _, existing := range m[c.Kind] {
		if finance.SameCategory(existing.Name, c.Name) {
			return finance.Category{}, errs.ErrConflict
		}
	}
	m[c.Kind] = append(m[c.Kind], c)
	return c, nil
}

func (s *Store) RenameCategory(_ context.Context, userID string, kind finance.Kind, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.categories[userID][kind]
	idx := -1
	for i, c := range list {
		if finance.SameCategory(c.Name, oldName) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errs.ErrNotFound
	}
	for i, c := range list {
		if i != idx && finance.SameCategory(c.Name, newName) {
			return errs.ErrConflict
		}
	}
	list[idx].Name = newName
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, userID string, kind finance.Kind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.categories[userID][kind]
	for i, c := range list {
		if finance.SameCategory(c.Name, name) {
			s.categories[userID][kind] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

// --- Settings ---

func (s *Store) GetSettings(_ context.Context, userID string) (finance.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[userID]
	if !ok {
		return finance.Settings{}, errs.ErrNotFound
	}
	return st, nil
}

func (s *Store) SaveSettings(_ context.Context, st finance.Settings) (finance.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[st.UserID] = st
	return st, nil
}
