// Package memory holds the process-local stores used when no database is
// configured. Records are kept ordered by id and ids are never reused.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/money"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type MaterialStore struct {
	mu     sync.RWMutex
	items  []domain.Material
	nextID int64
	now    func() time.Time

	seed     []domain.Material
	seedOnce sync.Once
}

// NewMaterialStore returns a store that is seeded with the given materials on
// first use.
func NewMaterialStore(seed []domain.Material) *MaterialStore {
	return &MaterialStore{nextID: 1, now: time.Now, seed: seed}
}

func (s *MaterialStore) ensureSeeded() {
	s.seedOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		now := s.now().UTC()
		for _, m := range s.seed {
			if m.CreatedAt.IsZero() {
				m.CreatedAt, m.UpdatedAt = now, now
			}
			m.ID = s.nextID
			s.nextID++
			s.items = append(s.items, m)
		}
	})
}

func (s *MaterialStore) List(_ context.Context, filter domain.MaterialFilter) ([]domain.Material, error) {
	s.ensureSeeded()
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	matched := make([]domain.Material, 0)
	for _, m := range s.items {
		if filter.Category != "" && !strings.EqualFold(m.Category, filter.Category) {
			continue
		}
		if filter.ProjectID != nil && (m.ProjectID == nil || *m.ProjectID != *filter.ProjectID) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(m.Name), query) {
			continue
		}
		matched = append(matched, m)
	}
	return page(matched, filter.Skip, filter.Limit), nil
}

func (s *MaterialStore) Get(_ context.Context, id int64) (domain.Material, error) {
	s.ensureSeeded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index(id)
	if !ok {
		return domain.Material{}, notFound("material", id)
	}
	return s.items[idx], nil
}

func (s *MaterialStore) Create(ctx context.Context, m domain.Material) (domain.Material, error) {
	created, err := s.CreateBatch(ctx, []domain.Material{m})
	if err != nil {
		return domain.Material{}, err
	}
	return created[0], nil
}

// CreateBatch validates every item before assigning any id, so a batch is
// either stored as one contiguous id range or not at all.
func (s *MaterialStore) CreateBatch(_ context.Context, items []domain.Material) ([]domain.Material, error) {
	for _, m := range items {
		if err := domain.ValidateMaterial(m); err != nil {
			return nil, err
		}
	}
	s.ensureSeeded()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	out := make([]domain.Material, 0, len(items))
	for _, m := range items {
		m.ID = s.nextID
		s.nextID++
		m.CreatedAt, m.UpdatedAt = now, now
		s.items = append(s.items, m)
		out = append(out, m)
	}
	return out, nil
}

func (s *MaterialStore) Update(_ context.Context, id int64, patch domain.MaterialPatch) (domain.Material, error) {
	s.ensureSeeded()
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index(id)
	if !ok {
		return domain.Material{}, notFound("material", id)
	}
	updated, err := domain.ApplyMaterialPatch(s.items[idx], patch)
	if err != nil {
		return domain.Material{}, err
	}
	updated.UpdatedAt = s.now().UTC()
	s.items[idx] = updated
	return updated, nil
}

func (s *MaterialStore) Delete(_ context.Context, id int64) error {
	s.ensureSeeded()
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index(id)
	if !ok {
		return notFound("material", id)
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return nil
}

// Search matches the query against name, category and supplier.
func (s *MaterialStore) Search(_ context.Context, query string, limit int) ([]domain.Material, error) {
	s.ensureSeeded()
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Material, 0)
	for _, m := range s.items {
		if q == "" || strings.Contains(strings.ToLower(m.Name), q) ||
			strings.Contains(strings.ToLower(m.Category), q) ||
			(m.Supplier != nil && strings.Contains(strings.ToLower(*m.Supplier), q)) {
			out = append(out, m)
		}
	}
	return page(out, 0, limit), nil
}

func (s *MaterialStore) Summary(_ context.Context) (domain.MaterialSummary, error) {
	s.ensureSeeded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summarize(s.items), nil
}

func (s *MaterialStore) CountByProject(_ context.Context) (map[int64]int, error) {
	s.ensureSeeded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]int)
	for _, m := range s.items {
		if m.ProjectID != nil {
			out[*m.ProjectID]++
		}
	}
	return out, nil
}

func (s *MaterialStore) index(id int64) (int, bool) {
	idx := sort.Search(len(s.items), func(i int) bool { return s.items[i].ID >= id })
	return idx, idx < len(s.items) && s.items[idx].ID == id
}

// Summarize aggregates counts and quantity-times-price values per category.
func Summarize(items []domain.Material) domain.MaterialSummary {
	summary := domain.MaterialSummary{
		TotalMaterials:  len(items),
		ByCategory:      make(map[string]int),
		ValueByCategory: make(map[string]float64),
		Suppliers:       make([]string, 0),
	}
	seen := make(map[string]struct{})
	values := make([]float64, 0, len(items))
	for _, m := range items {
		category := m.Category
		if category == "" {
			category = domain.CategoryGeneral
		}
		value := money.Mul(m.Quantity, m.Price)
		values = append(values, value)
		summary.ByCategory[category]++
		summary.ValueByCategory[category] = money.Sum(summary.ValueByCategory[category], value)
		if m.Supplier != nil && *m.Supplier != "" {
			if _, ok := seen[*m.Supplier]; !ok {
				seen[*m.Supplier] = struct{}{}
				summary.Suppliers = append(summary.Suppliers, *m.Supplier)
			}
		}
	}
	for category, value := range summary.ValueByCategory {
		summary.ValueByCategory[category] = money.Round2(value)
	}
	summary.TotalValue = money.Round2(money.Sum(values...))
	sort.Strings(summary.Suppliers)
	return summary
}

func page[T any](items []T, skip, limit int) []T {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	end := min(skip+limit, len(items))
	return append([]T(nil), items[skip:end]...)
}

func notFound(kind string, id int64) error {
	return domain.WrapError(domain.ErrNotFound, "get "+kind, fmt.Errorf("%s %d not found", kind, id))
}
