package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

type ReportStore struct {
	mu     sync.RWMutex
	items  []domain.Report
	nextID int64
	now    func() time.Time
}

func NewReportStore() *ReportStore {
	return &ReportStore{nextID: 1, now: time.Now}
}

func (s *ReportStore) List(_ context.Context, filter domain.ReportFilter) ([]domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]domain.Report, 0, len(s.items))
	for _, r := range s.items {
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.ProjectID != nil && (r.ProjectID == nil || *r.ProjectID != *filter.ProjectID) {
			continue
		}
		matched = append(matched, r)
	}
	return page(matched, filter.Skip, filter.Limit), nil
}

func (s *ReportStore) Get(_ context.Context, id int64) (domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index(id)
	if !ok {
		return domain.Report{}, notFound("report", id)
	}
	return s.items[idx], nil
}

func (s *ReportStore) Create(_ context.Context, r domain.Report) (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextID
	s.nextID++
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	r.Materials = append([]domain.LineItem(nil), r.Materials...)
	s.items = append(s.items, r)
	return r, nil
}

func (s *ReportStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index(id)
	if !ok {
		return notFound("report", id)
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return nil
}

func (s *ReportStore) index(id int64) (int, bool) {
	idx := sort.Search(len(s.items), func(i int) bool { return s.items[i].ID >= id })
	return idx, idx < len(s.items) && s.items[idx].ID == id
}
