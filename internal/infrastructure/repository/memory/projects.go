package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/money"
)

type ProjectStore struct {
	mu     sync.RWMutex
	items  []domain.Project
	nextID int64
	now    func() time.Time
}

func NewProjectStore() *ProjectStore {
	return &ProjectStore{nextID: 1, now: time.Now}
}

func (s *ProjectStore) List(_ context.Context, filter domain.ProjectFilter) ([]domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]domain.Project, 0, len(s.items))
	for _, p := range s.items {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		matched = append(matched, p)
	}
	return page(matched, filter.Skip, filter.Limit), nil
}

func (s *ProjectStore) Get(_ context.Context, id int64) (domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index(id)
	if !ok {
		return domain.Project{}, notFound("project", id)
	}
	return s.items[idx], nil
}

func (s *ProjectStore) Create(_ context.Context, p domain.Project) (domain.Project, error) {
	if p.Status == "" {
		p.Status = domain.ProjectPending
	}
	if err := domain.ValidateProject(p); err != nil {
		return domain.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	p.ID = s.nextID
	s.nextID++
	p.CreatedAt, p.UpdatedAt = now, now
	s.items = append(s.items, p)
	return p, nil
}

func (s *ProjectStore) Update(_ context.Context, id int64, patch domain.ProjectPatch) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index(id)
	if !ok {
		return domain.Project{}, notFound("project", id)
	}
	updated, err := domain.ApplyProjectPatch(s.items[idx], patch)
	if err != nil {
		return domain.Project{}, err
	}
	updated.UpdatedAt = s.now().UTC()
	s.items[idx] = updated
	return updated, nil
}

func (s *ProjectStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index(id)
	if !ok {
		return notFound("project", id)
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return nil
}

func (s *ProjectStore) Stats(_ context.Context) (domain.ProjectStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ProjectStatsOf(s.items), nil
}

func (s *ProjectStore) index(id int64) (int, bool) {
	idx := sort.Search(len(s.items), func(i int) bool { return s.items[i].ID >= id })
	return idx, idx < len(s.items) && s.items[idx].ID == id
}

// ProjectStatsOf counts projects per status; every status is always present.
func ProjectStatsOf(projects []domain.Project) domain.ProjectStats {
	stats := domain.ProjectStats{
		TotalProjects: len(projects),
		ByStatus: map[domain.ProjectStatus]int{
			domain.ProjectPending:    0,
			domain.ProjectInProgress: 0,
			domain.ProjectCompleted:  0,
			domain.ProjectCancelled:  0,
		},
	}
	if len(projects) == 0 {
		return stats
	}
	total := 0
	for _, p := range projects {
		stats.ByStatus[p.Status]++
		total += p.Progress
	}
	stats.AverageProgress = money.Round2(float64(total) / float64(len(projects)))
	return stats
}
