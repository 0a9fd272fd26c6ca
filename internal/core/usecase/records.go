package usecase

import (
	"context"
	"fmt"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/ports"
)

// RecordsUseCase serves materials and projects. Project material counts are
// derived from the materials store on every read.
type RecordsUseCase struct {
	materials ports.MaterialStore
	projects  ports.ProjectStore
}

func NewRecordsUseCase(materials ports.MaterialStore, projects ports.ProjectStore) *RecordsUseCase {
	return &RecordsUseCase{materials: materials, projects: projects}
}

func (uc *RecordsUseCase) ListMaterials(ctx context.Context, filter domain.MaterialFilter) ([]domain.Material, error) {
	return uc.materials.List(ctx, filter)
}

func (uc *RecordsUseCase) GetMaterial(ctx context.Context, id int64) (*domain.Material, error) {
	m, err := uc.materials.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (uc *RecordsUseCase) CreateMaterial(ctx context.Context, m domain.Material) (*domain.Material, error) {
	if err := uc.checkProject(ctx, m.ProjectID); err != nil {
		return nil, err
	}
	created, err := uc.materials.Create(ctx, m)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (uc *RecordsUseCase) UpdateMaterial(ctx context.Context, id int64, patch domain.MaterialPatch) (*domain.Material, error) {
	if err := uc.checkProject(ctx, patch.ProjectID); err != nil {
		return nil, err
	}
	updated, err := uc.materials.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (uc *RecordsUseCase) DeleteMaterial(ctx context.Context, id int64) error {
	return uc.materials.Delete(ctx, id)
}

func (uc *RecordsUseCase) SearchMaterials(ctx context.Context, query string, limit int) ([]domain.Material, error) {
	return uc.materials.Search(ctx, query, limit)
}

func (uc *RecordsUseCase) MaterialSummary(ctx context.Context) (*domain.MaterialSummary, error) {
	s, err := uc.materials.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (uc *RecordsUseCase) ListProjects(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.WrapError(domain.ErrValidation, "list projects", fmt.Errorf("unknown status %q", filter.Status))
	}
	projects, err := uc.projects.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	counts, err := uc.materials.CountByProject(ctx)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].MaterialsCount = counts[projects[i].ID]
	}
	return projects, nil
}

func (uc *RecordsUseCase) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	p, err := uc.projects.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.withCount(ctx, p)
}

func (uc *RecordsUseCase) CreateProject(ctx context.Context, p domain.Project) (*domain.Project, error) {
	created, err := uc.projects.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (uc *RecordsUseCase) UpdateProject(ctx context.Context, id int64, patch domain.ProjectPatch) (*domain.Project, error) {
	updated, err := uc.projects.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return uc.withCount(ctx, updated)
}

func (uc *RecordsUseCase) DeleteProject(ctx context.Context, id int64) error {
	return uc.projects.Delete(ctx, id)
}

func (uc *RecordsUseCase) ProjectStats(ctx context.Context) (*domain.ProjectStats, error) {
	stats, err := uc.projects.Stats(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := uc.materials.CountByProject(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := uc.projects.List(ctx, domain.ProjectFilter{Limit: 1000})
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		stats.TotalMaterials += counts[p.ID]
	}
	return &stats, nil
}

func (uc *RecordsUseCase) withCount(ctx context.Context, p domain.Project) (*domain.Project, error) {
	counts, err := uc.materials.CountByProject(ctx)
	if err != nil {
		return nil, err
	}
	p.MaterialsCount = counts[p.ID]
	return &p, nil
}

func (uc *RecordsUseCase) checkProject(ctx context.Context, projectID *int64) error {
	if projectID == nil {
		return nil
	}
	if _, err := uc.projects.Get(ctx, *projectID); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return domain.WrapError(domain.ErrValidation, "check project", fmt.Errorf("project %d does not exist", *projectID))
		}
		return err
	}
	return nil
}
