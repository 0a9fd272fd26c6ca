package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/catalog"
	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

func seededStore() *MaterialStore {
	return NewMaterialStore(catalog.Default(0, "").SeedMaterials(time.Time{}))
}

func TestMaterialStoreSeedsOnce(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.List(ctx, domain.MaterialFilter{})
		}()
	}
	wg.Wait()

	items, err := s.List(ctx, domain.MaterialFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 10 {
		t.Fatalf("expected 10 seeded materials, got %d", len(items))
	}
	for i, m := range items {
		if m.ID != int64(i+1) || m.CreatedAt.IsZero() {
			t.Fatalf("unexpected seeded material %+v", m)
		}
	}
}

func TestCreateBatchAssignsContiguousIDs(t *testing.T) {
	s := NewMaterialStore(nil)
	ctx := context.Background()
	if _, err := s.Create(ctx, domain.Material{Name: "first"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var wg sync.WaitGroup
	batches := make([][]domain.Material, 4)
	for b := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := make([]domain.Material, 5)
			for i := range in {
				in[i] = domain.Material{Name: "item", Quantity: float64(i)}
			}
			out, err := s.CreateBatch(ctx, in)
			if err != nil {
				t.Errorf("CreateBatch() error = %v", err)
				return
			}
			batches[b] = out
		}()
	}
	wg.Wait()

	for _, batch := range batches {
		for i := 1; i < len(batch); i++ {
			if batch[i].ID != batch[i-1].ID+1 {
				t.Fatalf("batch ids not contiguous: %d then %d", batch[i-1].ID, batch[i].ID)
			}
		}
	}
}

func TestCreateBatchRejectsInvalidWithoutConsumingIDs(t *testing.T) {
	s := NewMaterialStore(nil)
	ctx := context.Background()
	_, err := s.CreateBatch(ctx, []domain.Material{{Name: "ok"}, {Name: "bad", Price: -1}})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	m, err := s.Create(ctx, domain.Material{Name: "next"})
	if err != nil || m.ID != 1 {
		t.Fatalf("expected id 1, got %d (%v)", m.ID, err)
	}
}

func TestMaterialUpdateDeleteNeverReusesIDs(t *testing.T) {
	s := NewMaterialStore(nil)
	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	a, _ := s.Create(ctx, domain.Material{Name: "a", Quantity: 1, Price: 2})
	b, _ := s.Create(ctx, domain.Material{Name: "b"})

	clock = clock.Add(time.Hour)
	price := 3.5
	updated, err := s.Update(ctx, a.ID, domain.MaterialPatch{Price: &price})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Price != 3.5 || updated.Quantity != 1 || !updated.CreatedAt.Equal(a.CreatedAt) || !updated.UpdatedAt.Equal(clock) {
		t.Fatalf("unexpected updated material %+v", updated)
	}

	if err := s.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, b.ID); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	c, _ := s.Create(ctx, domain.Material{Name: "c"})
	if c.ID != 3 {
		t.Fatalf("expected id 3 after delete, got %d", c.ID)
	}
	if err := s.Delete(ctx, 99); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMaterialSummaryAndSearch(t *testing.T) {
	s := NewMaterialStore(nil)
	ctx := context.Background()
	supplier := "Rudus"
	project := int64(7)
	_, _ = s.CreateBatch(ctx, []domain.Material{
		{Name: "Betoon C30/37", Quantity: 10, Price: 95.5, Category: "concrete", Supplier: &supplier, ProjectID: &project},
		{Name: "Betoon C25/30", Quantity: 2, Price: 0.1, Category: "concrete", Supplier: &supplier},
		{Name: "OSB plaat", Quantity: 3, Price: 1.1},
	})

	summary, err := s.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.TotalMaterials != 3 || summary.TotalValue != 958.5 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.ByCategory["concrete"] != 2 || summary.ValueByCategory["concrete"] != 955.2 || summary.ByCategory["general"] != 1 {
		t.Fatalf("unexpected category breakdown %+v", summary)
	}
	if len(summary.Suppliers) != 1 || summary.Suppliers[0] != "Rudus" {
		t.Fatalf("unexpected suppliers %v", summary.Suppliers)
	}

	hits, _ := s.Search(ctx, "rudus", 10)
	if len(hits) != 2 {
		t.Fatalf("expected supplier match, got %d", len(hits))
	}
	hits, _ = s.Search(ctx, "betoon", 1)
	if len(hits) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(hits))
	}
	counts, _ := s.CountByProject(ctx)
	if counts[7] != 1 {
		t.Fatalf("unexpected project counts %v", counts)
	}
	filtered, _ := s.List(ctx, domain.MaterialFilter{Category: "CONCRETE", Skip: 1})
	if len(filtered) != 1 || filtered[0].Name != "Betoon C25/30" {
		t.Fatalf("unexpected filtered list %+v", filtered)
	}
}

func TestProjectStoreLifecycleAndStats(t *testing.T) {
	s := NewProjectStore()
	ctx := context.Background()

	if _, err := s.Create(ctx, domain.Project{Name: "x", Progress: 120}); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	p, err := s.Create(ctx, domain.Project{Name: "Tartu school", Progress: 20})
	if err != nil || p.Status != domain.ProjectPending || p.ID != 1 {
		t.Fatalf("unexpected project %+v (%v)", p, err)
	}
	_, _ = s.Create(ctx, domain.Project{Name: "Pärnu pier", Status: domain.ProjectCompleted, Progress: 100})

	stats, _ := s.Stats(ctx)
	if stats.TotalProjects != 2 || stats.AverageProgress != 60 || stats.ByStatus[domain.ProjectCompleted] != 1 || stats.ByStatus[domain.ProjectCancelled] != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	completed, _ := s.List(ctx, domain.ProjectFilter{Status: domain.ProjectCompleted})
	if len(completed) != 1 || completed[0].Name != "Pärnu pier" {
		t.Fatalf("unexpected filtered projects %+v", completed)
	}
	if err := s.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Update(ctx, p.ID, domain.ProjectPatch{}); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReportStoreFilters(t *testing.T) {
	s := NewReportStore()
	ctx := context.Background()
	project := int64(3)
	_, _ = s.Create(ctx, domain.Report{Name: "a", Type: domain.ReportBOQ, ProjectID: &project})
	_, _ = s.Create(ctx, domain.Report{Name: "b", Type: domain.ReportCostEstimate})

	boq, _ := s.List(ctx, domain.ReportFilter{Type: domain.ReportBOQ})
	if len(boq) != 1 || boq[0].Name != "a" {
		t.Fatalf("unexpected reports %+v", boq)
	}
	byProject, _ := s.List(ctx, domain.ReportFilter{ProjectID: &project})
	if len(byProject) != 1 {
		t.Fatalf("unexpected reports %+v", byProject)
	}
	if err := s.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, 2); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
