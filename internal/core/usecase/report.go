package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/catalog"
	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/money"
	"github.com/inimene84/cad2data-pipeline/internal/core/ports"
	"github.com/inimene84/cad2data-pipeline/internal/safejson"
)

const projectMaterialsLimit = 1000

// ReportUseCase builds VAT-aware cost reports from line items or from the
// materials already stored for a project.
type ReportUseCase struct {
	reports   ports.ReportStore
	materials ports.MaterialStore
	catalog   *catalog.Catalog
	renderer  ports.ReportRenderer
	metrics   ports.ReportMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewReportUseCase(
	reports ports.ReportStore,
	materials ports.MaterialStore,
	c *catalog.Catalog,
	renderer ports.ReportRenderer,
	metrics ports.ReportMetrics,
	logger *slog.Logger,
) *ReportUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportUseCase{
		reports:   reports,
		materials: materials,
		catalog:   c,
		renderer:  renderer,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (uc *ReportUseCase) Generate(ctx context.Context, in domain.ReportInput) (*domain.Report, error) {
	const op = "generate report"
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrValidation, op, errors.New("name is required"))
	}
	if !in.Type.Valid() {
		return nil, domain.WrapError(domain.ErrValidation, op, fmt.Errorf("type must be one of boq, cost_estimate, materials_list; got %q", in.Type))
	}

	inputs := in.Materials
	if len(inputs) == 0 && in.ProjectID != nil {
		pulled, err := uc.projectMaterials(ctx, *in.ProjectID)
		if err != nil {
			return nil, err
		}
		inputs = pulled
	}

	region := strings.TrimSpace(in.Region)
	if region == "" {
		region = uc.catalog.DefaultRegion()
	}
	multiplier, _ := uc.catalog.Multiplier(region)
	includeVAT := in.IncludeVAT == nil || *in.IncludeVAT

	lines, problems := normalizeLines(inputs)
	report := domain.Report{
		Name:               name,
		ProjectID:          in.ProjectID,
		Type:               in.Type,
		Status:             domain.ReportCompleted,
		Region:             region,
		RegionalMultiplier: multiplier,
		IncludeVAT:         includeVAT,
		Materials:          lines,
		Currency:           catalog.Currency,
		CreatedAt:          uc.now().UTC(),
	}
	vatRate := 0.0
	if includeVAT {
		vatRate = uc.catalog.VATRate()
	}
	applyCosts(&report, vatRate)
	if len(problems) > 0 {
		report.Status = domain.ReportFailed
		report.Error = strings.Join(problems, "; ")
	}

	saved, err := uc.reports.Create(ctx, report)
	if err != nil {
		uc.record(in.Type, "error")
		return nil, fmt.Errorf("store report: %w", err)
	}
	uc.record(in.Type, string(saved.Status))
	return &saved, nil
}

// applyCosts sets base, VAT and total with half-away-from-zero rounding.
func applyCosts(r *domain.Report, vatRate float64) {
	totals := make([]float64, 0, len(r.Materials))
	for _, line := range r.Materials {
		totals = append(totals, line.TotalPrice)
	}
	r.BaseCost = money.Round2(money.Sum(totals...))
	r.VATRate = vatRate
	r.VATAmount = money.Round2(money.Mul(r.BaseCost, vatRate))
	r.TotalCost = money.Round2(money.Sum(r.BaseCost, r.VATAmount))
	r.RegionalAdjustedCost = money.Round2(money.Mul(r.BaseCost, r.RegionalMultiplier))
}

// normalizeLines converts loosely typed rows into line items. Rows that cannot
// be priced are reported as problems and left out of the totals.
func normalizeLines(inputs []domain.ReportMaterialInput) ([]domain.LineItem, []string) {
	lines := make([]domain.LineItem, 0, len(inputs))
	var problems []string
	for i, in := range inputs {
		name := firstNonBlank(in.Name, in.Material)
		if name == "" {
			problems = append(problems, fmt.Sprintf("materials[%d]: name or material is required", i))
			continue
		}
		unitPrice := firstNonNil(in.EstimatedPrice, in.Price, in.Cost)
		quantity := 1.0
		if in.Quantity != nil {
			quantity = *in.Quantity
		}
		if !finiteNonNegative(unitPrice) || !finiteNonNegative(quantity) {
			problems = append(problems, fmt.Sprintf("materials[%d]: quantity and price must be finite and >= 0", i))
			continue
		}
		lines = append(lines, domain.LineItem{
			Name:       name,
			Quantity:   quantity,
			Unit:       in.Unit,
			UnitPrice:  unitPrice,
			TotalPrice: money.Mul(unitPrice, quantity),
		})
	}
	return lines, problems
}

func (uc *ReportUseCase) projectMaterials(ctx context.Context, projectID int64) ([]domain.ReportMaterialInput, error) {
	stored, err := uc.materials.List(ctx, domain.MaterialFilter{ProjectID: &projectID, Limit: projectMaterialsLimit})
	if err != nil {
		return nil, fmt.Errorf("load project materials: %w", err)
	}
	out := make([]domain.ReportMaterialInput, 0, len(stored))
	for _, m := range stored {
		out = append(out, domain.ReportMaterialInput{
			Name:     &m.Name,
			Quantity: &m.Quantity,
			Unit:     m.Unit,
			Price:    &m.Price,
		})
	}
	return out, nil
}

func (uc *ReportUseCase) List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error) {
	return uc.reports.List(ctx, filter)
}

func (uc *ReportUseCase) Get(ctx context.Context, id int64) (*domain.Report, error) {
	r, err := uc.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (uc *ReportUseCase) Delete(ctx context.Context, id int64) error {
	return uc.reports.Delete(ctx, id)
}

// Download renders the report as a base64 PDF, or as base64 JSON when no
// renderer is configured or rendering fails.
func (uc *ReportUseCase) Download(ctx context.Context, id int64) (*domain.ReportArtifact, error) {
	r, err := uc.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if uc.renderer != nil {
		raw, err := uc.renderer.Render(r)
		if err == nil {
			return &domain.ReportArtifact{
				Filename:    fmt.Sprintf("report_%d.pdf", r.ID),
				ContentType: "application/pdf",
				Content:     base64.StdEncoding.EncodeToString(raw),
			}, nil
		}
		uc.logger.Warn("report_render_failed", "report_id", r.ID, "error", err)
	}
	raw, err := safejson.Marshal(r)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSerialization, "encode report", err)
	}
	return &domain.ReportArtifact{
		Filename:    fmt.Sprintf("report_%d.json", r.ID),
		ContentType: "application/json",
		Content:     base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func (uc *ReportUseCase) record(t domain.ReportType, status string) {
	if uc.metrics != nil {
		uc.metrics.RecordReport(string(t), status)
	}
}

func firstNonBlank(values ...*string) string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return strings.TrimSpace(*v)
		}
	}
	return ""
}

func firstNonNil(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
