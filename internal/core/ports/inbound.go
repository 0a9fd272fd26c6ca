package ports

import (
	"context"
	"io"

	"github.com/inimene84/cad2data-pipeline/internal/core/catalog"
	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

// ExtractionService is the inbound contract for synchronous document extraction.
type ExtractionService interface {
	ExtractPDF(ctx context.Context, filename string, data []byte) (*domain.ExtractionResult, error)
	ExtractExcel(ctx context.Context, filename string, data []byte) (*domain.ExtractionResult, error)
}

// JobService is the inbound contract for asynchronous extraction jobs.
type JobService interface {
	Submit(ctx context.Context, filename string, op domain.Operation, body io.Reader) (*domain.ExtractionJob, error)
	Get(ctx context.Context, id string) (*domain.ExtractionJob, error)
}

// JobProcessor runs a queued extraction job.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// SearchService is the inbound contract for work-item search.
type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
	GetByRateCode(ctx context.Context, language, rateCode string) (*domain.WorkItem, error)
	Collections(ctx context.Context) ([]domain.CollectionInfo, error)
}

// ReportService is the inbound contract for cost reports.
type ReportService interface {
	Generate(ctx context.Context, in domain.ReportInput) (*domain.Report, error)
	List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error)
	Get(ctx context.Context, id int64) (*domain.Report, error)
	Delete(ctx context.Context, id int64) error
	Download(ctx context.Context, id int64) (*domain.ReportArtifact, error)
}

// RecordService is the inbound contract for materials and projects.
type RecordService interface {
	ListMaterials(ctx context.Context, filter domain.MaterialFilter) ([]domain.Material, error)
	GetMaterial(ctx context.Context, id int64) (*domain.Material, error)
	CreateMaterial(ctx context.Context, m domain.Material) (*domain.Material, error)
	UpdateMaterial(ctx context.Context, id int64, patch domain.MaterialPatch) (*domain.Material, error)
	DeleteMaterial(ctx context.Context, id int64) error
	SearchMaterials(ctx context.Context, query string, limit int) ([]domain.Material, error)
	MaterialSummary(ctx context.Context) (*domain.MaterialSummary, error)

	ListProjects(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, error)
	GetProject(ctx context.Context, id int64) (*domain.Project, error)
	CreateProject(ctx context.Context, p domain.Project) (*domain.Project, error)
	UpdateProject(ctx context.Context, id int64, patch domain.ProjectPatch) (*domain.Project, error)
	DeleteProject(ctx context.Context, id int64) error
	ProjectStats(ctx context.Context) (*domain.ProjectStats, error)
}

// SettingsReader exposes the read-only VAT and regional settings.
type SettingsReader interface {
	VATRate() float64
	VATCountry() string
	DefaultRegion() string
	Regions() []catalog.Region
}
