package ports

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

// MaterialStore persists construction materials.
type MaterialStore interface {
	List(ctx context.Context, filter domain.MaterialFilter) ([]domain.Material, error)
	Get(ctx context.Context, id int64) (domain.Material, error)
	Create(ctx context.Context, m domain.Material) (domain.Material, error)
	// CreateBatch assigns contiguous ids in input order.
	CreateBatch(ctx context.Context, items []domain.Material) ([]domain.Material, error)
	Update(ctx context.Context, id int64, patch domain.MaterialPatch) (domain.Material, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, query string, limit int) ([]domain.Material, error)
	Summary(ctx context.Context) (domain.MaterialSummary, error)
	CountByProject(ctx context.Context) (map[int64]int, error)
}

// ProjectStore persists construction projects.
type ProjectStore interface {
	List(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, error)
	Get(ctx context.Context, id int64) (domain.Project, error)
	Create(ctx context.Context, p domain.Project) (domain.Project, error)
	Update(ctx context.Context, id int64, patch domain.ProjectPatch) (domain.Project, error)
	Delete(ctx context.Context, id int64) error
	// Stats leaves TotalMaterials to the caller, which owns material counts.
	Stats(ctx context.Context) (domain.ProjectStats, error)
}

// ReportStore persists generated reports.
type ReportStore interface {
	List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error)
	Get(ctx context.Context, id int64) (domain.Report, error)
	Create(ctx context.Context, r domain.Report) (domain.Report, error)
	Delete(ctx context.Context, id int64) error
}

// Cache namespaces.
const (
	CacheNamespaceExtraction = "extraction"
	CacheNamespaceJobs       = "jobs"
)

// Cache is a namespaced byte cache. Backend failures degrade to a miss.
type Cache interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, namespace, key string)
	ClearNamespace(ctx context.Context, namespace string) int
}

// Embedder builds query vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore searches the priced work-item corpus.
type VectorStore interface {
	Search(ctx context.Context, collection string, vector []float32, limit int, filter domain.WorkItemFilter) ([]domain.WorkItem, error)
	GetByRateCode(ctx context.Context, collection, rateCode string) (domain.WorkItem, error)
	CollectionInfo(ctx context.Context, collection string) (int64, string, error)
}

// PDFExtractor yields one result per page of a PDF document.
type PDFExtractor interface {
	Pages(ctx context.Context, data []byte) iter.Seq2[domain.PageResult, error]
}

// ExcelExtractor returns one result per worksheet of a workbook.
type ExcelExtractor interface {
	Sheets(ctx context.Context, data []byte) ([]domain.SheetResult, error)
}

// ObjectStorage stores uploaded documents for asynchronous jobs.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// JobQueue publishes and consumes extraction job ids.
type JobQueue interface {
	PublishJob(ctx context.Context, jobID string) error
	SubscribeJobs(ctx context.Context, handler func(context.Context, string) error) error
}

// ReportRenderer renders a report into a printable document.
type ReportRenderer interface {
	Render(report domain.Report) ([]byte, error)
}

// WorkerPool bounds concurrent CPU-heavy work; waiters are served FIFO.
type WorkerPool interface {
	Do(ctx context.Context, fn func() error) error
}

// ExtractionMetrics receives extraction measurements.
type ExtractionMetrics interface {
	RecordExtraction(operation, status string, seconds float64, materials int)
	RecordCacheHit(operation string)
}

// SearchMetrics receives work-item search outcomes.
type SearchMetrics interface {
	RecordSearch(language, status string)
}

// ReportMetrics receives report generation outcomes.
type ReportMetrics interface {
	RecordReport(reportType, status string)
}
