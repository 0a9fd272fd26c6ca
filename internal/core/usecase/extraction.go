package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/cad"
	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/ports"
	"github.com/inimene84/cad2data-pipeline/internal/safejson"
)

const (
	DefaultExcelCacheTTL = 2 * time.Hour
	DefaultPDFCacheTTL   = time.Hour
)

type ExtractionOptions struct {
	ExcelCacheTTL time.Duration
	PDFCacheTTL   time.Duration
	Metrics       ports.ExtractionMetrics
	Logger        *slog.Logger
}

// ExtractionUseCase turns uploaded documents into extracted items and
// persisted materials. Results are cached by content hash.
type ExtractionUseCase struct {
	pdf        ports.PDFExtractor
	excel      ports.ExcelExtractor
	aggregator *cad.Aggregator
	materials  ports.MaterialStore
	cache      ports.Cache
	pool       ports.WorkerPool
	metrics    ports.ExtractionMetrics
	logger     *slog.Logger
	excelTTL   time.Duration
	pdfTTL     time.Duration
	now        func() time.Time
}

func NewExtractionUseCase(
	pdf ports.PDFExtractor,
	excel ports.ExcelExtractor,
	aggregator *cad.Aggregator,
	materials ports.MaterialStore,
	cacheStore ports.Cache,
	pool ports.WorkerPool,
	opts ExtractionOptions,
) *ExtractionUseCase {
	uc := &ExtractionUseCase{
		pdf:        pdf,
		excel:      excel,
		aggregator: aggregator,
		materials:  materials,
		cache:      cacheStore,
		pool:       pool,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		excelTTL:   opts.ExcelCacheTTL,
		pdfTTL:     opts.PDFCacheTTL,
		now:        time.Now,
	}
	if uc.logger == nil {
		uc.logger = slog.Default()
	}
	if uc.excelTTL <= 0 {
		uc.excelTTL = DefaultExcelCacheTTL
	}
	if uc.pdfTTL <= 0 {
		uc.pdfTTL = DefaultPDFCacheTTL
	}
	return uc
}

func (uc *ExtractionUseCase) ExtractPDF(ctx context.Context, filename string, data []byte) (*domain.ExtractionResult, error) {
	return uc.extract(ctx, domain.OperationPDF, filename, data, uc.pdfTTL, uc.runPDF)
}

func (uc *ExtractionUseCase) ExtractExcel(ctx context.Context, filename string, data []byte) (*domain.ExtractionResult, error) {
	return uc.extract(ctx, domain.OperationExcel, filename, data, uc.excelTTL, uc.runExcel)
}

type extractFunc func(ctx context.Context, data []byte, result *domain.ExtractionResult) error

func (uc *ExtractionUseCase) extract(
	ctx context.Context,
	op domain.Operation,
	filename string,
	data []byte,
	ttl time.Duration,
	run extractFunc,
) (*domain.ExtractionResult, error) {
	opName := "extract " + string(op)
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrValidation, opName, errors.New("empty upload"))
	}

	started := uc.now()
	key := ContentKey(data, op)
	if cached, ok := uc.fromCache(ctx, key); ok {
		cached.Cached = true
		cached.ProcessingTimeSeconds = uc.now().Sub(started).Seconds()
		uc.recordCacheHit(op, cached)
		return cached, nil
	}

	result := &domain.ExtractionResult{
		Filename:       filename,
		Operation:      op,
		ExtractedItems: []domain.ExtractedItem{},
	}
	err := uc.pool.Do(ctx, func() error {
		return run(ctx, data, result)
	})
	if err != nil {
		uc.record(op, "error", uc.now().Sub(started).Seconds(), 0)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, domain.WrapError(domain.ErrTimeout, opName, err)
		}
		return nil, err
	}

	uc.persist(ctx, filename, result)
	result.ProcessedAt = uc.now().UTC()
	result.ProcessingTimeSeconds = uc.now().Sub(started).Seconds()

	if raw, err := safejson.Marshal(result); err != nil {
		uc.logger.Warn("extraction_cache_encode_failed", "operation", op, "error", err)
	} else {
		uc.cache.Set(ctx, ports.CacheNamespaceExtraction, key, raw, ttl)
	}
	uc.record(op, "success", result.ProcessingTimeSeconds, len(result.ExtractedItems))
	return result, nil
}

func (uc *ExtractionUseCase) fromCache(ctx context.Context, key string) (*domain.ExtractionResult, bool) {
	raw, ok := uc.cache.Get(ctx, ports.CacheNamespaceExtraction, key)
	if !ok {
		return nil, false
	}
	var result domain.ExtractionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		uc.logger.Warn("extraction_cache_decode_failed", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

func (uc *ExtractionUseCase) runPDF(ctx context.Context, data []byte, result *domain.ExtractionResult) error {
	result.Pages = []domain.PageResult{}
	for page, err := range uc.pdf.Pages(ctx, data) {
		if err != nil {
			return err
		}
		result.Pages = append(result.Pages, page)
		result.ExtractedItems = append(result.ExtractedItems, page.ConstructionItems...)
	}
	return nil
}

func (uc *ExtractionUseCase) runExcel(ctx context.Context, data []byte, result *domain.ExtractionResult) error {
	sheets, err := uc.excel.Sheets(ctx, data)
	if err != nil {
		return err
	}
	result.SheetsData = make(map[string]domain.SheetResult, len(sheets))
	result.SheetOrder = make([]string, 0, len(sheets))
	for _, sheet := range sheets {
		if cad.ShouldAggregate(sheet.ExtractedItems) {
			agg := uc.aggregator.Aggregate(sheet.ExtractedItems)
			sheet.ExtractedItems = agg.Items
			sheet.Aggregated = true
			sheet.Warnings = append(sheet.Warnings, agg.Warnings...)
		}
		for _, warning := range sheet.Warnings {
			uc.logger.Warn("extraction_sheet_warning", "sheet", sheet.SheetName, "warning", warning)
		}
		result.SheetsData[sheet.SheetName] = sheet
		result.SheetOrder = append(result.SheetOrder, sheet.SheetName)
		result.ExtractedItems = append(result.ExtractedItems, sheet.ExtractedItems...)
	}
	return nil
}

// persist stores every valid item as a material. Invalid items are logged and
// skipped; a store failure is logged and leaves materials_saved at zero.
func (uc *ExtractionUseCase) persist(ctx context.Context, filename string, result *domain.ExtractionResult) {
	now := uc.now().UTC()
	batch := make([]domain.Material, 0, len(result.ExtractedItems))
	for i, item := range result.ExtractedItems {
		m := MaterialFromItem(item, filename, now)
		if err := domain.ValidateMaterial(m); err != nil {
			uc.logger.Warn("extraction_item_skipped", "filename", filename, "index", i, "material", item.Material, "error", err)
			continue
		}
		batch = append(batch, m)
	}
	if len(batch) == 0 {
		return
	}
	saved, err := uc.materials.CreateBatch(ctx, batch)
	if err != nil {
		uc.logger.Error("extraction_persist_failed", "filename", filename, "items", len(batch), "error", err)
		return
	}
	result.MaterialsSaved = len(saved)
	result.MaterialIDs = make([]int64, 0, len(saved))
	for _, m := range saved {
		result.MaterialIDs = append(result.MaterialIDs, m.ID)
	}
}

// MaterialFromItem maps an extracted item onto a material. Aggregated CAD
// items carry the line total in UnitPrice, so the per-unit UnitCost is stored.
func MaterialFromItem(item domain.ExtractedItem, filename string, now time.Time) domain.Material {
	price := item.UnitPrice
	if item.ElementCount > 0 && item.UnitCost > 0 {
		price = item.UnitCost
	}
	category := item.Category
	if category == "" {
		category = domain.CategoryExtracted
	}
	source := filename
	return domain.Material{
		Name:       item.Material,
		Quantity:   item.QuantityValue(),
		Unit:       item.Unit,
		Price:      price,
		Category:   category,
		SourceFile: &source,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (uc *ExtractionUseCase) record(op domain.Operation, status string, seconds float64, materials int) {
	if uc.metrics != nil {
		uc.metrics.RecordExtraction(string(op), status, seconds, materials)
	}
}

func (uc *ExtractionUseCase) recordCacheHit(op domain.Operation, result *domain.ExtractionResult) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.RecordCacheHit(string(op))
	uc.metrics.RecordExtraction(string(op), "cached", result.ProcessingTimeSeconds, len(result.ExtractedItems))
}

// ContentKey identifies an upload by content and operation: md5hex(data):op.
func ContentKey(data []byte, op domain.Operation) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]) + ":" + string(op)
}
