package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/config"
	"github.com/inimene84/cad2data-pipeline/internal/core/cad"
	"github.com/inimene84/cad2data-pipeline/internal/core/catalog"
	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/ports"
	"github.com/inimene84/cad2data-pipeline/internal/core/usecase"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/cache"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/embedding"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/extractor/excel"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/extractor/pdf"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/queue/nats"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/render/pdfreport"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/repository/memory"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/repository/postgres"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/resilience"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/storage/localfs"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/vector/qdrant"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/workerpool"
	"github.com/inimene84/cad2data-pipeline/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Catalog *catalog.Catalog

	// Queue is nil when NATS_URL is not set.
	Queue *nats.Queue

	Extraction *usecase.ExtractionUseCase
	Jobs       *usecase.SubmitJobUseCase
	Processor  *usecase.ProcessJobUseCase
	Search     *usecase.SearchUseCase
	Reports    *usecase.ReportUseCase
	Records    *usecase.RecordsUseCase

	closeFns []func()
}

type stores struct {
	materials ports.MaterialStore
	projects  ports.ProjectStore
	reports   ports.ReportStore
}

// New wires the application. pipeline may be nil, in which case no domain
// metrics are recorded.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, pipeline *metrics.PipelineMetrics) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg}

	c, err := catalog.Load(cfg.CatalogPath, cfg.VATRate, cfg.VATCountry)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if err := c.UseDefaultRegion(cfg.DefaultRegion); err != nil {
		return nil, fmt.Errorf("default region: %w", err)
	}
	app.Catalog = c

	resCfg := resilience.DefaultConfig()
	resCfg.Breaker.Enabled = cfg.CircuitBreakerEnabled
	executor := resilience.NewExecutor(resCfg)

	st, err := app.openStores(ctx, cfg, c, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	cacheStore := app.openCache(ctx, cfg, logger)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var (
		jobQueue          ports.JobQueue
		extractionMetrics ports.ExtractionMetrics
		searchMetrics     ports.SearchMetrics
		reportMetrics     ports.ReportMetrics
		poolObserver      workerpool.WaitObserver
	)
	if pipeline != nil {
		extractionMetrics, searchMetrics, reportMetrics, poolObserver = pipeline, pipeline, pipeline, pipeline
	}
	if cfg.NATSURL != "" {
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closeFns = append(app.closeFns, queue.Close)
		jobQueue = queue
	}

	ocr := pdf.NewOCR(nil, pdf.OCRConfig{
		Pdftoppm:  cfg.OCRPdftoppm,
		Tesseract: cfg.OCRTesseract,
		Lang:      cfg.OCRLang,
		DPI:       cfg.OCRDPI,
	}, cfg.ScratchDir)
	pdfExtractor := pdf.NewExtractor(c, ocr, cfg.ScratchDir, logger)
	excelExtractor := excel.NewExtractor(logger)
	pool := workerpool.New(cfg.ExtractionWorkers, poolObserver)
	logger.Info("extraction_pool", "workers", pool.Size())

	app.Extraction = usecase.NewExtractionUseCase(
		pdfExtractor,
		excelExtractor,
		cad.NewAggregator(c),
		st.materials,
		cacheStore,
		pool,
		usecase.ExtractionOptions{
			ExcelCacheTTL: time.Duration(cfg.CacheTTLExcelSeconds) * time.Second,
			PDFCacheTTL:   time.Duration(cfg.CacheTTLPDFSeconds) * time.Second,
			Metrics:       extractionMetrics,
			Logger:        logger,
		},
	)
	app.Jobs = usecase.NewSubmitJobUseCase(cacheStore, storage, jobQueue)
	app.Processor = usecase.NewProcessJobUseCase(cacheStore, storage, app.Extraction, logger)

	timeout := time.Duration(cfg.ExternalTimeoutSeconds) * time.Second
	var embedder ports.Embedder
	if cfg.EmbeddingAPIKey != "" {
		client := embedding.New(cfg.EmbeddingURL, cfg.EmbeddingModel, cfg.EmbeddingAPIKey, timeout, executor)
		logger.Info("embedding_enabled", "model", client.Model())
		embedder = client
	} else {
		logger.Warn("embedding_disabled", "reason", "EMBEDDING_API_KEY is not set")
	}
	vectors := qdrant.New(cfg.QdrantURL, timeout, executor)
	app.Search = usecase.NewSearchUseCase(embedder, vectors, cfg.VectorCollections, timeout, searchMetrics)

	app.Reports = usecase.NewReportUseCase(st.reports, st.materials, c, pdfreport.New(), reportMetrics, logger)
	app.Records = usecase.NewRecordsUseCase(st.materials, st.projects)

	return app, nil
}

func (a *App) openStores(ctx context.Context, cfg config.Config, c *catalog.Catalog, logger *slog.Logger) (stores, error) {
	var seed []domain.Material
	if cfg.SeedMaterials {
		seed = c.SeedMaterials(time.Now().UTC())
	}

	if cfg.PostgresDSN == "" {
		logger.Info("store_backend", "backend", "memory", "seeded", len(seed))
		return stores{
			materials: memory.NewMaterialStore(seed),
			projects:  memory.NewProjectStore(),
			reports:   memory.NewReportStore(),
		}, nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return stores{}, fmt.Errorf("open postgres: %w", err)
	}
	a.closeFns = append(a.closeFns, func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db, seed); err != nil {
		return stores{}, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("store_backend", "backend", "postgres")
	return postgresStores(db), nil
}

func postgresStores(db *sql.DB) stores {
	return stores{
		materials: postgres.NewMaterialRepository(db),
		projects:  postgres.NewProjectRepository(db),
		reports:   postgres.NewReportRepository(db),
	}
}

// openCache prefers Redis. An unreachable Redis is kept: every operation
// degrades to a miss until it comes back.
func (a *App) openCache(ctx context.Context, cfg config.Config, logger *slog.Logger) ports.Cache {
	if cfg.RedisHost == "" {
		return cache.NewMemory()
	}
	rdb := cache.NewRedisClient(cache.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	redisCache := cache.NewRedis(rdb, logger)
	a.closeFns = append(a.closeFns, func() { _ = redisCache.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redisCache.Ping(pingCtx); err != nil {
		logger.Warn("redis_unreachable", "host", cfg.RedisHost, "error", err)
	}
	return redisCache
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
