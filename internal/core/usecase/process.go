package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/ports"
)

// ProcessJobUseCase runs queued extraction jobs inside the worker.
type ProcessJobUseCase struct {
	jobs      jobStore
	storage   ports.ObjectStorage
	extractor ports.ExtractionService
	logger    *slog.Logger
	now       func() time.Time
}

func NewProcessJobUseCase(
	cacheStore ports.Cache,
	storage ports.ObjectStorage,
	extractor ports.ExtractionService,
	logger *slog.Logger,
) *ProcessJobUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessJobUseCase{
		jobs:      jobStore{cache: cacheStore},
		storage:   storage,
		extractor: extractor,
		logger:    logger,
		now:       time.Now,
	}
}

func (uc *ProcessJobUseCase) ProcessByID(ctx context.Context, jobID string) error {
	job, err := uc.jobs.load(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status != domain.JobStatusQueued {
		uc.logger.Info("job_redelivery_skipped", "job_id", job.ID, "status", job.Status)
		return nil
	}
	if err := uc.mark(ctx, job, domain.JobStatusProcessing, nil, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := uc.run(ctx, job)
	if err != nil {
		if failErr := uc.mark(ctx, job, domain.JobStatusFailed, nil, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.mark(ctx, job, domain.JobStatusCompleted, result, ""); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}
	if err := uc.storage.Delete(ctx, job.StoragePath); err != nil {
		uc.logger.Warn("job_upload_cleanup_failed", "job_id", job.ID, "error", err)
	}
	return nil
}

func (uc *ProcessJobUseCase) run(ctx context.Context, job *domain.ExtractionJob) (*domain.ExtractionResult, error) {
	rc, err := uc.storage.Open(ctx, job.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	switch job.Operation {
	case domain.OperationPDF:
		return uc.extractor.ExtractPDF(ctx, job.Filename, data)
	case domain.OperationExcel:
		return uc.extractor.ExtractExcel(ctx, job.Filename, data)
	default:
		return nil, domain.WrapError(domain.ErrValidation, "process job", fmt.Errorf("unsupported operation %q", job.Operation))
	}
}

func (uc *ProcessJobUseCase) mark(
	ctx context.Context,
	job *domain.ExtractionJob,
	status domain.JobStatus,
	result *domain.ExtractionResult,
	errMessage string,
) error {
	job.Status = status
	job.Result = result
	job.Error = errMessage
	job.UpdatedAt = uc.now().UTC()
	return uc.jobs.save(ctx, job)
}
