package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/ports"
)

const maxStoredNameLen = 120

// SubmitJobUseCase stores an upload and announces it to the worker pool.
type SubmitJobUseCase struct {
	jobs    jobStore
	storage ports.ObjectStorage
	queue   ports.JobQueue
	now     func() time.Time
}

func NewSubmitJobUseCase(cacheStore ports.Cache, storage ports.ObjectStorage, queue ports.JobQueue) *SubmitJobUseCase {
	return &SubmitJobUseCase{
		jobs:    jobStore{cache: cacheStore},
		storage: storage,
		queue:   queue,
		now:     time.Now,
	}
}

// Submit registers a queued job. When the announcement cannot be published
// the upload and the job record are removed again, so a caller never sees a
// job that no worker will pick up.
func (uc *SubmitJobUseCase) Submit(ctx context.Context, filename string, op domain.Operation, body io.Reader) (*domain.ExtractionJob, error) {
	switch {
	case op != domain.OperationPDF && op != domain.OperationExcel:
		return nil, domain.WrapError(domain.ErrValidation, "submit job", fmt.Errorf("unsupported operation %q", op))
	case uc.queue == nil:
		return nil, domain.WrapError(domain.ErrServer, "submit job", errors.New("asynchronous extraction is disabled"))
	}

	created := uc.now().UTC()
	job := &domain.ExtractionJob{
		ID:        uuid.NewString(),
		Filename:  filename,
		Operation: op,
		Status:    domain.JobStatusQueued,
		CreatedAt: created,
		UpdatedAt: created,
	}
	job.StoragePath = job.ID + "_" + storedName(filename)

	if err := uc.storage.Save(ctx, job.StoragePath, body); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if err := uc.jobs.save(ctx, job); err != nil {
		uc.discard(ctx, job)
		return nil, err
	}
	if err := uc.queue.PublishJob(ctx, job.ID); err != nil {
		uc.discard(ctx, job)
		return nil, fmt.Errorf("announce job %s: %w", job.ID, err)
	}
	return job, nil
}

func (uc *SubmitJobUseCase) Get(ctx context.Context, id string) (*domain.ExtractionJob, error) {
	return uc.jobs.load(ctx, strings.TrimSpace(id))
}

func (uc *SubmitJobUseCase) discard(ctx context.Context, job *domain.ExtractionJob) {
	_ = uc.storage.Delete(ctx, job.StoragePath)
	uc.jobs.remove(ctx, job.ID)
}

var estonianFold = strings.NewReplacer(
	"ä", "a", "Ä", "A",
	"ö", "o", "Ö", "O",
	"õ", "o", "Õ", "O",
	"ü", "u", "Ü", "U",
	"š", "s", "Š", "S",
	"ž", "z", "Ž", "Z",
)

// storedName turns a client filename into a flat storage key suffix: the
// base name only, Estonian letters folded to ASCII, anything else outside
// [A-Za-z0-9._-] replaced by '_'.
func storedName(name string) string {
	base := estonianFold.Replace(filepath.Base(strings.ReplaceAll(name, `\`, "/")))

	var b strings.Builder
	for _, r := range base {
		if b.Len() >= maxStoredNameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if out := strings.TrimLeft(b.String(), "."); out != "" {
		return out
	}
	return "document.bin"
}
