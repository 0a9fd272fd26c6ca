package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/ports"
	"github.com/inimene84/cad2data-pipeline/internal/safejson"
)

const jobTTL = 24 * time.Hour

// jobStore keeps extraction jobs in the cache's jobs namespace.
type jobStore struct {
	cache ports.Cache
}

func (s jobStore) save(ctx context.Context, job *domain.ExtractionJob) error {
	raw, err := safejson.Marshal(job)
	if err != nil {
		return domain.WrapError(domain.ErrSerialization, "encode job", err)
	}
	s.cache.Set(ctx, ports.CacheNamespaceJobs, job.ID, raw, jobTTL)
	return nil
}

func (s jobStore) remove(ctx context.Context, id string) {
	s.cache.Delete(ctx, ports.CacheNamespaceJobs, id)
}

func (s jobStore) load(ctx context.Context, id string) (*domain.ExtractionJob, error) {
	raw, ok := s.cache.Get(ctx, ports.CacheNamespaceJobs, id)
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get job", fmt.Errorf("job %s not found", id))
	}
	var job domain.ExtractionJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, domain.WrapError(domain.ErrSerialization, "decode job", err)
	}
	return &job, nil
}
