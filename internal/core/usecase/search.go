package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/money"
	"github.com/inimene84/cad2data-pipeline/internal/core/ports"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
	DefaultLanguage    = "en"

	defaultExternalTimeout = 10 * time.Second
	collectionInfoWorkers  = 4
)

// SearchUseCase maps free-form construction queries onto priced work items.
type SearchUseCase struct {
	embedder    ports.Embedder
	vectors     ports.VectorStore
	collections map[string]string
	timeout     time.Duration
	metrics     ports.SearchMetrics
}

// NewSearchUseCase takes the language→collection table. A nil embedder makes
// every search fail with a server error.
func NewSearchUseCase(
	embedder ports.Embedder,
	vectors ports.VectorStore,
	collections map[string]string,
	timeout time.Duration,
	metrics ports.SearchMetrics,
) *SearchUseCase {
	if timeout <= 0 {
		timeout = defaultExternalTimeout
	}
	normalized := make(map[string]string, len(collections))
	for lang, name := range collections {
		normalized[strings.ToLower(strings.TrimSpace(lang))] = name
	}
	return &SearchUseCase{
		embedder:    embedder,
		vectors:     vectors,
		collections: normalized,
		timeout:     timeout,
		metrics:     metrics,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest) (resp *domain.SearchResponse, err error) {
	const op = "search work items"
	lang := normalizeLanguage(req.Language)
	defer func() { uc.record(lang, err) }()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrValidation, op, errors.New("query is required"))
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit < 1 || limit > MaxSearchLimit {
		return nil, domain.WrapError(domain.ErrValidation, op, fmt.Errorf("limit must be between 1 and %d", MaxSearchLimit))
	}
	if req.PriceMin != nil && req.PriceMax != nil && *req.PriceMin > *req.PriceMax {
		return nil, domain.WrapError(domain.ErrValidation, op, errors.New("price_min must not exceed price_max"))
	}
	collection, err := uc.collection(lang)
	if err != nil {
		return nil, err
	}
	if uc.embedder == nil {
		return nil, domain.WrapError(domain.ErrServer, op, errors.New("embedding provider not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	filter := domain.WorkItemFilter{
		Department: strings.TrimSpace(req.FilterDepartment),
		PriceMin:   req.PriceMin,
		PriceMax:   req.PriceMax,
	}
	hits, err := uc.vectors.Search(ctx, collection, vector, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]domain.WorkItem, 0, min(len(hits), limit))
	for _, hit := range hits {
		if len(results) == limit {
			break
		}
		if !satisfies(hit, filter) {
			continue
		}
		hit.Score = normalizeScore(hit.Score)
		results = append(results, hit)
	}
	return &domain.SearchResponse{
		Query:        query,
		Language:     lang,
		TotalResults: len(results),
		Results:      results,
	}, nil
}

func (uc *SearchUseCase) GetByRateCode(ctx context.Context, language, rateCode string) (*domain.WorkItem, error) {
	code := strings.TrimSpace(rateCode)
	if code == "" {
		return nil, domain.WrapError(domain.ErrValidation, "get work item", errors.New("rate code is required"))
	}
	collection, err := uc.collection(normalizeLanguage(language))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	item, err := uc.vectors.GetByRateCode(ctx, collection, code)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Collections reports the configured collections in language order. A
// collection that cannot be reached is listed with status "unavailable".
func (uc *SearchUseCase) Collections(ctx context.Context) ([]domain.CollectionInfo, error) {
	languages := make([]string, 0, len(uc.collections))
	for lang := range uc.collections {
		languages = append(languages, lang)
	}
	slices.Sort(languages)

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	out := make([]domain.CollectionInfo, len(languages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collectionInfoWorkers)
	for i, lang := range languages {
		g.Go(func() error {
			name := uc.collections[lang]
			info := domain.CollectionInfo{Language: lang, Collection: name, Status: "unavailable"}
			if count, status, err := uc.vectors.CollectionInfo(gctx, name); err == nil {
				info.PointsCount = count
				info.Status = status
			}
			out[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *SearchUseCase) collection(lang string) (string, error) {
	name, ok := uc.collections[lang]
	if !ok {
		return "", domain.WrapError(domain.ErrNotFound, "resolve collection", fmt.Errorf("language %q is not supported", lang))
	}
	return name, nil
}

func (uc *SearchUseCase) record(lang string, err error) {
	if uc.metrics == nil {
		return
	}
	if _, ok := uc.collections[lang]; !ok {
		lang = "unsupported"
	}
	status := "success"
	if err != nil {
		status = domain.KindOf(err)
	}
	uc.metrics.RecordSearch(lang, status)
}

func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

// normalizeScore rounds to four decimals and clamps into [0, 1].
func normalizeScore(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return money.RoundN(math.Min(math.Max(score, 0), 1), 4)
}

func satisfies(item domain.WorkItem, filter domain.WorkItemFilter) bool {
	if filter.Department != "" && item.Department != filter.Department {
		return false
	}
	if filter.PriceMin == nil && filter.PriceMax == nil {
		return true
	}
	if item.PriceMedian == nil {
		return false
	}
	if filter.PriceMin != nil && *item.PriceMedian < *filter.PriceMin {
		return false
	}
	if filter.PriceMax != nil && *item.PriceMedian > *filter.PriceMax {
		return false
	}
	return true
}
