package usecase

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

type pdfFake struct {
	pages []domain.PageResult
	err   error
	calls int
}

func (f *pdfFake) Pages(context.Context, []byte) iter.Seq2[domain.PageResult, error] {
	f.calls++
	return func(yield func(domain.PageResult, error) bool) {
		if f.err != nil {
			yield(domain.PageResult{}, f.err)
			return
		}
		for _, p := range f.pages {
			if !yield(p, nil) {
				return
			}
		}
	}
}

type excelFake struct {
	sheets []domain.SheetResult
	err    error
	calls  int
}

func (f *excelFake) Sheets(context.Context, []byte) ([]domain.SheetResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.SheetResult, len(f.sheets))
	copy(out, f.sheets)
	return out, nil
}

type inlinePool struct {
	err error
}

func (p inlinePool) Do(_ context.Context, fn func() error) error {
	if p.err != nil {
		return p.err
	}
	return fn()
}

type metricsFake struct {
	mu         sync.Mutex
	extraction []string
	cacheHits  []string
	searches   []string
	reports    []string
}

func (m *metricsFake) RecordExtraction(op, status string, _ float64, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extraction = append(m.extraction, op+":"+status)
}

func (m *metricsFake) RecordCacheHit(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits = append(m.cacheHits, op)
}

func (m *metricsFake) RecordSearch(lang, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, lang+":"+status)
}

func (m *metricsFake) RecordReport(t, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, t+":"+status)
}

// stepClock advances by step on every call.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

type embedderFake struct {
	vector []float32
	err    error
	query  string
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.query = text
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type vectorFake struct {
	hits       []domain.WorkItem
	err        error
	collection string
	limit      int
	filter     domain.WorkItemFilter
	items      map[string]domain.WorkItem
	infos      map[string]int64
}

func (f *vectorFake) Search(_ context.Context, collection string, _ []float32, limit int, filter domain.WorkItemFilter) ([]domain.WorkItem, error) {
	f.collection, f.limit, f.filter = collection, limit, filter
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *vectorFake) GetByRateCode(_ context.Context, collection, code string) (domain.WorkItem, error) {
	f.collection = collection
	item, ok := f.items[code]
	if !ok {
		return domain.WorkItem{}, domain.WrapError(domain.ErrNotFound, "scroll", errors.New("missing"))
	}
	return item, nil
}

func (f *vectorFake) CollectionInfo(_ context.Context, collection string) (int64, string, error) {
	count, ok := f.infos[collection]
	if !ok {
		return 0, "", domain.WrapError(domain.ErrNetwork, "info", errors.New("down"))
	}
	return count, "green", nil
}

type rendererFake struct {
	out []byte
	err error
}

func (f rendererFake) Render(domain.Report) ([]byte, error) {
	return f.out, f.err
}

func ptr[T any](v T) *T {
	return &v
}
