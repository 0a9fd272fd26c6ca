// Package pdf extracts construction items from PDF pages, falling back to
// OCR when a page carries no usable text layer.
package pdf

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	pdfreader "github.com/ledongthuc/pdf"

	"github.com/inimene84/cad2data-pipeline/internal/core/catalog"
	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

const minTextLayerChars = 50

// PageOCR recognizes the text of one page of a PDF on disk.
type PageOCR interface {
	Page(ctx context.Context, pdfPath string, page int) (string, error)
}

type Extractor struct {
	catalog    *catalog.Catalog
	ocr        PageOCR
	scratchDir string
	logger     *slog.Logger
}

func NewExtractor(c *catalog.Catalog, ocr PageOCR, scratchDir string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{catalog: c, ocr: ocr, scratchDir: scratchDir, logger: logger}
}

// Pages lazily yields one result per page. The document is written to a
// temp file that is removed when iteration ends, including on early break.
// An unreadable document yields a single validation error.
func (e *Extractor) Pages(ctx context.Context, data []byte) iter.Seq2[domain.PageResult, error] {
	return func(yield func(domain.PageResult, error) bool) {
		if len(data) == 0 {
			yield(domain.PageResult{}, domain.WrapError(domain.ErrValidation, "pdf open", fmt.Errorf("empty document")))
			return
		}

		path, cleanup, err := e.writeTemp(data)
		if err != nil {
			yield(domain.PageResult{}, domain.WrapError(domain.ErrServer, "pdf scratch", err))
			return
		}
		defer cleanup()

		file, reader, err := openPDF(path)
		if err != nil {
			yield(domain.PageResult{}, domain.WrapError(domain.ErrValidation, "pdf open", err))
			return
		}
		defer file.Close()

		for page := 1; page <= reader.NumPage(); page++ {
			if ctx.Err() != nil {
				yield(domain.PageResult{}, domain.WrapError(domain.ErrTimeout, "pdf pages", ctx.Err()))
				return
			}
			if !yield(e.page(ctx, path, reader, page), nil) {
				return
			}
		}
	}
}

func (e *Extractor) writeTemp(data []byte) (string, func(), error) {
	if e.scratchDir != "" {
		if err := os.MkdirAll(e.scratchDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create scratch dir: %w", err)
		}
	}
	f, err := os.CreateTemp(e.scratchDir, "upload-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("pdf_temp_cleanup_failed", "path", path, "error", err)
		}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}

func openPDF(path string) (file *os.File, reader *pdfreader.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			if file != nil {
				file.Close()
			}
			file, reader, err = nil, nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	return pdfreader.Open(path)
}

func (e *Extractor) page(ctx context.Context, path string, reader *pdfreader.Reader, page int) domain.PageResult {
	result := domain.PageResult{
		Page:              page,
		Method:            domain.PageMethodText,
		Lines:             []string{},
		ConstructionItems: []domain.ExtractedItem{},
	}

	text, err := textLayer(reader, page)
	if err != nil {
		e.logger.Warn("extraction_page_text_failed", "page", page, "error", err)
	}

	if needsOCR(text) && e.ocr != nil {
		ocrText, err := e.ocr.Page(ctx, path, page)
		if err != nil {
			e.logger.Error("extraction_page_failed", "page", page, "method", "ocr", "error", err)
			result.Method = domain.PageMethodFailed
			return result
		}
		text = ocrText
		result.Method = domain.PageMethodOCR
	}

	result.Lines = SplitLines(text)
	result.ConstructionItems = ScanLines(e.catalog, result.Lines, page)
	return result
}

func textLayer(reader *pdfreader.Reader, page int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read page %d: %v", page, r)
		}
	}()
	p := reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

// needsOCR reports whether the trimmed text layer is too short to trust.
// Inner whitespace counts toward the length.
func needsOCR(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < minTextLayerChars
}
