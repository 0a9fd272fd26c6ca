package pdf

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/go-pdf/fpdf"

	"github.com/inimene84/cad2data-pipeline/internal/core/catalog"
	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    []string
	ocrText  string
	failWith error
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	r.mu.Unlock()
	if r.failWith != nil {
		return nil, []byte("boom"), r.failWith
	}
	if name == "tesseract" {
		return []byte(r.ocrText), nil, nil
	}
	return nil, nil, nil
}

func renderPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 11)
	for _, text := range pages {
		doc.AddPage()
		if text != "" {
			doc.Text(20, 30, text)
		}
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	return buf.Bytes()
}

func collect(t *testing.T, e *Extractor, data []byte) []domain.PageResult {
	t.Helper()
	var pages []domain.PageResult
	for page, err := range e.Pages(context.Background(), data) {
		if err != nil {
			t.Fatalf("Pages() error = %v", err)
		}
		pages = append(pages, page)
	}
	return pages
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected scratch dir to be empty, found %d entries", len(entries))
	}
}

func TestPagesFallsBackToOCRForScannedPage(t *testing.T) {
	scratch := t.TempDir()
	runner := &fakeRunner{ocrText: "Concrete 12 m3\nok\n"}
	e := NewExtractor(catalog.Default(0.24, "EE"), NewOCR(runner, OCRConfig{}, scratch), scratch, nil)

	pages := collect(t, e, renderPDF(t, ""))
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	page := pages[0]
	if page.Method != domain.PageMethodOCR {
		t.Fatalf("expected ocr method, got %s", page.Method)
	}
	if len(page.ConstructionItems) != 1 {
		t.Fatalf("expected one item, got %+v", page.ConstructionItems)
	}
	item := page.ConstructionItems[0]
	if item.Material != "concrete" || item.QuantityValue() != 12 || item.SourcePage != 1 || item.Unit != "unit" {
		t.Fatalf("unexpected item %+v", item)
	}
	if len(page.Lines) != 1 {
		t.Fatalf("expected short line to be dropped, got %v", page.Lines)
	}
	if len(runner.calls) != 2 || !strings.Contains(runner.calls[0], "-f 1 -l 1") || !strings.Contains(runner.calls[1], "-l eng+est") {
		t.Fatalf("unexpected ocr invocations %v", runner.calls)
	}
	assertEmptyDir(t, scratch)
}

func TestPagesUsesTextLayerWhenPresent(t *testing.T) {
	scratch := t.TempDir()
	runner := &fakeRunner{}
	e := NewExtractor(catalog.Default(0.24, "EE"), NewOCR(runner, OCRConfig{}, scratch), scratch, nil)

	text := "Concrete foundation volume 24.5 m3 delivered to site by Rudus AS"
	pages := collect(t, e, renderPDF(t, text))
	if len(pages) != 1 || pages[0].Method != domain.PageMethodText {
		t.Fatalf("expected text layer page, got %+v", pages)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("expected no ocr calls, got %v", runner.calls)
	}
	items := pages[0].ConstructionItems
	if len(items) == 0 || items[0].Material != "concrete" || items[0].QuantityValue() != 24.5 {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestPagesOCRFailureYieldsEmptyPageAndContinues(t *testing.T) {
	scratch := t.TempDir()
	runner := &fakeRunner{failWith: errors.New("exit status 1")}
	e := NewExtractor(catalog.Default(0.24, "EE"), NewOCR(runner, OCRConfig{}, scratch), scratch, nil)

	pages := collect(t, e, renderPDF(t, "", ""))
	if len(pages) != 2 {
		t.Fatalf("expected both pages, got %d", len(pages))
	}
	for _, page := range pages {
		if page.Method != domain.PageMethodFailed || len(page.Lines) != 0 || len(page.ConstructionItems) != 0 {
			t.Fatalf("expected empty failed page, got %+v", page)
		}
	}
	assertEmptyDir(t, scratch)
}

func TestPagesRemovesTempFileOnEarlyBreak(t *testing.T) {
	scratch := t.TempDir()
	runner := &fakeRunner{ocrText: "Tellis 200 tk"}
	e := NewExtractor(catalog.Default(0.24, "EE"), NewOCR(runner, OCRConfig{}, scratch), scratch, nil)

	for range e.Pages(context.Background(), renderPDF(t, "", "", "")) {
		break
	}
	assertEmptyDir(t, scratch)
}

func TestPagesRejectsInvalidDocument(t *testing.T) {
	scratch := t.TempDir()
	e := NewExtractor(catalog.Default(0.24, "EE"), nil, scratch, nil)

	var gotErr error
	for _, err := range e.Pages(context.Background(), []byte("not a pdf")) {
		gotErr = err
	}
	if !domain.IsKind(gotErr, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", gotErr)
	}
	assertEmptyDir(t, scratch)
}

func TestScanLinesFirstKeywordAndNumber(t *testing.T) {
	c := catalog.Default(0.24, "EE")
	lines := SplitLines("  Betoon C30/37 vundament 14.5 m3 \nabc\nSeinad värvitud 3 kihti\nnothing relevant here")
	items := ScanLines(c, lines, 4)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %+v", items)
	}
	if items[0].Material != "betoon" || items[0].QuantityValue() != 30 {
		t.Fatalf("expected betoon with first number 30, got %+v", items[0])
	}
	if items[1].Material != "värv" {
		t.Fatalf("unexpected keyword %q", items[1].Material)
	}
	if items[1].SourcePage != 4 {
		t.Fatalf("expected page 4, got %d", items[1].SourcePage)
	}

	none := ScanLines(c, []string{"insulation layer"}, 1)
	if len(none) != 1 || none[0].Quantity != nil {
		t.Fatalf("expected item without quantity, got %+v", none)
	}
}

func TestNeedsOCRCountsTrimmedText(t *testing.T) {
	// 26 two-letter words joined by spaces: 52 runes, only 26 of them letters.
	spaced := strings.TrimSpace(strings.Repeat("ab ", 26))
	cases := []struct {
		text string
		want bool
	}{
		{"", true},
		{"   \n\t ", true},
		{"  " + strings.Repeat("x", minTextLayerChars-1) + "\n\n", true},
		{strings.Repeat("x", minTextLayerChars), false},
		{spaced, false},
	}
	for _, tc := range cases {
		if got := needsOCR(tc.text); got != tc.want {
			t.Fatalf("needsOCR(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
