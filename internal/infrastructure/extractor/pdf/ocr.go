package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrOCRUnavailable is returned when the rasterizer or OCR engine binary is missing.
var ErrOCRUnavailable = errors.New("ocr engine unavailable")

// Runner lets tests replace the external pdftoppm and tesseract binaries.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type ExecRunner struct {
	Logger *slog.Logger
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if errors.Is(err, exec.ErrNotFound) {
		err = fmt.Errorf("%w: %s: %w", ErrOCRUnavailable, name, err)
	}
	if err != nil {
		logger.Error("ocr_exec_failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	} else {
		logger.Debug("ocr_exec_ok",
			"cmd", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

type OCRConfig struct {
	Pdftoppm  string
	Tesseract string
	Lang      string
	DPI       int
}

func (c OCRConfig) withDefaults() OCRConfig {
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Lang == "" {
		c.Lang = "eng+est"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	return c
}

// OCR rasterizes a single PDF page and runs tesseract over the image.
type OCR struct {
	runner     Runner
	cfg        OCRConfig
	scratchDir string
}

func NewOCR(runner Runner, cfg OCRConfig, scratchDir string) *OCR {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &OCR{runner: runner, cfg: cfg.withDefaults(), scratchDir: scratchDir}
}

func (o *OCR) Page(ctx context.Context, pdfPath string, page int) (string, error) {
	dir, err := os.MkdirTemp(o.scratchDir, "ocr-*")
	if err != nil {
		return "", fmt.Errorf("create ocr scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	p := strconv.Itoa(page)
	// pdftoppm -r <dpi> -f <p> -l <p> -singlefile -png <in.pdf> <dir/page>
	if _, errb, err := o.runner.Run(ctx, o.cfg.Pdftoppm,
		"-r", strconv.Itoa(o.cfg.DPI), "-f", p, "-l", p, "-singlefile", "-png", pdfPath, prefix,
	); err != nil {
		return "", fmt.Errorf("pdftoppm page %d: %w (%s)", page, err, truncate(string(errb), 512))
	}

	// tesseract <img> stdout -l <lang>
	out, errb, err := o.runner.Run(ctx, o.cfg.Tesseract, prefix+".png", "stdout", "-l", o.cfg.Lang)
	if err != nil {
		return "", fmt.Errorf("tesseract page %d: %w (%s)", page, err, truncate(string(errb), 512))
	}
	return string(out), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
