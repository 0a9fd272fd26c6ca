package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inimene84/cad2data-pipeline/internal/bootstrap"
	"github.com/inimene84/cad2data-pipeline/internal/config"
	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/observability/logging"
	"github.com/inimene84/cad2data-pipeline/internal/safejson"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInvalid     = 2
	exitUnavailable = 3
)

var (
	errInvalidInput       = errors.New("invalid input")
	errBackendUnavailable = errors.New("backend unavailable")
)

type searchFlags struct {
	lang       string
	limit      int
	department string
	priceMin   float64
	priceMax   float64
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		logLevel string
		app      *bootstrap.App
		cfg      config.Config
	)

	root := &cobra.Command{
		Use:           "extract",
		Short:         "Extract construction materials from documents and search priced work items",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg = config.Load()
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}
			logger := logging.NewTextLogger(stderr, logLevel)
			var err error
			app, err = bootstrap.New(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return fmt.Errorf("%w: %w", errBackendUnavailable, err)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if app != nil {
				app.Close()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "pdf FILE",
		Short: "Extract construction items from a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			result, err := app.Extraction.ExtractPDF(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "excel FILE",
		Short: "Extract construction items from an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			result, err := app.Extraction.ExtractExcel(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	})

	var sf searchFlags
	search := &cobra.Command{
		Use:   "search QUERY",
		Short: "Semantic search over the priced work-item corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.EmbeddingAPIKey == "" {
				return fmt.Errorf("%w: EMBEDDING_API_KEY is not set", errBackendUnavailable)
			}
			req := domain.SearchRequest{
				Query:            args[0],
				Language:         sf.lang,
				Limit:            sf.limit,
				FilterDepartment: sf.department,
			}
			if cmd.Flags().Changed("price-min") {
				req.PriceMin = &sf.priceMin
			}
			if cmd.Flags().Changed("price-max") {
				req.PriceMax = &sf.priceMax
			}
			resp, err := app.Search.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	search.Flags().StringVar(&sf.lang, "lang", "en", "corpus language")
	search.Flags().IntVarP(&sf.limit, "limit", "n", 10, "maximum number of results (1-50)")
	search.Flags().StringVar(&sf.department, "department", "", "exact department filter")
	search.Flags().Float64Var(&sf.priceMin, "price-min", 0, "minimum median price")
	search.Flags().Float64Var(&sf.priceMax, "price-max", 0, "maximum median price")
	root.AddCommand(search)

	return root
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidInput, err)
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	raw, err := safejson.Marshal(v)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = w.Write(out.Bytes())
	return err
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errInvalidInput), domain.IsKind(err, domain.ErrValidation), domain.IsKind(err, domain.ErrNotFound):
		return exitInvalid
	case errors.Is(err, errBackendUnavailable), domain.IsKind(err, domain.ErrNetwork), domain.IsKind(err, domain.ErrTimeout):
		return exitUnavailable
	default:
		return exitFailure
	}
}
