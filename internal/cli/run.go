package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/PriceImport/internal/core"
	"github.com/JonMunkholm/PriceImport/internal/source"
	"github.com/JonMunkholm/PriceImport/internal/store"
)

// ErrInvalidRows is returned by validate when the file has row failures.
var ErrInvalidRows = errors.New("file has invalid rows")

// importFlags are shared by run and validate.
type importFlags struct {
	file            string
	format          string
	sheet           string
	behavior        string
	scoped          bool
	bunchSize       int
	strategy        string
	writeStyle      string
	maxErrors       int
	maxErrorPercent float64
	errorsOut       string
}

func (f *importFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "CSV or XLSX file to import (required)")
	cmd.Flags().StringVar(&f.format, "format", "", "csv or xlsx (default: from the file extension)")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "xlsx sheet name (default: first sheet)")
	cmd.Flags().StringVar(&f.behavior, "behavior", "", "append, replace or delete (default: IMPORT_BEHAVIOR)")
	cmd.Flags().BoolVar(&f.scoped, "scoped", true, "require store_id and write store-level prices (default: IMPORT_SCOPED)")
	cmd.Flags().IntVar(&f.bunchSize, "bunch-size", 0, "rows per bunch (default: IMPORT_BUNCH_SIZE)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "skip-errors or stop-on-error (default: IMPORT_VALIDATION_STRATEGY)")
	cmd.Flags().StringVar(&f.writeStyle, "write-style", "", "patch or save (default: IMPORT_WRITE_STYLE)")
	cmd.Flags().IntVar(&f.maxErrors, "max-errors", 0, "invalid rows tolerated before the rest is skipped (default: IMPORT_MAX_ERRORS)")
	cmd.Flags().Float64Var(&f.maxErrorPercent, "max-error-percent", 0, "invalid row share that ends the run (default: IMPORT_MAX_ERROR_PERCENT)")
	cmd.Flags().StringVar(&f.errorsOut, "errors-out", "", "write the row error report to this .csv or .xlsx file")
	_ = cmd.MarkFlagRequired("file")
}

// apply folds explicitly set flags over the configuration.
func (f *importFlags) apply(cmd *cobra.Command, a *app) {
	imp := &a.cfg.Import
	if f.behavior != "" {
		imp.Behavior = f.behavior
	}
	if cmd.Flags().Changed("scoped") {
		imp.Scoped = f.scoped
	}
	if f.bunchSize > 0 {
		imp.BunchSize = f.bunchSize
	}
	if f.strategy != "" {
		imp.ValidationStrategy = f.strategy
	}
	if f.writeStyle != "" {
		imp.WriteStyle = f.writeStyle
	}
	if cmd.Flags().Changed("max-errors") {
		imp.MaxErrors = f.maxErrors
	}
	if cmd.Flags().Changed("max-error-percent") {
		imp.MaxErrorPercent = f.maxErrorPercent
	}
}

// request opens the file named by the flags.
func (f *importFlags) request(a *app, dryRun bool) (core.ImportRequest, error) {
	imp := a.cfg.Import
	behavior, err := core.ParseBehavior(imp.Behavior)
	if err != nil {
		return core.ImportRequest{}, err
	}
	strategy := core.ValidationStrategy(strings.ToLower(imp.ValidationStrategy))
	if strategy != core.StrategySkipErrors && strategy != core.StrategyStopOnError {
		return core.ImportRequest{}, fmt.Errorf("unknown strategy %q (use skip-errors or stop-on-error)", imp.ValidationStrategy)
	}
	if _, err := core.ParseWriteStyle(imp.WriteStyle); err != nil {
		return core.ImportRequest{}, err
	}

	var format source.Format
	if f.format != "" {
		if format, err = source.ParseFormat(f.format); err != nil {
			return core.ImportRequest{}, err
		}
	}

	src, err := source.Open(f.file, source.Options{
		Format:    format,
		Columns:   core.Columns(imp.Scoped),
		BunchSize: imp.BunchSize,
		Sheet:     f.sheet,
	})
	if err != nil {
		return core.ImportRequest{}, err
	}

	return core.ImportRequest{
		FileName: filepath.Base(f.file),
		Source:   src,
		Cleanup:  src.Close,
		Behavior: behavior,
		Scoped:   imp.Scoped,
		DryRun:   dryRun,
		Policy:   core.PolicyFor(strategy, imp.MaxErrors, imp.MaxErrorPercent, imp.MinRowsForPercent),
	}, nil
}

func newRunCmd(a *app) *cobra.Command {
	flags := &importFlags{}
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import prices into the catalog",
		Long: `Streams the file in bunches, validates sku, price and (for scoped imports)
store_id, and updates the price of every product found. Rows with problems are
reported and skipped. The run is recorded in the import history.`,
		Example: `  priceimport run --file prices.csv
  priceimport run --file prices.xlsx --sheet Prices --bunch-size 1000 --errors-out errors.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.apply(cmd, a)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			if err := a.cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := cmd.Context()
			stores, err := store.Open(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			req, err := flags.request(a, dryRun)
			if err != nil {
				return err
			}

			svc := core.NewService(stores.Products, stores.History, a.cfg.Import)
			run, runErr := svc.RunImport(ctx, req)
			if err := finishRun(cmd, run, flags.errorsOut); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("import failed: %s", core.FormatUserError(runErr))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and group without writing")
	return cmd
}

// finishRun prints the summary and writes the error report when asked.
func finishRun(cmd *cobra.Command, run core.ImportRun, errorsOut string) error {
	printRun(cmd.OutOrStdout(), run)
	if errorsOut == "" || run.Summary == nil {
		return nil
	}
	n, err := writeErrorReport(errorsOut, *run.Summary)
	if err != nil {
		return err
	}
	cmd.Printf("Wrote %d report lines to %s\n", n, errorsOut)
	return nil
}
