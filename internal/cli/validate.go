package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/PriceImport/internal/core"
)

func newValidateCmd(a *app) *cobra.Command {
	flags := &importFlags{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a price file without touching the catalog",
		Long: `Runs the import as a dry run: the header and every row are validated and
grouped, nothing is looked up or written and no database is needed. Exits
non-zero when any row is invalid.`,
		Example: `  priceimport validate --file prices.csv
  priceimport validate --file prices.xlsx --scoped=false --errors-out errors.xlsx`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.apply(cmd, a)
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			req, err := flags.request(a, true)
			if err != nil {
				return err
			}

			// A dry run never reaches the repository.
			svc := core.NewService(nil, nil, a.cfg.Import)
			run, runErr := svc.RunImport(cmd.Context(), req)
			if err := finishRun(cmd, run, flags.errorsOut); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("validation failed: %s", core.FormatUserError(runErr))
			}
			if n := run.Summary.ErrorCount(); n > 0 {
				return fmt.Errorf("%w: %d problem(s)", ErrInvalidRows, n)
			}
			cmd.Println("File is valid")
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
