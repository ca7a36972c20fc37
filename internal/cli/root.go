package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gigledger/internal/store"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	envFile string
	logOut  io.Writer
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{logOut: os.Stderr}

	rootCmd := &cobra.Command{
		Use:     "gigledger",
		Short:   "Income, expense and tax tracking for gig workers",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load environment from this file instead of ./.env")

	rootCmd.AddCommand(
		newGigCommand(opts),
		newExpenseCommand(opts),
		newClientCommand(opts),
		newInvoiceCommand(opts),
		newGoalCommand(opts),
		newSummaryCommand(opts),
		newRefreshCommand(opts),
		newExportCommand(opts),
		newWatchCommand(opts),
	)
	return rootCmd
}

// open loads configuration and bootstraps the application.
func (o *rootOptions) open(ctx context.Context) (*App, error) {
	if err := LoadEnvFile(o.envFile); err != nil {
		return nil, err
	}
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg, o.logOut)
	return Bootstrap(ctx, cfg, logger)
}

// run bootstraps the application, runs fn and, when persist is set, writes
// the resulting state back to the local cache before closing.
func (o *rootOptions) run(cmd *cobra.Command, persist bool, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	runErr := fn(ctx, app)
	if persist {
		if err := app.Persist(context.WithoutCancel(ctx)); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

// ErrUpgradeRequired is returned by commands blocked by the free tier.
var ErrUpgradeRequired = errors.New("free tier limit reached, upgrade to premium to continue")

func resultErr(res store.Result) error {
	switch {
	case res.RequiresUpgrade:
		return ErrUpgradeRequired
	case !res.Success:
		if res.Err != nil {
			return res.Err
		}
		return errors.New("operation failed")
	default:
		return nil
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

// today is overridable in tests.
var today = func() time.Time { return time.Now().UTC() }
