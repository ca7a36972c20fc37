package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gigledger/internal/core"
	"gigledger/internal/export"
	googleexport "gigledger/internal/export/google"
	"gigledger/internal/export/pdf"
	"gigledger/internal/limits"
)

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show totals, the tax estimate and free tier usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, false, func(ctx context.Context, app *App) error {
				st := app.Store
				snap := st.Snapshot()
				t := snap.Totals

				w := table(cmd)
				fmt.Fprintf(w, "Total income\t%s\n", t.TotalIncome)
				fmt.Fprintf(w, "Total expenses\t%s\n", t.TotalExpenses)
				fmt.Fprintf(w, "Net income\t%s\n", t.NetIncome())
				fmt.Fprintf(w, "Estimated taxes\t%s\n", t.EstimatedTaxes)
				if q, ok := st.QuarterlyTaxes(); ok {
					fmt.Fprintf(w, "Quarterly payment\t%s\n", q)
				} else {
					fmt.Fprintf(w, "Quarterly payment\t(premium)\n")
				}
				fmt.Fprintf(w, "Income this month\t%s\n", st.ThisMonthIncome())
				fmt.Fprintf(w, "Expenses this month\t%s\n", st.ThisMonthExpenses())
				fmt.Fprintf(w, "Pending invoices\t%s\n", st.PendingInvoicesTotal())

				plan := "free"
				if snap.IsPremium {
					plan = "premium"
				}
				fmt.Fprintf(w, "Plan\t%s\n", plan)
				if !snap.IsPremium {
					now := today()
					usage := []struct {
						label string
						f     limits.Feature
						n     int
					}{
						{"Gigs", limits.MaxGigs, len(snap.Gigs)},
						{"Clients", limits.MaxClients, len(snap.Clients)},
						{"Expenses this month", limits.MaxExpenses, core.CountExpensesInMonth(snap.Expenses, now)},
						{"Invoices this month", limits.MaxInvoicesPerMonth, core.CountInvoicesInMonth(snap.Invoices, now)},
						{"Savings goals", limits.MaxSavingsGoals, len(snap.SavingsGoals)},
					}
					policy := limits.Default()
					for _, u := range usage {
						if ceiling, ok := policy.Limit(u.f, false); ok {
							fmt.Fprintf(w, "%s\t%d/%d\n", u.label, u.n, ceiling)
						}
					}
				}
				return w.Flush()
			})
		},
	}
}

func newRefreshCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Replace local records with the remote copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, app *App) error {
				if !app.Config.Authenticated() {
					return fmt.Errorf("refresh needs a signed-in user (set USER_ID)")
				}
				if err := app.Store.Refresh(ctx); err != nil {
					return err
				}
				snap := app.Store.Snapshot()
				printf(cmd, "Refreshed %d gigs, %d expenses, %d clients, %d invoices, %d goals\n",
					len(snap.Gigs), len(snap.Expenses), len(snap.Clients), len(snap.Invoices), len(snap.SavingsGoals))
				return nil
			})
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var format, out, gigsSheet, expensesSheet string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export gigs and expenses to Google Sheets, CSV or PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "sheets", "csv", "pdf":
			default:
				return fmt.Errorf("unknown export format %q: want sheets, csv or pdf", format)
			}
			return opts.run(cmd, false, func(ctx context.Context, app *App) error {
				// Checked before opening any destination so free users get the upgrade hint.
				if !limits.Default().IsAvailable(limits.DataExport, app.Store.IsPremium()) {
					return ErrUpgradeRequired
				}

				var (
					exp    export.Exporter
					finish = func() error { return nil }
				)
				switch format {
				case "sheets":
					client, err := googleexport.New(ctx, googleexport.Config{
						SpreadsheetID:   app.Config.GoogleSpreadsheetID,
						CredentialsFile: app.Config.GoogleCredentialsFile,
						GigsSheet:       gigsSheet,
						ExpensesSheet:   expensesSheet,
					}, app.Logger)
					if err != nil {
						return fmt.Errorf("create exporter: %w", err)
					}
					exp = client
				default:
					w, closeOut, err := openOutput(cmd, out)
					if err != nil {
						return err
					}
					defer closeOut()
					if format == "csv" {
						exp = export.NewCSV(w)
					} else {
						report := pdf.New(w, today())
						exp, finish = report, report.Close
					}
				}

				if err := resultErr(app.Store.Export(ctx, exp)); err != nil {
					return err
				}
				if err := finish(); err != nil {
					return err
				}
				if out != "" || format == "sheets" {
					snap := app.Store.Snapshot()
					printf(cmd, "Exported %d gigs and %d expenses\n", len(snap.Gigs), len(snap.Expenses))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "sheets", "sheets, csv or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file for csv and pdf (default stdout)")
	cmd.Flags().StringVar(&gigsSheet, "gigs-sheet", googleexport.DefaultGigsSheet, "sheet receiving gig rows")
	cmd.Flags().StringVar(&expensesSheet, "expenses-sheet", googleexport.DefaultExpensesSheet, "sheet receiving expense rows")
	return cmd
}

// openOutput returns the named file, or the command's stdout when path is
// empty.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
