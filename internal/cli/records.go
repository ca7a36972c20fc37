package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gigledger/internal/core"
	"gigledger/internal/store"
)

// dateFlag parses a YYYY-MM-DD flag value, defaulting to today.
func dateFlag(s string) (core.Date, error) {
	if s == "" {
		return core.DateOf(today()), nil
	}
	return core.ParseDate(s)
}

func amountArg(s string) (core.Money, error) {
	m, err := core.ParseAmount(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return m, nil
}

func table(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
}

func newGigCommand(opts *rootOptions) *cobra.Command {
	gigCmd := &cobra.Command{
		Use:   "gig",
		Short: "Manage gigs",
	}
	gigCmd.AddCommand(
		newGigAddCommand(opts),
		newGigListCommand(opts),
		newGigStatusCommand(opts),
		newGigDeleteCommand(opts),
	)
	return gigCmd
}

func newGigAddCommand(opts *rootOptions) *cobra.Command {
	var (
		platform, date, status, notes, clientID string
	)
	cmd := &cobra.Command{
		Use:   "add <title> <amount>",
		Short: "Record a gig",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := amountArg(args[1])
			if err != nil {
				return err
			}
			d, err := dateFlag(date)
			if err != nil {
				return err
			}
			gig := core.Gig{
				Title:    args[0],
				Platform: platform,
				Amount:   amount,
				Date:     d,
				Status:   core.GigStatus(status),
				Notes:    notes,
				ClientID: clientID,
			}
			return opts.run(cmd, true, func(ctx context.Context, app *App) error {
				added, res := app.Store.AddGig(ctx, gig)
				if err := resultErr(res); err != nil {
					return err
				}
				printf(cmd, "Added gig %s\n", added.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "", "platform the gig came from")
	cmd.Flags().StringVar(&date, "date", "", "gig date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&status, "status", string(core.GigPending), "pending, completed or disputed")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	return cmd
}

func newGigListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List gigs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, false, func(ctx context.Context, app *App) error {
				w := table(cmd)
				fmt.Fprintln(w, "ID\tDATE\tTITLE\tPLATFORM\tAMOUNT\tSTATUS")
				for _, g := range app.Store.Snapshot().Gigs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", g.ID, g.Date, g.Title, g.Platform, g.Amount, g.Status)
				}
				return w.Flush()
			})
		},
	}
}

func newGigStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <pending|completed|disputed>",
		Short: "Change the status of a gig",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := core.GigStatus(args[1])
			if !status.Valid() {
				return fmt.Errorf("%w: %q", core.ErrInvalidStatus, args[1])
			}
			return opts.run(cmd, true, func(ctx context.Context, app *App) error {
				gig, res := app.Store.UpdateGig(ctx, args[0], store.GigPatch{Status: &status})
				if err := resultErr(res); err != nil {
					return err
				}
				printf(cmd, "Gig %s is now %s\n", gig.ID, gig.Status)
				return nil
			})
		},
	}
}

func newGigDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a gig",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, app *App) error {
				if err := resultErr(app.Store.DeleteGig(ctx, args[0])); err != nil {
					return err
				}
				printf(cmd, "Deleted gig %s\n", args[0])
				return nil
			})
		},
	}
}

func newExpenseCommand(opts *rootOptions) *cobra.Command {
	expenseCmd := &cobra.Command{
		Use:   "expense",
		Short: "Manage expenses",
	}
	expenseCmd.AddCommand(
		newExpenseAddCommand(opts),
		newExpenseListCommand(opts),
		newExpenseDeleteCommand(opts),
	)
	return expenseCmd
}

func newExpenseAddCommand(opts *rootOptions) *cobra.Command {
	var (
		category, date, receipt, notes string
		deductible                     bool
	)
	cmd := &cobra.Command{
		Use:   "add <title> <amount>",
		Short: "Record an expense",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := amountArg(args[1])
			if err != nil {
				return err
			}
			d, err := dateFlag(date)
			if err != nil {
				return err
			}
			expense := core.Expense{
				Title:        args[0],
				Category:     category,
				Amount:       amount,
				Date:         d,
				IsDeductible: deductible,
				ReceiptURL:   receipt,
				Notes:        notes,
			}
			return opts.run(cmd, true, func(ctx context.Context, app *App) error {
				added, res := app.Store.AddExpense(ctx, expense)
				if err := resultErr(res); err != nil {
					return err
				}
				printf(cmd, "Added expense %s\n", added.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "other", "expense category")
	cmd.Flags().StringVar(&date, "date", "", "expense date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&deductible, "deductible", false, "the expense is tax deductible")
	cmd.Flags().StringVar(&receipt, "receipt", "", "receipt URL")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func newExpenseListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, false, func(ctx context.Context, app *App) error {
				w := table(cmd)
				fmt.Fprintln(w, "ID\tDATE\tTITLE\tCATEGORY\tAMOUNT\tDEDUCTIBLE")
				for _, e := range app.Store.Snapshot().Expenses {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", e.ID, e.Date, e.Title, e.Category, e.Amount, e.IsDeductible)
				}
				return w.Flush()
			})
		},
	}
}

func newExpenseDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, app *App) error {
				if err := resultErr(app.Store.DeleteExpense(ctx, args[0])); err != nil {
					return err
				}
				printf(cmd, "Deleted expense %s\n", args[0])
				return nil
			})
		},
	}
}

func newClientCommand(opts *rootOptions) *cobra.Command {
	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Manage clients",
	}

	var email, phone string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Record a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := core.Client{Name: args[0], Email: email, Phone: phone}
			return opts.run(cmd, true, func(ctx context.Context, app *App) error {
				added, res := app.Store.AddClient(ctx, client)
				if err := resultErr(res); err != nil {
					return err
				}
				printf(cmd, "Added client %s\n", added.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&email, "email", "", "contact email")
	addCmd.Flags().StringVar(&phone, "phone", "", "contact phone")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List clients with their earnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, false, func(ctx context.Context, app *App) error {
				w := table(cmd)
				fmt.Fprintln(w, "ID\tNAME\tGIGS\tEARNED")
				for _, c := range app.Store.Snapshot().Clients {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.ID, c.Name, c.GigsCount, c.TotalEarned)
				}
				return w.Flush()
			})
		},
	}

	clientCmd.AddCommand(addCmd, listCmd)
	return clientCmd
}

// parseItem parses "description=amount".
func parseItem(s string) (core.LineItem, error) {
	desc, amount, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(desc) == "" {
		return core.LineItem{}, fmt.Errorf("invalid line item %q: want description=amount", s)
	}
	m, err := amountArg(amount)
	if err != nil {
		return core.LineItem{}, err
	}
	return core.LineItem{Description: strings.TrimSpace(desc), Amount: m}, nil
}

func newInvoiceCommand(opts *rootOptions) *cobra.Command {
	invoiceCmd := &cobra.Command{
		Use:   "invoice",
		Short: "Manage invoices",
	}

	var (
		due, status string
		items       []string
	)
	createCmd := &cobra.Command{
		Use:   "create <client-id>",
		Short: "Create an invoice for a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv := core.Invoice{ClientID: args[0], Status: core.InvoiceStatus(status)}
			for _, raw := range items {
				item, err := parseItem(raw)
				if err != nil {
					return err
				}
				inv.Items = append(inv.Items, item)
				inv.Amount = inv.Amount.Add(item.Amount)
			}
			d, err := dateFlag(due)
			if err != nil {
				return err
			}
			inv.DueDate = d

			return opts.run(cmd, true, func(ctx context.Context, app *App) error {
				for _, c := range app.Store.Snapshot().Clients {
					if c.ID == inv.ClientID {
						inv.ClientName = c.Name
						break
					}
				}
				if inv.ClientName == "" {
					return fmt.Errorf("unknown client %s", inv.ClientID)
				}
				created, res := app.Store.CreateInvoice(ctx, inv)
				if err := resultErr(res); err != nil {
					return err
				}
				printf(cmd, "Created invoice %s for %s (%s)\n", created.ID, created.ClientName, created.Amount)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD, default today)")
	createCmd.Flags().StringVar(&status, "status", string(core.InvoiceDraft), "draft, sent, paid or overdue")
	createCmd.Flags().StringArrayVar(&items, "item", nil, "line item as description=amount (repeatable)")

	statusCmd := &cobra.Command{
		Use:   "status <id> <draft|sent|paid|overdue>",
		Short: "Change the status of an invoice",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, app *App) error {
				inv, res := app.Store.UpdateInvoiceStatus(ctx, args[0], core.InvoiceStatus(args[1]))
				if err := resultErr(res); err != nil {
					return err
				}
				printf(cmd, "Invoice %s is now %s\n", inv.ID, inv.Status)
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, false, func(ctx context.Context, app *App) error {
				w := table(cmd)
				fmt.Fprintln(w, "ID\tCLIENT\tAMOUNT\tSTATUS\tDUE")
				for _, inv := range app.Store.Snapshot().Invoices {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", inv.ID, inv.ClientName, inv.Amount, inv.Status, inv.DueDate)
				}
				return w.Flush()
			})
		},
	}

	invoiceCmd.AddCommand(createCmd, statusCmd, listCmd)
	return invoiceCmd
}

func newGoalCommand(opts *rootOptions) *cobra.Command {
	goalCmd := &cobra.Command{
		Use:   "goal",
		Short: "Manage savings goals",
	}

	var deadline, goalType string
	addCmd := &cobra.Command{
		Use:   "add <name> <target>",
		Short: "Create a savings goal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := amountArg(args[1])
			if err != nil {
				return err
			}
			goal := core.SavingsGoal{Name: args[0], TargetAmount: target, Type: core.GoalType(goalType)}
			if deadline != "" {
				d, err := core.ParseDate(deadline)
				if err != nil {
					return err
				}
				goal.Deadline = &d
			}
			return opts.run(cmd, true, func(ctx context.Context, app *App) error {
				added, res := app.Store.AddSavingsGoal(ctx, goal)
				if err := resultErr(res); err != nil {
					return err
				}
				printf(cmd, "Added goal %s\n", added.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&deadline, "deadline", "", "target date (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&goalType, "type", string(core.GoalCustom), "taxes, emergency or custom")

	contributeCmd := &cobra.Command{
		Use:   "contribute <id> <amount>",
		Short: "Add savings to a goal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := amountArg(args[1])
			if err != nil {
				return err
			}
			return opts.run(cmd, true, func(ctx context.Context, app *App) error {
				goal, res := app.Store.ContributeToSavings(ctx, args[0], amount)
				if err := resultErr(res); err != nil {
					return err
				}
				if goal.ID == "" {
					printf(cmd, "No goal %s, nothing saved\n", args[0])
					return nil
				}
				printf(cmd, "Goal %s: %s of %s\n", goal.Name, goal.CurrentAmount, goal.TargetAmount)
				return nil
			})
		},
	}

	goalCmd.AddCommand(addCmd, contributeCmd)
	return goalCmd
}
