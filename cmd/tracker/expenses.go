package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tracker/internal/cli"
	"tracker/internal/core"
	"tracker/internal/services"
)

// withService opens the expense service for the duration of fn.
func withService(a *app, fn func(*services.ExpenseService) error) error {
	svc, err := cli.NewService(a.logger, a.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			a.logger.Warn("Failed to close expense service", "error", err)
		}
	}()
	return fn(svc)
}

func newAddCmd(a *app) *cobra.Command {
	var name, price, date string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" || price == "" {
				return errors.New("please enter both expense and price")
			}
			p, err := core.ParsePrice(price)
			if err != nil {
				return err
			}
			d, err := core.ParseDate(date)
			if err != nil {
				return err
			}

			return withService(a, func(svc *services.ExpenseService) error {
				e, err := svc.CreateExpense(cmd.Context(), core.Expense{Name: name, Price: p, Date: d})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added expense %d\n", e.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "expense name")
	cmd.Flags().StringVar(&price, "price", "", "price, e.g. 12.50")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		page, size     int
		from, to, name string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses page by page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := core.ListQuery{Page: page, PageSize: size, Name: name}
			var err error
			if q.From, err = core.ParseDate(from); err != nil {
				return err
			}
			if q.To, err = core.ParseDate(to); err != nil {
				return err
			}

			return withService(a, func(svc *services.ExpenseService) error {
				p, err := svc.ListExpenses(cmd.Context(), q)
				if err != nil {
					return err
				}
				return printPage(cmd.OutOrStdout(), p)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&size, "size", core.DefaultPageSize, "rows per page")
	cmd.Flags().StringVar(&from, "from", "", "first date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&name, "name", "", "name contains")
	return cmd
}

func printPage(out io.Writer, p core.Page) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEXPENSE\tPRICE\tDATE")
	for _, e := range p.Items {
		date := e.Date.String()
		if date == "" {
			date = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.Name, e.Price, date)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Total: %s\n", p.PageTotal)
	fmt.Fprintf(out, "Page %d of %d (%d expenses, all matching: %s)\n",
		p.Page, p.TotalPages, p.TotalItems, p.FilterTotal)
	return nil
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		name, price, date string
		clearDate         bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the name, price or date of an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}

			var patch core.ExpensePatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("price") {
				p, err := core.ParsePrice(price)
				if err != nil {
					return err
				}
				patch.Price = &p
			}
			switch {
			case clearDate:
				patch.Date = &core.Date{}
			case flags.Changed("date"):
				d, err := core.ParseDate(date)
				if err != nil {
					return err
				}
				patch.Date = &d
			}
			if patch.IsEmpty() {
				return errors.New("nothing to update: pass --name, --price, --date or --clear-date")
			}

			return withService(a, func(svc *services.ExpenseService) error {
				e, err := svc.UpdateExpense(cmd.Context(), id, patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated expense %d\n", e.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new expense name")
	cmd.Flags().StringVar(&price, "price", "", "new price")
	cmd.Flags().StringVar(&date, "date", "", "new date as YYYY-MM-DD")
	cmd.Flags().BoolVar(&clearDate, "clear-date", false, "remove the date")
	cmd.MarkFlagsMutuallyExclusive("date", "clear-date")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return withService(a, func(svc *services.ExpenseService) error {
				if err := svc.DeleteExpense(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted expense %d\n", id)
				return nil
			})
		},
	}
}
