package main

import (
	"fmt"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/MacJediWizard/parkadmin/internal/subscription"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "history <tenant-id>",
		Short: "Show a tenant's subscription history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.History().GetPage(cmd.Context(), args[0], page, pageSize)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "DATE\tACTION\tPLAN\tPRICE\tSTART\tEND\tNOTES")
			for _, e := range result.Entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.UTC().Format("2006-01-02 15:04"),
					e.Action,
					orDash(e.PlanName),
					historyPrice(e),
					formatDate(e.StartDate),
					formatDate(e.EndDate),
					e.Notes,
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d of %d (%s entries)\n",
				result.Page, result.PageCount, formatCount(result.Total))
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", subscription.DefaultPageSize, "entries per page")

	return cmd
}

func historyPrice(e models.HistoryEntry) string {
	if !e.PlanPrice.Valid {
		return "-"
	}
	return formatMoney(e.PlanPrice.Decimal)
}

func newDashboardCmd(opts *globalOptions) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show subscription status counts and revenue",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			summary := svc.Summary(search)
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			out := cmd.OutOrStdout()
			tw := newTable(out)
			fmt.Fprintln(tw, "STATUS\tTENANTS")
			for _, cat := range models.StatusCategories() {
				fmt.Fprintf(tw, "%s\t%s\n", cat, formatCount(summary.Counts[cat]))
			}
			fmt.Fprintln(tw, "\t")
			fmt.Fprintln(tw, "REVENUE\tAMOUNT")
			fmt.Fprintf(tw, "total\t%s\n", formatMoney(summary.Financial.TotalRevenue))
			fmt.Fprintf(tw, "today\t%s\n", formatMoney(summary.Financial.TodayRevenue))
			fmt.Fprintf(tw, "last 7 days\t%s\n", formatMoney(summary.Financial.WeeklyRevenue))
			fmt.Fprintf(tw, "last 30 days\t%s\n", formatMoney(summary.Financial.MonthlyRevenue))
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%s tenants, %s plans\n", formatCount(summary.TenantCount), formatCount(summary.PlanCount))
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "restrict to tenants matching this text")

	return cmd
}
