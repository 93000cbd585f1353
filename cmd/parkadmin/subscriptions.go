package main

import (
	"fmt"
	"io"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/MacJediWizard/parkadmin/internal/subscription"
	"github.com/spf13/cobra"
)

func newSubscriptionsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"subs"},
		Short:   "View and change tenant subscriptions",
	}

	cmd.AddCommand(
		newSubscriptionsListCmd(opts),
		newAssignCmd(opts),
		newExtendCmd(opts),
		newChangePlanCmd(opts),
		newUnassignCmd(opts),
	)

	return cmd
}

func newSubscriptionsListCmd(opts *globalOptions) *cobra.Command {
	var (
		search   string
		page     int
		pageSize int
		sortBy   string
		desc     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tenant subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			field := subscription.SortField(sortBy)
			if !field.IsValid() {
				return fmt.Errorf("invalid sort field %q", sortBy)
			}

			if !cmd.Flags().Changed("page-size") {
				if cfg, _, err := opts.loadConfig(); err == nil && cfg.PageSize > 0 {
					pageSize = cfg.PageSize
				}
			}

			svc, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			view := svc.View(subscription.Query{
				Search:   search,
				Page:     page,
				PageSize: pageSize,
				SortBy:   field,
				Desc:     desc,
			})
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), view)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "TENANT\tCOMPANY\tEMAIL\tPLAN\tPRICE\tSTART\tEND\tDAYS\tSTATUS")
			for _, row := range view.Items {
				printRow(tw, row)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d of %d (%s matching, %s total)\n",
				view.Page, view.PageCount, formatCount(view.FilteredCount), formatCount(view.TotalCount))
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "filter by company, contact, or email")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", subscription.DefaultPageSize, "rows per page")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort by company_name, contact_name, email, start_date, end_date, or days_remaining")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")

	return cmd
}

func newAssignCmd(opts *globalOptions) *cobra.Command {
	var (
		planID string
		days   int
	)

	cmd := &cobra.Command{
		Use:   "assign <tenant-id>",
		Short: "Assign a plan to a tenant",
		Long: `Assign a plan to a tenant. The window starts now and lasts --days,
or the plan's duration when --days is omitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			state, err := svc.Coordinator().Assign(cmd.Context(), args[0], planID, days)
			return reportMutation(cmd, opts, svc, args[0], state, err)
		},
	}

	cmd.Flags().StringVar(&planID, "plan", "", "plan ID (required)")
	cmd.Flags().IntVar(&days, "days", 0, "window length in days (default: plan duration)")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func newExtendCmd(opts *globalOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "extend <tenant-id>",
		Short: "Restart a tenant's window for a number of days from now",
		Long: `Restart a tenant's window at now and end it --days later. The previous
end date is replaced, not pushed back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			state, err := svc.Coordinator().Renew(cmd.Context(), args[0], subscription.RenewRequest{
				Mode:         subscription.RenewExtend,
				DurationDays: days,
			})
			return reportMutation(cmd, opts, svc, args[0], state, err)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "window length in days (required)")
	_ = cmd.MarkFlagRequired("days")

	return cmd
}

func newChangePlanCmd(opts *globalOptions) *cobra.Command {
	var (
		planID string
		days   int
	)

	cmd := &cobra.Command{
		Use:   "change-plan <tenant-id>",
		Short: "Move a tenant to another plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			state, err := svc.Coordinator().Renew(cmd.Context(), args[0], subscription.RenewRequest{
				Mode:         subscription.RenewChange,
				PlanID:       planID,
				DurationDays: days,
			})
			return reportMutation(cmd, opts, svc, args[0], state, err)
		},
	}

	cmd.Flags().StringVar(&planID, "plan", "", "new plan ID")
	cmd.Flags().IntVar(&days, "days", 0, "window length in days (default: plan duration)")

	return cmd
}

func newUnassignCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <tenant-id>",
		Short: "Remove a tenant's plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			state, err := svc.Coordinator().Unassign(cmd.Context(), args[0])
			return reportMutation(cmd, opts, svc, args[0], state, err)
		},
	}
}

func reportMutation(cmd *cobra.Command, opts *globalOptions, svc *subscription.Service, tenantID string, state subscription.OperationState, err error) error {
	if err != nil {
		return err
	}

	rec, found := svc.Registry().Get(tenantID)
	var row *models.SubscriptionRow
	if found {
		r := svc.Row(rec)
		row = &r
	}

	if opts.output == "json" {
		return writeJSON(cmd.OutOrStdout(), struct {
			Operation    subscription.OperationState `json:"operation"`
			Subscription *models.SubscriptionRow     `json:"subscription,omitempty"`
		}{state, row})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s: %s\n", state.Operation, tenantID, state.Phase)
	if row != nil {
		tw := newTable(out)
		fmt.Fprintln(tw, "TENANT\tCOMPANY\tEMAIL\tPLAN\tPRICE\tSTART\tEND\tDAYS\tSTATUS")
		printRow(tw, *row)
		return tw.Flush()
	}
	return nil
}

func printRow(tw io.Writer, row models.SubscriptionRow) {
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		row.TenantID,
		orDash(row.CompanyName),
		orDash(row.Email),
		orDash(row.PlanName),
		formatMoneyPtr(row.PlanPrice),
		formatDate(row.StartDate),
		formatDate(row.EndDate),
		formatDays(row.DaysRemaining),
		row.Category,
	)
}

