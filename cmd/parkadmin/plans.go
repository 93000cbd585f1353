package main

import (
	"fmt"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newPlansCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Manage the plan catalog",
	}

	cmd.AddCommand(
		newPlansListCmd(opts),
		newPlansCreateCmd(opts),
		newPlansUpdateCmd(opts),
		newPlansDeleteCmd(opts),
	)

	return cmd
}

func newPlansListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			return printPlans(cmd, opts, svc.Catalog().List())
		},
	}
}

// planFlags holds the editable plan fields given on the command line.
type planFlags struct {
	name  string
	price string
	days  int
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "plan name")
	cmd.Flags().StringVar(&f.price, "price", "", "plan price, e.g. 29.99")
	cmd.Flags().IntVar(&f.days, "days", 0, "plan duration in days")
}

// apply overlays the flags that were set on base.
func (f *planFlags) apply(cmd *cobra.Command, base models.PlanInput) (models.PlanInput, error) {
	flags := cmd.Flags()
	if flags.Changed("name") {
		base.Name = f.name
	}
	if flags.Changed("price") {
		price, err := decimal.NewFromString(f.price)
		if err != nil {
			return base, fmt.Errorf("invalid price %q: %w", f.price, err)
		}
		base.Price = &price
	}
	if flags.Changed("days") {
		base.DurationDays = f.days
	}
	return base, nil
}

func newPlansCreateCmd(opts *globalOptions) *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := f.apply(cmd, models.PlanInput{})
			if err != nil {
				return err
			}

			svc, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			plan, err := svc.Catalog().Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), plan)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created plan %s (%s)\n", plan.Name, plan.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newPlansUpdateCmd(opts *globalOptions) *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "update <plan-id>",
		Short: "Update a plan; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			current, ok := svc.Catalog().Get(args[0])
			if !ok {
				return fmt.Errorf("plan %q not found", args[0])
			}
			price := current.Price
			input, err := f.apply(cmd, models.PlanInput{
				Name:         current.Name,
				Price:        &price,
				DurationDays: current.DurationDays,
				Features:     current.Features,
			})
			if err != nil {
				return err
			}

			plan, err := svc.Catalog().Update(cmd.Context(), args[0], input)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), plan)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated plan %s (%s)\n", plan.Name, plan.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newPlansDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <plan-id>",
		Short: "Delete a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.DeletePlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deleted plan %s\n", result.PlanID)
			if len(result.DanglingTenants) > 0 {
				fmt.Fprintf(out, "Warning: %d tenant(s) still reference this plan: %v\n",
					len(result.DanglingTenants), result.DanglingTenants)
			}
			return nil
		},
	}
}

func printPlans(cmd *cobra.Command, opts *globalOptions, plans []models.Plan) error {
	if opts.output == "json" {
		return writeJSON(cmd.OutOrStdout(), plans)
	}

	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tDAYS")
	for _, p := range plans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.ID, p.Name, formatMoney(p.Price), p.DurationDays)
	}
	return tw.Flush()
}
