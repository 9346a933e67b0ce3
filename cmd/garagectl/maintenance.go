package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/ukydev/garage/internal/models"
)

func (a *app) maintenanceCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "maintenance",
		Aliases: []string{"mnt"},
		Short:   "Manage maintenance records",
	}

	c.AddCommand(a.maintenanceAddCmd(), a.maintenanceListCmd(), a.maintenanceRemoveCmd())
	return c
}

func (a *app) maintenanceAddCmd() *cobra.Command {
	var date, service, cost, description string

	cmd := &cobra.Command{
		Use:   "add <vehicle-id>",
		Short: "Record a service, past or scheduled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = time.Now().UTC().Format(time.DateOnly)
			}
			rec, err := models.ParseMaintenanceRecord(args[0], date, service, cost, description)
			if err != nil {
				return err
			}
			if err := a.garage.AddMaintenanceRecord(cmd.Context(), args[0], rec); err != nil {
				return err
			}
			if err := a.saved(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "service date, YYYY-MM-DD or RFC 3339 (default today)")
	cmd.Flags().StringVar(&service, "type", "", "service type, e.g. \"oil change\"")
	cmd.Flags().StringVar(&cost, "cost", "0", "cost of the service")
	cmd.Flags().StringVar(&description, "description", "", "free text")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func (a *app) maintenanceListCmd() *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "list [vehicle-id]",
		Short: "List the maintenance of one vehicle, or of the whole garage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := parseLocale(locale)
			if err != nil {
				return err
			}
			var records []models.MaintenanceRecord
			if len(args) == 1 {
				records, err = a.garage.MaintenanceHistory(args[0])
				if err != nil {
					return err
				}
			} else {
				records = a.garage.AllMaintenance()
			}
			printHistory(cmd.OutOrStdout(), records, tag)
			return nil
		},
	}

	cmd.Flags().StringVar(&locale, "locale", "", "locale for dates and amounts, e.g. en-US or pt-BR")
	return cmd
}

func (a *app) maintenanceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <vehicle-id> <record-id>",
		Short: "Delete a maintenance record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.garage.RemoveMaintenanceRecord(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			if err := a.saved(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed record %s\n", args[1])
			return nil
		},
	}
}

func printHistory(w io.Writer, records []models.MaintenanceRecord, tag language.Tag) {
	if len(records) == 0 {
		fmt.Fprintln(w, "(no maintenance records)")
		return
	}
	now := time.Now()
	for _, rec := range records {
		fmt.Fprintf(w, "%s  %s\n", rec.ID, rec.FormatLocale(tag, now))
	}
}

func parseLocale(s string) (language.Tag, error) {
	if s == "" {
		return models.DefaultLocale, nil
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Tag{}, fmt.Errorf("%w: locale %q", models.ErrValidation, s)
	}
	return tag, nil
}
