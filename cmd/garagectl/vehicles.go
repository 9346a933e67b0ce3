package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ukydev/garage/internal/garage"
	"github.com/ukydev/garage/internal/models"
)

type vehicleFlags struct {
	id       string
	make     string
	model    string
	year     int
	doors    int
	topSpeed float64
	capacity float64
}

func (f *vehicleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "vehicle id (generated when empty)")
	cmd.Flags().StringVar(&f.make, "make", "", "manufacturer")
	cmd.Flags().StringVar(&f.model, "model", "", "model name")
	cmd.Flags().IntVar(&f.year, "year", 0, "year of manufacture")
	_ = cmd.MarkFlagRequired("make")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("year")
}

func (a *app) addCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "add",
		Short: "Add a vehicle",
	}

	var car, sports, truck vehicleFlags

	carCmd := &cobra.Command{
		Use:   "car",
		Short: "Add a car",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := models.NewCar(car.make, car.model, car.year, car.doors, models.WithID(car.id))
			if err != nil {
				return err
			}
			return a.add(cmd, v)
		},
	}
	car.register(carCmd)
	carCmd.Flags().IntVar(&car.doors, "doors", 4, "number of doors")

	sportsCmd := &cobra.Command{
		Use:   "sports",
		Short: "Add a sports car",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := models.NewSportsCar(sports.make, sports.model, sports.year, sports.doors, sports.topSpeed, models.WithID(sports.id))
			if err != nil {
				return err
			}
			return a.add(cmd, v)
		},
	}
	sports.register(sportsCmd)
	sportsCmd.Flags().IntVar(&sports.doors, "doors", 2, "number of doors")
	sportsCmd.Flags().Float64Var(&sports.topSpeed, "top-speed", 0, "rated top speed in km/h")
	_ = sportsCmd.MarkFlagRequired("top-speed")

	truckCmd := &cobra.Command{
		Use:   "truck",
		Short: "Add a truck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := models.NewTruck(truck.make, truck.model, truck.year, truck.capacity, models.WithID(truck.id))
			if err != nil {
				return err
			}
			return a.add(cmd, v)
		},
	}
	truck.register(truckCmd)
	truckCmd.Flags().Float64Var(&truck.capacity, "capacity", 0, "cargo capacity in tonnes")
	_ = truckCmd.MarkFlagRequired("capacity")

	c.AddCommand(carCmd, sportsCmd, truckCmd)
	return c
}

func (a *app) add(cmd *cobra.Command, v models.Vehicle) error {
	if err := a.garage.Add(cmd.Context(), v); err != nil {
		return err
	}
	if err := a.saved(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.ID())
	return nil
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the vehicles in the garage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vehicles := a.garage.List()
			out := cmd.OutOrStdout()
			if len(vehicles) == 0 {
				fmt.Fprintln(out, "(no vehicles)")
				return nil
			}

			fmt.Fprintf(out, "%s\n\n", a.garage.Name())
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tVEHICLE\tYEAR\tENGINE\tSERVICES")
			for _, v := range vehicles {
				fmt.Fprintf(w, "%s\t%s\t%s %s\t%d\t%s\t%d\n",
					v.ID(), v.Type(), v.Make(), v.Model(), v.Year(), engineState(v), len(v.MaintenanceHistory()))
			}
			return w.Flush()
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "show <vehicle-id>",
		Short: "Describe a vehicle and its maintenance history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := parseLocale(locale)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return a.garage.View(args[0], func(v models.Vehicle) {
				fmt.Fprintln(out, v.Describe())
				fmt.Fprintf(out, "Engine: %s\n", engineState(v))
				printHistory(out, v.MaintenanceHistory(), tag)
			})
		},
	}

	cmd.Flags().StringVar(&locale, "locale", "", "locale for dates and amounts, e.g. en-US or pt-BR")
	return cmd
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <vehicle-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a vehicle",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.garage.Remove(cmd.Context(), args[0]) {
				return fmt.Errorf("%w: vehicle %s", garage.ErrNotFound, args[0])
			}
			if err := a.saved(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

// engineCmd builds the start and stop commands.
func (a *app) engineCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <vehicle-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res models.Result
			err := a.garage.Apply(cmd.Context(), args[0], func(v models.Vehicle) error {
				if action == "start" {
					res = v.Start()
				} else {
					res = v.Stop()
				}
				if res.Outcome == models.Unchanged {
					return garage.ErrUnchanged
				}
				return nil
			})
			if err != nil {
				return err
			}
			if err := a.saved(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every vehicle and wipe the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear %d vehicles without --yes", a.garage.Len())
			}
			if err := a.garage.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Garage cleared")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}

func engineState(v models.Vehicle) string {
	if v.Running() {
		return "running"
	}
	return "stopped"
}
