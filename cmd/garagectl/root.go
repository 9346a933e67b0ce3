package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ukydev/garage/internal/config"
	"github.com/ukydev/garage/internal/db"
	"github.com/ukydev/garage/internal/garage"
	"github.com/ukydev/garage/internal/models"
)

// skipStore marks commands that run without opening the garage.
const skipStore = "skip-store"

type app struct {
	storeKind string
	dataDir   string
	verbose   bool

	log    *logrus.Logger
	store  db.KeyValueStore
	garage *garage.Garage
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:          "garagectl",
		Short:        "Manage the vehicles of a garage and their maintenance",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := cmd.Annotations[skipStore]; ok {
				return nil
			}
			return a.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&a.storeKind, "store", "", "storage backend: memory, file, mongo or redis (overrides GARAGE_STORE)")
	cmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "directory of the file store (overrides GARAGE_DATA_DIR)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log every change")

	cmd.AddCommand(
		a.addCmd(),
		a.listCmd(),
		a.showCmd(),
		a.removeCmd(),
		a.engineCmd("start", "Start the engine"),
		a.engineCmd("stop", "Stop the engine and bring the vehicle to a halt"),
		a.maintenanceCmd(),
		a.clearCmd(),
		hashPasswordCmd(),
	)
	return cmd
}

// open loads the configuration, connects the store and loads the garage from it.
// A store that cannot be read is an error here: writing to it afterwards would
// replace whatever it holds.
func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.storeKind != "" {
		cfg.Store = config.StoreKind(a.storeKind)
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.log = config.NewLogger(cfg.Log)
	a.log.SetOutput(cmd.ErrOrStderr())
	if !a.verbose {
		a.log.SetLevel(logrus.WarnLevel)
	}

	store, err := config.OpenStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	a.store = store

	a.garage = garage.New(store, models.NewRegistry(),
		garage.WithName(cfg.GarageName),
		garage.WithLogger(a.log),
	)

	report := a.garage.Load(cmd.Context())
	if report.Err != nil {
		return fmt.Errorf("load garage: %w", report.Err)
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipped stored entry %d (%s): %v\n", s.Index, s.Reason, s.Err)
	}
	return nil
}

func (a *app) close(ctx context.Context) error {
	if c, ok := a.store.(db.Closer); ok {
		return c.Close(ctx)
	}
	return nil
}

// saved turns a failed save of the last change into an error, so the command
// exits non-zero.
func (a *app) saved() error {
	if err := a.garage.LastPersistError(); err != nil {
		return fmt.Errorf("change was not saved: %w", err)
	}
	return nil
}
