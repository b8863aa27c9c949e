package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/offersync/config"
	"github.com/shashiranjanraj/offersync/internal/kernel"
	"github.com/shashiranjanraj/offersync/internal/server"
	"github.com/shashiranjanraj/offersync/pkg/database"
	"github.com/shashiranjanraj/offersync/pkg/schedule"
)

var noSchedule bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the sync scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.authenticate(ctx); err != nil {
			return err
		}

		var sched *schedule.Scheduler
		if !noSchedule {
			sched = schedule.New()
			if err := a.k.Schedule(sched); err != nil {
				return err
			}
			sched.Start(ctx)
		}

		err = server.Start(ctx, ":"+config.AppPort(), a.k.Handler())
		stop()
		if sched != nil {
			sched.Wait()
		}
		return err
	},
}

var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered HTTP routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect()
		if err != nil {
			return err
		}
		defer database.Close(db)

		cfg := kernel.FromEnv()
		if cfg.UpstreamBaseURL == "" {
			// Routes do not depend on the vendor address.
			cfg.UpstreamBaseURL = "http://localhost"
		}
		k, err := kernel.New(cmd.Context(), cfg, db)
		if err != nil {
			return err
		}
		defer k.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, rt := range k.Router().Routes() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", rt.Method, rt.Path, rt.Name)
		}
		return w.Flush()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "do not run the periodic sync")
	rootCmd.AddCommand(serveCmd, routeListCmd)
}
