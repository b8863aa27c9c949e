package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/offersync/pkg/logger"
	"github.com/shashiranjanraj/offersync/pkg/schedule"
)

var scheduleRunCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Run the periodic sync without the HTTP API",
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

		s := schedule.New()
		if err := a.k.Schedule(s); err != nil {
			return err
		}
		for _, line := range s.List() {
			logger.Info("scheduled", "job", line)
		}

		s.Start(ctx)
		<-ctx.Done()
		s.Wait()
		logger.Info("scheduler stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scheduleRunCmd)
}
