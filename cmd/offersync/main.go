package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/offersync/config"
	"github.com/shashiranjanraj/offersync/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "offersync",
	Short: "Offer sync and price trend service",
	Long: `offersync registers products with the offers vendor, pulls their
offers on a schedule and serves the catalog and price history over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}
		logger.Setup(config.AppEnv(), os.Stdout)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
