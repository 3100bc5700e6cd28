package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath     string
	migrationsPath string
	skipMigrations bool
)

var rootCmd = &cobra.Command{
	Use:           "mediavault",
	Short:         "Asset collections, variants and pending uploads",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".app.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "migrations", "file://migrations", "migrations source URL")
	rootCmd.PersistentFlags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on start")
}
