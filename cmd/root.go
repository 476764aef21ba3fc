// Package cmd defines and implements the CLI commands for the bookscraper
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookscraper",
		Short: "A polite, resilient book catalog scraper",
		Long: `bookscraper fetches book pages from catalog sites, extracts
structured book data, and serves results over HTTP. It rate limits per
domain, rotates browser identities, and retries transient failures.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (environment is used when unset)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScrapeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
