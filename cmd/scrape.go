package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfscout/bookscraper/internal/app"
	"github.com/shelfscout/bookscraper/internal/scraper"
)

// newScrapeCmd creates the 'scrape' subcommand: a one-shot run over the URLs
// given on the command line, printing results as JSON.
func newScrapeCmd() *cobra.Command {
	var (
		source   string
		priority int
	)

	cmd := &cobra.Command{
		Use:   "scrape URL [URL...]",
		Short: "Scrape one or more book pages and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			eng := a.Engine()
			tasks := make([]scraper.Task, 0, len(args))
			for _, url := range args {
				tasks = append(tasks, scraper.Task{
					URL:      url,
					Source:   scraper.ParseSource(source),
					Priority: priority,
				})
			}
			if _, err := eng.SubmitBatch(tasks); err != nil {
				return fmt.Errorf("submit tasks: %w", err)
			}

			processed := eng.RunBatch(cmd.Context(), 0)
			a.Logger().Info("batch finished", zap.Int("processed", processed))

			out := struct {
				Results []scraper.ScrapeResult `json:"results"`
				Failed  []scraper.ScrapeResult `json:"failed"`
			}{
				Results: eng.Results(),
				Failed:  eng.FailedResults(),
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("encode results: %w", err)
			}
			if len(out.Failed) > 0 {
				return fmt.Errorf("%d of %d tasks failed", len(out.Failed), processed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "book source hint (goodreads, amazon, google_books, openlibrary)")
	cmd.Flags().IntVar(&priority, "priority", 5, "task priority, 1 (highest) to 10")
	return cmd
}
