package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "ingestwatch",
		Short: "Health monitor for the article ingestion pipeline",
		Long: `ingestwatch watches the ingestion database and the ingest server's ports,
and emails (or posts to Slack) when sources appear, data stops flowing,
failures climb or the server becomes unreachable.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(onceCmd())
	rootCmd.AddCommand(preflightCmd())
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(triggerCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
