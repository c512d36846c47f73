package main

import (
	"os"

	"github.com/spf13/cobra"
)

// main wires the broker server and the clinical-domain scrape tool. Business
// logic lives in the internal packages.
func main() {
	rootCmd := &cobra.Command{
		Use:          "fts",
		Short:        "Clinical record transfer with transport pseudonymization",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scrapeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
