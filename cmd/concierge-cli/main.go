package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "concierge-cli",
		Short: "Concierge CLI - talk to the course bot and inspect its tools",
		Long: `concierge-cli runs the course concierge locally without a messaging transport.

Examples:
  # Chat through the full orchestration loop
  concierge-cli chat --name Анна

  # Query the course catalog the way the get_courses tool does
  concierge-cli catalog --category IT --query python

  # Print the tool definitions advertised to the model
  concierge-cli tools`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newToolsCmd())

	rootCmd.PersistentFlags().StringP("catalog-file", "c", "", "Catalog file (default: CATALOG_PATH or data/courses.yaml)")
	return rootCmd
}
