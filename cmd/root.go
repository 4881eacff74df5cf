// Package cmd implements the roteiro command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "roteiro",
	Short: "Roteiro - assistente educacional sobre dispensação de hanseníase",
	Long: `Roteiro serves persona-based answers about hanseníase (leprosy)
medication dispensing, grounded in a curated knowledge base through
retrieval-augmented generation.

Commands:
  serve    start the HTTP API server
  index    build the retrieval indexes from the knowledge base
  status   show retrieval pipeline health
  version  show version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
