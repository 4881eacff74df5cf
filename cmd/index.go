package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roteiro-ai/roteiro/internal/app"
	"github.com/roteiro-ai/roteiro/internal/config"
	"github.com/roteiro-ai/roteiro/internal/rag"
)

var indexDryRun bool

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Build the retrieval indexes from the knowledge base",
	Long: `Index loads every document under the knowledge directory, fits the
lexical index, and writes embeddings to the vector store when one is
configured. The directory defaults to knowledge_dir from the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd, args)
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexDryRun, "dry-run", false,
		"chunk the documents and report what would be indexed, without touching any store")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	dir := cfg.KnowledgeDir
	if len(args) > 0 {
		dir = args[0]
	}

	if indexDryRun {
		return runIndexDryRun(cmd, dir)
	}

	logger := newLogger(cfg)

	a, err := app.Setup(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	report, err := a.Retrieval.IndexAll(cmd.Context(), dir)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", dir, err)
	}

	cmd.Printf("Indexed %s\n", dir)
	cmd.Printf("  Chunks:   %d\n", report.Chunks)
	cmd.Printf("  Embedded: %d\n", report.Embedded)
	cmd.Printf("  Skipped:  %d (lexical tier only)\n", report.Skipped)

	return nil
}

// runIndexDryRun chunks the knowledge base without writing to any store.
func runIndexDryRun(cmd *cobra.Command, dir string) error {
	chunks, err := rag.Chunks(dir)
	if err != nil {
		return fmt.Errorf("chunking %s: %w", dir, err)
	}

	perSource := make(map[string]int)
	for _, c := range chunks {
		perSource[c.SourceFile]++
	}

	cmd.Printf("Would index %d chunks from %s\n", len(chunks), dir)
	for _, c := range chunks {
		if perSource[c.SourceFile] == 0 {
			continue
		}
		cmd.Printf("  %-40s %d chunks\n", c.SourceFile, perSource[c.SourceFile])
		perSource[c.SourceFile] = 0
	}

	return nil
}
