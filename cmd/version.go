package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/roteiro-ai/roteiro/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion(cmd)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command) error {
	cmd.Printf("Roteiro %s\n", Version)
	cmd.Printf("Build Time: %s\n", BuildTime)
	cmd.Printf("Git Commit: %s\n", GitCommit)
	cmd.Println()

	cfg, err := config.Load()
	if err != nil {
		cmd.Printf("Configuration: unavailable (%v)\n", err)
		return nil
	}

	cmd.Println("Configuration:")
	cmd.Printf("  Provider: %s\n", cfg.Provider)
	cmd.Printf("  Model: %s\n", cfg.ModelName)
	cmd.Printf("  Embedder: %s (%d dims)\n", cfg.EmbedderModel, cfg.EmbedderDimension)
	cmd.Printf("  Knowledge dir: %s\n", cfg.KnowledgeDir)

	key := os.Getenv("GEMINI_API_KEY")
	if key != "" && len(key) >= 8 {
		cmd.Printf("  GEMINI_API_KEY: %s...%s (configured)\n", key[:4], key[len(key)-4:])
	} else if key != "" {
		cmd.Println("  GEMINI_API_KEY: configured")
	} else {
		cmd.Println("  GEMINI_API_KEY: not set (LLM and embeddings disabled)")
	}

	return nil
}
