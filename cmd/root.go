// Package cmd implements the voyago CLI.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/voyago/voyago/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "voyago",
	Short: "voyago - retrieval-augmented travel assistant backend",
	Long: `voyago is a conversational RAG backend: it answers questions by
retrieving relevant passages from a knowledge base, folding in the
session's conversation memory, and asking a language model.

Run "voyago serve" to start the HTTP API, "voyago index" to load
knowledge-base documents.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(log.New(log.Config{
			Level: level,
			JSON:  os.Getenv("VOYAGO_LOG_JSON") == "true",
		}))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
