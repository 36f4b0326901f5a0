package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voyago/voyago/internal/app"
	"github.com/voyago/voyago/internal/config"
	"github.com/voyago/voyago/internal/knowledge"
)

var indexFile string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load knowledge-base documents into the vector store",
	Long: `Reads a JSON file of documents ([{"id": "...", "content": "..."}])
and indexes them. Documents are upserted by id, so re-running with an
updated file replaces changed passages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex()
	},
}

func init() {
	indexCmd.Flags().StringVarP(&indexFile, "file", "f", "", "path to documents JSON file (required)")
	_ = indexCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(indexCmd)
}

// indexDocument is the on-disk document shape.
type indexDocument struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// runIndex loads the documents file and indexes every entry.
func runIndex() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := os.ReadFile(indexFile)
	if err != nil {
		return fmt.Errorf("reading documents file: %w", err)
	}

	var docs []indexDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parsing documents file: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents in %s", indexFile)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	indexed := 0
	for _, doc := range docs {
		if err := a.Knowledge.Add(ctx, knowledge.Document{ID: doc.ID, Content: doc.Content}); err != nil {
			return fmt.Errorf("indexing document %q: %w", doc.ID, err)
		}
		indexed++
	}

	slog.Info("indexed documents", "count", indexed, "file", indexFile)
	return nil
}
