package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/flightontime/internal/control"
)

var batchID string

var batchCmd = &cobra.Command{
	Use:   "batch [file.csv]",
	Short: "Score a local CSV file and print the results as JSON",
	Args:  cobra.ExactArgs(1),
	Run:   runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchID, "batch-id", "", "batch ID to record (generated when empty)")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	data, err := os.ReadFile(args[0])
	if err != nil {
		slog.Error("Failed to read CSV", "file", args[0], "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := control.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Close()
	}()

	result, err := app.Pipeline().Ingest(ctx, data, batchID)
	if err != nil {
		slog.Error("Batch failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		slog.Error("Failed to write results", "error", err)
		os.Exit(1)
	}
	slog.Info("Batch written",
		"batch_id", result.BatchID,
		"processed", result.Summary.ProcessedCount,
		"errors", result.Summary.ErrorCount,
	)
}
