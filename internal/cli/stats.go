package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/flightontime/internal/control"
	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/stats"
)

var (
	statsDay     string
	statsFrom    string
	statsTo      string
	statsBatchID string
	statsJSON    bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show prediction statistics for a day, a date range or a batch",
	Run:   runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsDay, "day", "", "day to summarize (YYYY-MM-DD, default today)")
	statsCmd.Flags().StringVar(&statsFrom, "from", "", "range start (YYYY-MM-DD)")
	statsCmd.Flags().StringVar(&statsTo, "to", "", "range end, inclusive (YYYY-MM-DD)")
	statsCmd.Flags().StringVar(&statsBatchID, "batch-id", "", "summarize one batch")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print raw JSON")
	statsCmd.MarkFlagsRequiredTogether("from", "to")
	statsCmd.MarkFlagsMutuallyExclusive("day", "from")
	statsCmd.MarkFlagsMutuallyExclusive("day", "batch-id")
	statsCmd.MarkFlagsMutuallyExclusive("from", "batch-id")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	app, err := control.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Close()
	}()

	snap, err := snapshot(ctx, app.Stats())
	if err != nil {
		slog.Error("Failed to compute stats", "error", err)
		os.Exit(1)
	}

	out := cmd.OutOrStdout()
	if statsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(snap)
		return
	}

	_, _ = fmt.Fprintf(out, "Total: %d  Delayed: %d  On-time: %d\n\n",
		snap.TotalCount, snap.DelayedCount, snap.OnTimeCount)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "AIRLINE\tNAME\tTOTAL\tDELAYED\tDELAYED %\tAVG PROB")
	for _, g := range snap.ByAirline {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f\t%.4f\n",
			g.Key, g.DisplayName, g.Total, g.Delayed, g.DelayedPercent, g.AverageProbability)
	}
	_ = w.Flush()
}

func snapshot(ctx context.Context, agg *stats.Aggregator) (*domain.StatsSnapshot, error) {
	switch {
	case statsBatchID != "":
		return agg.ForBatch(ctx, statsBatchID)
	case statsFrom != "":
		from, err := stats.ParseDate("from", statsFrom)
		if err != nil {
			return nil, err
		}
		to, err := stats.ParseDate("to", statsTo)
		if err != nil {
			return nil, err
		}
		return agg.ForRange(ctx, from, to)
	case statsDay != "":
		day, err := stats.ParseDate("day", statsDay)
		if err != nil {
			return nil, err
		}
		return agg.ForDay(ctx, day)
	default:
		return agg.ForDay(ctx, agg.Today())
	}
}
