package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/absenta/internal/export"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the backend and show connectivity, link quality and the last export",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	ctx := context.Background()
	app := newOneShotAgent(ctx, cfg, true)
	defer stopAgent(app)

	st := app.Helper().Snapshot()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATE\tQUALITY\tRTT\tDOWNLINK\tQUEUED")
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f Mbps\t%d\n",
		st.State, st.Quality.EffectiveType, st.Quality.RTT.Round(time.Millisecond),
		st.Quality.DownlinkMbps, st.QueueDepth)
	_ = w.Flush()

	if s, ok := export.LastSummary(ctx, app.Helper()); ok {
		fmt.Printf("\nLast export: %d records in %d batches (%d from cache) to %s at %s\n",
			s.Records, s.Batches, s.Cached, s.Output, time.Unix(s.FinishedAt, 0).Format(time.RFC3339))
	} else {
		fmt.Println("\nNo export recorded")
	}
}
