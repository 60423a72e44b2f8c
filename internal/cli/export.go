package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/absenta/internal/control"
	"github.com/vietddude/absenta/internal/core/config"
	"github.com/vietddude/absenta/internal/export"
	"github.com/vietddude/absenta/internal/infra/api"
)

var (
	exportOutput string
	exportClass  string
	exportFrom   string
	exportTo     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export attendance records to CSV",
	Run:   runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "output file, - for stdout")
	exportCmd.Flags().StringVar(&exportClass, "class", "", "only this class")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "last date (YYYY-MM-DD)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app := newOneShotAgent(ctx, cfg, true)
	if err := exportAttendance(ctx, app, cfg); err != nil {
		slog.Error("Export failed", "error", err)
		stopAgent(app)
		cancel()
		os.Exit(1)
	}
	stopAgent(app)
}

func exportAttendance(ctx context.Context, app *control.Agent, cfg *config.AppConfig) error {
	client, err := app.API()
	if err != nil {
		return err
	}

	params := export.Params{
		Filter:    api.Filter{ClassName: exportClass, From: exportFrom, To: exportTo},
		BatchSize: cfg.Batch.Size,
		Delay:     *cfg.Batch.Delay,
		Output:    exportOutput,
	}

	if exportOutput == "-" {
		_, err := export.Attendance(ctx, app.Helper(), client, os.Stdout, params)
		return err
	}

	summary, err := export.ToFile(ctx, app.Helper(), client, exportOutput, params)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d records in %d batches to %s\n", summary.Records, summary.Batches, exportOutput)
	return nil
}
