// Package export writes attendance data fetched from the backend to CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/infra/api"
	"github.com/vietddude/absenta/internal/resilience"
)

// LastExportKey is the durable cache key of the last export summary.
const LastExportKey = "export:last"

var header = []string{"id", "student_id", "student_name", "class", "subject", "date", "status", "note"}

// Source lists attendance records page by page.
type Source interface {
	ListAttendance(ctx context.Context, f api.Filter, offset, limit int) ([]domain.AttendanceRecord, error)
}

// Params configures one export.
type Params struct {
	Filter    api.Filter
	BatchSize int
	// Delay is the pause between pages; zero means none.
	Delay time.Duration
	// Output names the destination in the stored summary.
	Output string
	Retry  []resilience.RetryOption
}

// Attendance pages through src with h's retry policy, writes every record
// to w as CSV and stores the summary under LastExportKey. Page size and
// pause are tuned to the current link quality. Every fetched page is kept
// in the durable cache; when a page cannot be fetched its cached copy is
// used instead.
func Attendance(ctx context.Context, h *resilience.Helper, src Source, w io.Writer, p Params) (domain.ExportSummary, error) {
	log := slog.Default().With("component", "export")

	base := resilience.LoadParams{BatchSize: p.BatchSize, Delay: p.Delay}
	if base.BatchSize <= 0 {
		base.BatchSize = resilience.DefaultBatchConfig[domain.AttendanceRecord]().BatchSize
	}
	tuned := h.AdaptiveParameters(base)
	if tuned != base {
		log.Info("Adjusted export pacing for link quality",
			"batch_size", tuned.BatchSize, "delay", tuned.Delay, "compression", tuned.EnableCompression)
	}

	opts := append([]resilience.RetryOption{resilience.WithRetryCondition(api.RetryableError)}, p.Retry...)

	batches, cached := 0, 0
	loader := func(ctx context.Context, offset, limit int) ([]domain.AttendanceRecord, error) {
		key := pageKey(p.Filter, offset, limit)
		callOpts := append(opts[:len(opts):len(opts)], resilience.WithKey(key))

		page, err := resilience.Retry(ctx, h, func(ctx context.Context) ([]domain.AttendanceRecord, error) {
			page, err := src.ListAttendance(ctx, p.Filter, offset, limit)
			if err != nil {
				return nil, err
			}
			h.SetDurable(ctx, key, page)
			return page, nil
		}, callOpts...)
		if err == nil {
			return page, nil
		}

		// serve the last copy of this page while the backend is unreachable
		if ctx.Err() == nil && h.GetDurable(ctx, key, &page) {
			cached++
			log.Warn("Using cached attendance page", "offset", offset, "error", err)
			return page, nil
		}
		return nil, err
	}

	records, err := resilience.BatchedLoad(ctx, loader, resilience.BatchConfig[domain.AttendanceRecord]{
		BatchSize: tuned.BatchSize,
		Delay:     tuned.Delay,
		OnProgress: func(pr resilience.Progress) {
			batches++
			log.Debug("Export progress", "loaded", pr.Loaded, "batch", pr.Batch,
				"percentage", fmt.Sprintf("%.0f", pr.Percentage))
		},
		OnError: func(err error) {
			log.Error("Export load failed", "error", err)
		},
	})
	if err != nil {
		return domain.ExportSummary{}, fmt.Errorf("load attendance: %w", err)
	}

	if err := WriteCSV(w, records); err != nil {
		return domain.ExportSummary{}, err
	}

	summary := domain.ExportSummary{
		Records:    len(records),
		Batches:    batches,
		Cached:     cached,
		Output:     p.Output,
		FinishedAt: time.Now().Unix(),
	}
	h.SetDurable(ctx, LastExportKey, summary)
	log.Info("Export finished", "records", summary.Records, "batches", summary.Batches, "cached", cached)

	return summary, nil
}

// ToFile runs Attendance into the file at path. The file is removed when
// the export fails, so a failed run never leaves a partial CSV behind.
func ToFile(ctx context.Context, h *resilience.Helper, src Source, path string, p Params) (domain.ExportSummary, error) {
	f, err := os.Create(path)
	if err != nil {
		return domain.ExportSummary{}, fmt.Errorf("create output file: %w", err)
	}

	summary, err := Attendance(ctx, h, src, f, p)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output file: %w", cerr)
	}
	if err != nil {
		if rerr := os.Remove(path); rerr != nil {
			slog.Warn("Failed to remove incomplete export", "path", path, "error", rerr)
		}
		return domain.ExportSummary{}, err
	}
	return summary, nil
}

func pageKey(f api.Filter, offset, limit int) string {
	return fmt.Sprintf("export:page:%s:%s:%s:%d:%d", f.ClassName, f.From, f.To, offset, limit)
}

// LastSummary returns the summary of the last finished export, if any.
func LastSummary(ctx context.Context, h *resilience.Helper) (domain.ExportSummary, bool) {
	var s domain.ExportSummary
	ok := h.GetDurable(ctx, LastExportKey, &s)
	return s, ok
}

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, records []domain.AttendanceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{r.ID, r.StudentID, r.StudentName, r.ClassName, r.Subject, r.Date, string(r.Status), r.Note}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
