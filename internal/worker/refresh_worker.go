package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"donorflow/internal/amqp"
	"donorflow/internal/analysis"
	"donorflow/internal/report"
)

// RefreshWorker refetches analysis results when asked to over AMQP and on a
// periodic schedule. Each refresh is appended to the refresh log when a
// reporter is configured.
type RefreshWorker struct {
	controller *analysis.Controller
	reporter   report.Writer
}

func NewRefreshWorker(controller *analysis.Controller, reporter report.Writer) *RefreshWorker {
	return &RefreshWorker{
		controller: controller,
		reporter:   reporter,
	}
}

// HandleRefreshMessage processes a single refresh message from AMQP. The
// requested kinds are fetched concurrently; one failing kind does not stop
// the others, but the message is retried (requeued) if any failed.
func (w *RefreshWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.RefreshMessage) error {
	kinds := parseKinds(msg.Kinds)

	slog.InfoContext(ctx, "Processing refresh message",
		"kinds", kinds,
		"reason", msg.Reason)

	return w.refresh(ctx, kinds, msg.Reason)
}

// RefreshAll refetches every analysis kind.
func (w *RefreshWorker) RefreshAll(ctx context.Context, reason string) error {
	return w.refresh(ctx, analysis.Kinds(), reason)
}

// RunPeriodic refreshes everything on a fixed interval until the context is
// cancelled. The first refresh runs immediately.
func (w *RefreshWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if err := w.RefreshAll(ctx, "startup"); err != nil {
		slog.ErrorContext(ctx, "Startup refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping periodic refresh", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := w.RefreshAll(ctx, "periodic"); err != nil {
				slog.ErrorContext(ctx, "Periodic refresh failed", "error", err)
			}
		}
	}
}

func (w *RefreshWorker) refresh(ctx context.Context, kinds []analysis.Kind, reason string) error {
	var g errgroup.Group
	for _, kind := range kinds {
		g.Go(func() error {
			err := w.controller.Fetch(ctx, kind)
			w.logRefresh(ctx, kind, reason, err)
			return err
		})
	}
	return g.Wait()
}

func (w *RefreshWorker) logRefresh(ctx context.Context, kind analysis.Kind, reason string, fetchErr error) {
	if w.reporter == nil {
		return
	}

	entry := report.Entry{
		Timestamp: time.Now(),
		Kind:      kind.String(),
		Reason:    reason,
		Outcome:   "ok",
	}
	if fetchErr != nil {
		entry.Outcome = fetchErr.Error()
	} else {
		entry.Bytes = len(w.controller.Snapshot().Results[kind])
	}

	if _, err := w.reporter.AppendEntry(ctx, entry); err != nil {
		slog.WarnContext(ctx, "Failed to append refresh log entry",
			"kind", kind, "error", err)
	}
}

// parseKinds maps message kind names to analysis kinds. Unknown names are
// dropped with a warning; an empty list means every kind.
func parseKinds(names []string) []analysis.Kind {
	if len(names) == 0 {
		return analysis.Kinds()
	}

	kinds := make([]analysis.Kind, 0, len(names))
	for _, name := range names {
		k := analysis.Kind(name)
		if !k.IsValid() {
			slog.Warn("Dropping unknown analysis kind from refresh message", "kind", name)
			continue
		}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return analysis.Kinds()
	}
	return kinds
}
