package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/ports"
)

// PipelineDeps wires all stages and driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Platform   ports.ChatPlatform
	Selector   *SourceSelector
	Collector  *Collector
	Aggregator *Aggregator
	Summarizer *Summarizer
	Dispatcher *Dispatcher
	Window     time.Duration
	// UnitConcurrency bounds how many units are summarized and dispatched at once.
	UnitConcurrency int
	Logger          *slog.Logger
}

// Pipeline implements the collect -> filter -> aggregate -> summarize -> dispatch run.
type Pipeline struct {
	platform        ports.ChatPlatform
	selector        *SourceSelector
	collector       *Collector
	aggregator      *Aggregator
	summarizer      *Summarizer
	dispatcher      *Dispatcher
	window          time.Duration
	unitConcurrency int
	logger          *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	window := deps.Window
	if window <= 0 {
		window = domain.DefaultWindow
	}
	concurrency := deps.UnitConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		platform:        deps.Platform,
		selector:        deps.Selector,
		collector:       deps.Collector,
		aggregator:      deps.Aggregator,
		summarizer:      deps.Summarizer,
		dispatcher:      deps.Dispatcher,
		window:          window,
		unitConcurrency: concurrency,
		logger:          logger,
	}
}

type unitOutcome struct {
	summarized bool
	err        error
	results    []domain.DispatchResult
}

// Run performs one run whose window ends at now. Per-source, per-unit and
// per-sink failures are counted in the returned status; only a failed
// document publish makes Run return an error.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (domain.RunStatus, error) {
	status := domain.RunStatus{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := p.logger.With("run_id", status.RunID)

	window, err := domain.NewTimeWindow(now, p.window)
	if err != nil {
		return status, &domain.ConfigurationError{Field: "window.duration", Reason: err.Error()}
	}
	status.Window = window
	logger.Info("run started", "window_start", window.Start.Format(time.RFC3339), "window_end", window.End.Format(time.RFC3339))

	// COLLECTING
	sources, err := p.platform.ListSources(ctx)
	if err != nil {
		logger.Warn("list sources failed", "error", err)
		status.Errors = append(status.Errors, fmt.Errorf("list sources: %w", err))
	}
	status.SourcesListed = len(sources)

	selected := p.selector.Select(sources)
	status.SourcesSelected = len(selected)
	logger.Info("sources selected", "listed", len(sources), "selected", len(selected))

	// FILTERING
	collection := p.collector.Collect(ctx, selected, window)
	status.SourcesRead = collection.Read
	status.SourcesUnreadable = collection.Unreadable
	status.MessagesCollected = collection.Collected
	status.MessagesAdmitted = collection.Admitted
	status.Errors = append(status.Errors, collection.Errors...)

	// AGGREGATING
	units := p.aggregator.Aggregate(collection.Batches)
	status.UnitsBuilt = len(units)

	// SUMMARIZING and DISPATCHING, unit by unit.
	outcomes := p.processUnits(ctx, logger, status.RunID, units)
	for _, out := range outcomes {
		if out.err != nil {
			status.SummarizeFailures++
			status.Errors = append(status.Errors, out.err)
			continue
		}
		if out.summarized {
			status.UnitsSummarized++
		}
		for _, res := range out.results {
			status.Results = append(status.Results, res)
			if res.Delivered() {
				status.DeliveriesSucceeded++
			} else {
				status.DeliveriesFailed++
				status.Errors = append(status.Errors, res.Err)
			}
		}
	}

	failures, fatal := p.dispatcher.Finalize(ctx)
	status.Errors = append(status.Errors, failures...)
	status.DeliveriesFailed += len(failures)

	// DONE
	status.FinishedAt = time.Now()
	logger.Info("run finished",
		"sources_selected", status.SourcesSelected,
		"sources_read", status.SourcesRead,
		"sources_unreadable", status.SourcesUnreadable,
		"messages_collected", status.MessagesCollected,
		"messages_admitted", status.MessagesAdmitted,
		"units", status.UnitsBuilt,
		"units_summarized", status.UnitsSummarized,
		"summarize_failures", status.SummarizeFailures,
		"deliveries_succeeded", status.DeliveriesSucceeded,
		"deliveries_failed", status.DeliveriesFailed,
		"duration", status.FinishedAt.Sub(status.StartedAt).Round(time.Millisecond),
	)

	if fatal != nil {
		status.Errors = append(status.Errors, fatal)
		return status, fatal
	}
	return status, nil
}

// processUnits summarizes each unit and dispatches its report as soon as it
// is ready, independently of the other units.
func (p *Pipeline) processUnits(ctx context.Context, logger *slog.Logger, runID string, units []domain.SummarizationUnit) []unitOutcome {
	outcomes := make([]unitOutcome, len(units))

	var g errgroup.Group
	g.SetLimit(p.unitConcurrency)
	for i, unit := range units {
		g.Go(func() error {
			report, err := p.summarizer.Summarize(ctx, unit)
			if err != nil {
				var sumErr *domain.SummarizeError
				if !errors.As(err, &sumErr) {
					err = &domain.SummarizeError{Provenance: unit.Provenance, Err: err}
				}
				logger.Warn("summarize failed", "provenance", unit.Provenance, "error", err)
				outcomes[i] = unitOutcome{err: err}
				return nil
			}
			report.RunID = runID

			results := p.dispatcher.DispatchReport(ctx, report)

			logger.Debug("unit done", "provenance", unit.Provenance, "chars", unit.Chars, "truncated", unit.Truncated)

			outcomes[i] = unitOutcome{summarized: true, results: results}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
