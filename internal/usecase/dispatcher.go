package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/ports"
	"ChatDigest/internal/textutil"
)

// Dispatcher fans reports out to every configured sink.
type Dispatcher struct {
	sinks      []ports.Sink
	chunkLimit int
	locks      []sync.Mutex
	logger     *slog.Logger
}

// NewDispatcher uses chunkLimit for sinks that do not declare their own.
func NewDispatcher(sinks []ports.Sink, chunkLimit int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		sinks:      sinks,
		chunkLimit: chunkLimit,
		locks:      make([]sync.Mutex, len(sinks)),
		logger:     logger,
	}
}

// Dispatch delivers every report to every sink and returns one result per
// (report, sink) pair, reports in order and sinks in configuration order.
func (d *Dispatcher) Dispatch(ctx context.Context, reports []domain.Report) []domain.DispatchResult {
	results := make([]domain.DispatchResult, 0, len(reports)*len(d.sinks))
	for _, report := range reports {
		results = append(results, d.DispatchReport(ctx, report)...)
	}
	return results
}

// DispatchReport delivers one report to every sink. A failing sink is
// recorded and never stops delivery to the remaining sinks. It is safe to
// call concurrently; chunks of one report reach a sink back to back.
func (d *Dispatcher) DispatchReport(ctx context.Context, report domain.Report) []domain.DispatchResult {
	results := make([]domain.DispatchResult, 0, len(d.sinks))
	for i, sink := range d.sinks {
		result := d.deliver(ctx, i, sink, report)
		if result.Delivered() {
			d.logger.Debug("report delivered", "sink", result.Sink, "provenance", report.Provenance, "chunks", result.Chunks)
		} else {
			d.logger.Warn("report delivery failed", "sink", result.Sink, "provenance", report.Provenance, "error", result.Err)
		}
		results = append(results, result)
	}
	return results
}

func (d *Dispatcher) deliver(ctx context.Context, idx int, sink ports.Sink, report domain.Report) (result domain.DispatchResult) {
	result = domain.DispatchResult{Provenance: report.Provenance, Sink: sink.Name()}

	if err := ctx.Err(); err != nil {
		result.Status = domain.StatusFailed
		result.Err = &domain.SinkDeliveryError{Sink: result.Sink, Provenance: report.Provenance, Err: err}
		return result
	}

	chunks := d.chunksFor(sink, report.Text)

	d.locks[idx].Lock()
	defer d.locks[idx].Unlock()

	defer func() {
		if r := recover(); r != nil {
			result.Status = domain.StatusFailed
			result.Err = &domain.SinkDeliveryError{Sink: result.Sink, Provenance: report.Provenance, Chunk: result.Chunks, Err: fmt.Errorf("sink panicked: %v", r)}
		}
	}()

	// A started report is finished even if the run is cancelled meanwhile, so
	// a sink never ends up with half a report.
	deliveryCtx := context.WithoutCancel(ctx)
	for _, chunk := range chunks {
		if err := sink.Deliver(deliveryCtx, report, chunk); err != nil {
			result.Status = domain.StatusFailed
			result.Err = &domain.SinkDeliveryError{Sink: result.Sink, Provenance: report.Provenance, Chunk: chunk.Index, Err: err}
			return result
		}
		result.Chunks++
	}

	result.Status = domain.StatusDelivered
	return result
}

func (d *Dispatcher) chunksFor(sink ports.Sink, text string) []domain.Chunk {
	limit := sink.ChunkLimit()
	if limit == 0 {
		limit = d.chunkLimit
	}
	if limit < 0 {
		limit = 0
	}

	parts := textutil.Chunk(text, limit)
	chunks := make([]domain.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = domain.Chunk{Index: i, Total: len(parts), Text: part}
	}
	return chunks
}

// Finalize flushes batching sinks after every report was dispatched. Every
// finalizer runs; a *domain.PublishFatalError is returned as fatal while
// other failures are returned for accounting.
func (d *Dispatcher) Finalize(ctx context.Context) (failures []error, fatal error) {
	ctx = context.WithoutCancel(ctx)

	var fatals []error
	for _, sink := range d.sinks {
		finalizer, ok := sink.(ports.Finalizer)
		if !ok {
			continue
		}
		err := finalizer.Finalize(ctx)
		if err == nil {
			continue
		}

		var publishErr *domain.PublishFatalError
		if errors.As(err, &publishErr) {
			d.logger.Error("document publish failed", "sink", sink.Name(), "error", err)
			fatals = append(fatals, err)
			continue
		}
		d.logger.Warn("sink finalize failed", "sink", sink.Name(), "error", err)
		failures = append(failures, fmt.Errorf("finalize %s: %w", sink.Name(), err))
	}
	return failures, errors.Join(fatals...)
}
