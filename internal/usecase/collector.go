package usecase

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ChatDigest/internal/domain"
)

// Collection is the outcome of reading and filtering every selected source.
type Collection struct {
	Batches    []SourceBatch
	Read       int
	Unreadable int
	Collected  int
	Admitted   int
	Errors     []error
}

// Collector reads the selected sources and applies the content filter.
type Collector struct {
	reader      *SourceReader
	filter      ContentFilter
	maxMessages int
	concurrency int
	logger      *slog.Logger
}

// NewCollector bounds concurrent reads by concurrency (at least one).
func NewCollector(reader *SourceReader, filter ContentFilter, maxMessages, concurrency int, logger *slog.Logger) *Collector {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{
		reader:      reader,
		filter:      filter,
		maxMessages: maxMessages,
		concurrency: concurrency,
		logger:      logger,
	}
}

type sourceOutcome struct {
	messages []domain.Message
	admitted []domain.Message
	err      error
}

// Collect reads every source into its own buffer and merges the buffers in
// the order of sources once all reads are done, so the result does not
// depend on scheduling.
func (c *Collector) Collect(ctx context.Context, sources []domain.Source, window domain.TimeWindow) Collection {
	outcomes := make([]sourceOutcome, len(sources))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			msgs, err := Drain(c.reader.Read(ctx, src, window, c.maxMessages))
			outcomes[i] = sourceOutcome{messages: msgs, admitted: c.filter.Apply(msgs), err: err}
			return nil
		})
	}
	_ = g.Wait()

	var col Collection
	for i, src := range sources {
		out := outcomes[i]
		if out.err != nil {
			var unreadable *domain.SourceUnreadableError
			if !errors.As(out.err, &unreadable) {
				out.err = &domain.SourceUnreadableError{Source: src.Name, Err: out.err}
			}
			c.logger.Warn("source skipped", "source", src.Name, "error", out.err)
			col.Unreadable++
			col.Errors = append(col.Errors, out.err)
			continue
		}

		col.Read++
		col.Collected += len(out.messages)
		col.Admitted += len(out.admitted)
		c.logger.Debug("source read", "source", src.Name, "messages", len(out.messages), "admitted", len(out.admitted))
		if len(out.admitted) == 0 {
			continue
		}
		col.Batches = append(col.Batches, SourceBatch{Source: src, Messages: out.admitted})
	}
	return col
}
