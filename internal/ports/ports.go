package ports

import (
	"context"
	"iter"
	"time"

	"ChatDigest/internal/domain"
)

// ChatPlatform enumerates sources and streams their history newest-first.
type ChatPlatform interface {
	ListSources(ctx context.Context) ([]domain.Source, error)
	StreamMessages(ctx context.Context, source domain.Source, limit int) iter.Seq2[domain.Message, error]
}

// Generator is the stateless text-in/text-out summarization service.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// WholeReport is returned by sinks that take a report in a single delivery.
const WholeReport = -1

// Sink persists or forwards generated reports one chunk at a time.
type Sink interface {
	Name() string
	// ChunkLimit is the transport limit in characters. Zero defers to the
	// dispatcher default, WholeReport disables chunking.
	ChunkLimit() int
	Deliver(ctx context.Context, report domain.Report, chunk domain.Chunk) error
}

// Finalizer is implemented by sinks that batch reports and flush once the
// whole run has been dispatched.
type Finalizer interface {
	Finalize(ctx context.Context) error
}

// Pusher publishes a written document through version control.
type Pusher interface {
	Push(ctx context.Context, path, message string) error
}

// ReportArchive persists reports for history and audit.
type ReportArchive interface {
	SaveReport(ctx context.Context, report domain.Report) error
}

// Scheduler controls when runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
