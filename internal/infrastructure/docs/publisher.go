package docs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/ports"
)

var reportZone = time.FixedZone("UTC+9", 9*60*60)

// Config locates the published document.
type Config struct {
	// Path is the Markdown file rewritten on every run.
	Path  string
	Title string
}

// Publisher collects every report of a run into one Markdown document and
// publishes it once all reports were dispatched.
type Publisher struct {
	cfg    Config
	pusher ports.Pusher
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	sections []string
}

var (
	_ ports.Sink      = (*Publisher)(nil)
	_ ports.Finalizer = (*Publisher)(nil)
)

// NewPublisher writes to cfg.Path and hands the file to pusher. pusher may be nil.
func NewPublisher(cfg Config, pusher ports.Pusher, logger *slog.Logger) *Publisher {
	if cfg.Title == "" {
		cfg.Title = "Chat Digest"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{cfg: cfg, pusher: pusher, now: time.Now, logger: logger}
}

// Name identifies the sink in dispatch results.
func (p *Publisher) Name() string { return "document" }

// ChunkLimit asks for whole reports; the document has no size cap.
func (p *Publisher) ChunkLimit() int { return ports.WholeReport }

// Deliver appends the report's section.
func (p *Publisher) Deliver(_ context.Context, report domain.Report, chunk domain.Chunk) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sections = append(p.sections, Section(report.Provenance, chunk.Text))
	return nil
}

// Section renders one report block.
func Section(provenance, summary string) string {
	return "### " + provenance + "\n" + summary + "\n\n---\n\n"
}

// Render builds the full document from the collected sections.
func (p *Publisher) Render() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.render()
}

func (p *Publisher) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", p.cfg.Title, p.now().In(reportZone).Format("2006-01-02"))
	fmt.Fprintf(&b, "_Updated %s_\n\n", p.now().In(reportZone).Format("2006-01-02 15:04 MST"))
	for _, section := range p.sections {
		b.WriteString(section)
	}
	return b.String()
}

// Finalize writes the document and pushes it. Both failures are
// *domain.PublishFatalError. Collected sections are reset for the next run.
func (p *Publisher) Finalize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.sections) == 0 {
		p.logger.Info("no reports to publish")
		return nil
	}
	doc := p.render()
	count := len(p.sections)
	p.sections = nil

	if dir := filepath.Dir(p.cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &domain.PublishFatalError{Err: fmt.Errorf("create %s: %w", dir, err)}
		}
	}
	if err := os.WriteFile(p.cfg.Path, []byte(doc), 0o644); err != nil {
		return &domain.PublishFatalError{Err: fmt.Errorf("write %s: %w", p.cfg.Path, err)}
	}
	p.logger.Info("document written", "path", p.cfg.Path, "sections", count)

	if p.pusher == nil {
		return nil
	}
	message := "Update chat digest " + p.now().In(reportZone).Format("2006-01-02")
	if err := p.pusher.Push(ctx, p.cfg.Path, message); err != nil {
		return &domain.PublishFatalError{Err: fmt.Errorf("push %s: %w", p.cfg.Path, err)}
	}
	return nil
}
