package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/infrastructure/resilience"
	"ChatDigest/internal/ports"
	"ChatDigest/internal/textutil"
)

const (
	apiBaseURL    = "https://api.notion.com"
	apiVersion    = "2022-06-28"
	bodyLimit     = 1900
	shortLimit    = 100
	dateLayout    = "2006-01-02"
	crossCategory = "종합"
)

// Database property names.
const (
	propTitle    = "제목"
	propCategory = "방이름"
	propDate     = "날짜"
	propSummary  = "요약"
)

var reportZone = time.FixedZone("UTC+9", 9*60*60)

// Config selects the target database.
type Config struct {
	APIKey     string
	DatabaseID string
	// Category labels cross-source reports; defaults to "종합".
	Category string
	// FixedCategory, when set, labels every report (e.g. "사설/칼럼").
	FixedCategory string
	BaseURL       string
	Retry         resilience.Config
}

// Sink creates one knowledge-base page per report.
type Sink struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

var _ ports.Sink = (*Sink)(nil)

// NewSink wires the Notion API client.
func NewSink(cfg Config, client *http.Client, logger *slog.Logger) *Sink {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = apiBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Category == "" {
		cfg.Category = crossCategory
	}
	return &Sink{cfg: cfg, client: client, logger: logger}
}

// Name identifies the sink in dispatch results.
func (s *Sink) Name() string { return "notion" }

// ChunkLimit asks for the whole report; the body is truncated instead.
func (s *Sink) ChunkLimit() int { return ports.WholeReport }

// Deliver creates the page for report.
func (s *Sink) Deliver(ctx context.Context, report domain.Report, chunk domain.Chunk) error {
	if s.cfg.APIKey == "" || s.cfg.DatabaseID == "" {
		return fmt.Errorf("notion sink misconfigured")
	}

	body, err := json.Marshal(s.page(report, chunk.Text))
	if err != nil {
		return fmt.Errorf("marshal notion page: %w", err)
	}

	return resilience.Do(ctx, s.cfg.Retry, func() error {
		return s.post(ctx, body)
	})
}

// Title renders "[YYYY-MM-DD] <provenance> 요약" with the date at UTC+9.
func Title(report domain.Report) string {
	return fmt.Sprintf("[%s] %s 요약", reportDate(report), report.Provenance)
}

func reportDate(report domain.Report) string {
	at := report.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	return at.In(reportZone).Format(dateLayout)
}

func (s *Sink) category(report domain.Report) string {
	switch {
	case s.cfg.FixedCategory != "":
		return s.cfg.FixedCategory
	case report.Mode == domain.ModeCrossSource:
		return s.cfg.Category
	default:
		return report.Provenance
	}
}

type richText struct {
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
}

func rich(content string) []richText {
	var r richText
	r.Text.Content = content
	return []richText{r}
}

func (s *Sink) page(report domain.Report, text string) map[string]any {
	safe := textutil.Truncate(text, bodyLimit)
	heading := "💡 3줄 핵심 요약"
	if report.Mode == domain.ModeCrossSource {
		heading = "📊 종합 리포트"
	}

	return map[string]any{
		"parent": map[string]string{"database_id": s.cfg.DatabaseID},
		"properties": map[string]any{
			propTitle:    map[string]any{"title": rich(Title(report))},
			propCategory: map[string]any{"select": map[string]string{"name": s.category(report)}},
			propDate:     map[string]any{"date": map[string]string{"start": reportDate(report)}},
			propSummary:  map[string]any{"rich_text": rich(textutil.Truncate(text, shortLimit))},
		},
		"children": []map[string]any{
			{
				"object":    "block",
				"type":      "heading_2",
				"heading_2": map[string]any{"rich_text": rich(heading)},
			},
			{
				"object":    "block",
				"type":      "paragraph",
				"paragraph": map[string]any{"rich_text": rich(safe)},
			},
		},
	}
}

func (s *Sink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/v1/pages", bytes.NewReader(body))
	if err != nil {
		return &resilience.Permanent{Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", apiVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err = fmt.Errorf("notion error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return &resilience.Permanent{Err: err}
	}
	s.logger.Debug("notion create page failed", "status", resp.StatusCode)
	return err
}
