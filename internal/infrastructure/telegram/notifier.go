package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/infrastructure/resilience"
	"ChatDigest/internal/ports"
)

const (
	apiBaseURL = "https://api.telegram.org"
	// DefaultChunkLimit stays below the 4096 character message cap so the
	// part marker fits.
	DefaultChunkLimit = 4000
)

// Config wires bot credentials and delivery limits.
type Config struct {
	BotToken   string
	ChatID     string
	ChunkLimit int
	BaseURL    string
	Retry      resilience.Config
}

// Notifier sends report chunks to a Telegram chat via bot API.
type Notifier struct {
	botToken   string
	chatID     string
	chunkLimit int
	baseURL    string
	retry      resilience.Config
	client     *http.Client
	logger     *slog.Logger
}

var _ ports.Sink = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(cfg Config, client *http.Client, logger *slog.Logger) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := cfg.ChunkLimit
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	base := cfg.BaseURL
	if base == "" {
		base = apiBaseURL
	}
	return &Notifier{
		botToken:   cfg.BotToken,
		chatID:     cfg.ChatID,
		chunkLimit: limit,
		baseURL:    strings.TrimSuffix(base, "/"),
		retry:      cfg.Retry,
		client:     client,
		logger:     logger,
	}
}

// Name identifies the sink in dispatch results.
func (n *Notifier) Name() string { return "telegram" }

// ChunkLimit is the per-message character budget.
func (n *Notifier) ChunkLimit() int { return n.chunkLimit }

// Deliver posts one chunk as a plain text message. Multi-part reports carry
// an "(i/n)" marker.
func (n *Notifier) Deliver(ctx context.Context, report domain.Report, chunk domain.Chunk) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	text := chunk.Text
	if chunk.Total > 1 {
		text = fmt.Sprintf("(%d/%d)\n%s", chunk.Index+1, chunk.Total, text)
	}

	return resilience.Do(ctx, n.retry, func() error {
		return n.send(ctx, text)
	})
}

func (n *Notifier) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &resilience.Permanent{Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var apiErr struct {
		Description string `json:"description"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &apiErr)
	err = fmt.Errorf("telegram error: %s %s", resp.Status, apiErr.Description)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return &resilience.Permanent{Err: err}
	}
	n.logger.Debug("telegram send failed", "status", resp.StatusCode)
	return err
}
