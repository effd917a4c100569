package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChatDigest/internal/config"
	"ChatDigest/internal/domain"
)

type cannedGenerator struct {
	calls atomic.Int32
}

func (g *cannedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	if !strings.Contains(prompt, "반도체") {
		return "", fmt.Errorf("prompt lost the messages")
	}
	return "1. 반도체 업황 회복 기대\n2. 금리 동결 전망\n3. 환율 안정", nil
}

func mirror(t *testing.T) *httptest.Server {
	t.Helper()

	stamp := func(ago time.Duration) string {
		return time.Now().Add(-ago).UTC().Format(time.RFC3339)
	}
	post := func(id int, at, text string) string {
		return fmt.Sprintf(`<div class="tgme_widget_message" data-post="stocks/%d">
		  <div class="tgme_widget_message_text">%s</div>
		  <a class="tgme_widget_message_date"><time datetime="%s"></time></a>
		</div>`, id, text, at)
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/s/stocks":
			_, _ = w.Write([]byte(`<html><body>
			<div class="tgme_channel_info_header_title"><span>주식토론방</span></div>
			<section class="tgme_channel_history">` +
				post(1, stamp(3*time.Hour), "반도체 업황이 다음 분기에 회복될 것이라는 전망이 많습니다") +
				post(2, stamp(time.Hour), "짧은 글") +
				`</section></body></html>`))
		case "/s/cooking":
			_, _ = w.Write([]byte(`<html><body><div class="tgme_channel_info_header_title"><span>요리방</span></div></body></html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()

	return config.Config{
		Logging:    config.LoggingConfig{Level: "error"},
		Window:     config.WindowConfig{Duration: 24 * time.Hour},
		Scheduler:  config.SchedulerConfig{CronExpression: "0 7 * * *", Timezone: "Asia/Seoul"},
		Selection:  config.SelectionConfig{Keywords: []string{"주식"}},
		Collection: config.CollectionConfig{MaxMessages: 10, MinLength: 20, Concurrency: 2},
		Aggregation: config.AggregationConfig{
			Mode:           domain.ModePerSource,
			PerSourceCap:   5000,
			CrossSourceCap: 50000,
		},
		Summarizer: config.SummarizerConfig{
			Provider:    config.ProviderOpenAI,
			APIKey:      "unused",
			Concurrency: 1,
			PromptCaps:  config.PromptCapConfig{PerSource: 6000, CrossSource: 60000},
		},
		Sinks: config.SinksConfig{
			ChunkLimit: 4000,
			Document:   config.DocumentConfig{Path: filepath.Join(t.TempDir(), "out", "digest.md"), Title: "Digest"},
		},
		Sites: []config.SiteConfig{
			{Name: "tg", Platform: config.PlatformTelegram, Channels: []string{"stocks", "cooking"}, BaseURL: baseURL},
		},
	}
}

func TestApplicationRunPublishesDocument(t *testing.T) {
	t.Parallel()

	server := mirror(t)
	defer server.Close()

	cfg := testConfig(t, server.URL)
	gen := &cannedGenerator{}
	application, err := New(context.Background(), cfg, nil, WithHTTPClient(server.Client()), WithGenerator(gen))
	require.NoError(t, err)
	defer application.Close()

	status, err := application.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, status.SourcesListed)
	assert.Equal(t, 1, status.SourcesSelected)
	assert.Equal(t, 2, status.MessagesCollected)
	assert.Equal(t, 1, status.MessagesAdmitted)
	assert.Equal(t, 1, status.UnitsSummarized)
	assert.EqualValues(t, 1, gen.calls.Load())

	doc, err := os.ReadFile(cfg.Sinks.Document.Path)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "# Digest")
	assert.Contains(t, string(doc), "### 주식토론방")
	assert.Contains(t, string(doc), "반도체 업황 회복 기대")
}

func TestApplicationServeRejectsBadCron(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Scheduler.CronExpression = "whenever"
	application, err := New(context.Background(), cfg, nil, WithGenerator(&cannedGenerator{}))
	require.NoError(t, err)
	defer application.Close()

	err = application.Serve(context.Background())
	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
}

func TestApplicationServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1")
	application, err := New(context.Background(), cfg, nil, WithGenerator(&cannedGenerator{}))
	require.NoError(t, err)
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestApplicationHistoryWithoutArchive(t *testing.T) {
	t.Parallel()

	application, err := New(context.Background(), testConfig(t, "http://127.0.0.1:1"), nil, WithGenerator(&cannedGenerator{}))
	require.NoError(t, err)
	defer application.Close()

	_, err = application.History(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNoArchive)
}
