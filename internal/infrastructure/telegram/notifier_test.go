package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/infrastructure/resilience"
)

type recorder struct {
	mu    sync.Mutex
	texts []string
	fail  int
	code  int
}

func (r *recorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/bottoken/sendMessage" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		if err := req.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if req.PostForm.Get("chat_id") != "42" {
			t.Errorf("unexpected chat id %q", req.PostForm.Get("chat_id"))
		}
		if req.PostForm.Has("parse_mode") {
			t.Errorf("messages must be sent as plain text")
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.fail > 0 {
			r.fail--
			w.WriteHeader(r.code)
			_, _ = w.Write([]byte(`{"ok":false,"description":"try later"}`))
			return
		}
		r.texts = append(r.texts, req.PostForm.Get("text"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func TestNotifierDeliverMarksParts(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	server := httptest.NewServer(rec.handler(t))
	defer server.Close()

	n := NewNotifier(Config{BotToken: "token", ChatID: "42", BaseURL: server.URL}, server.Client(), nil)
	if n.ChunkLimit() != DefaultChunkLimit {
		t.Fatalf("unexpected chunk limit %d", n.ChunkLimit())
	}

	report := domain.Report{Provenance: "투자"}
	for i, text := range []string{"첫 부분", "둘째 부분"} {
		if err := n.Deliver(context.Background(), report, domain.Chunk{Index: i, Total: 2, Text: text}); err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}
	if err := n.Deliver(context.Background(), report, domain.Chunk{Index: 0, Total: 1, Text: "단일"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	want := []string{"(1/2)\n첫 부분", "(2/2)\n둘째 부분", "단일"}
	if len(rec.texts) != len(want) {
		t.Fatalf("got %d messages", len(rec.texts))
	}
	for i := range want {
		if rec.texts[i] != want[i] {
			t.Fatalf("message %d: got %q want %q", i, rec.texts[i], want[i])
		}
	}
}

func TestNotifierRetriesServerErrors(t *testing.T) {
	t.Parallel()

	rec := &recorder{fail: 2, code: http.StatusBadGateway}
	server := httptest.NewServer(rec.handler(t))
	defer server.Close()

	retry := resilience.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	n := NewNotifier(Config{BotToken: "token", ChatID: "42", BaseURL: server.URL, Retry: retry}, server.Client(), nil)
	if err := n.Deliver(context.Background(), domain.Report{}, domain.Chunk{Total: 1, Text: "hi"}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(rec.texts) != 1 {
		t.Fatalf("expected one delivered message, got %d", len(rec.texts))
	}
}

func TestNotifierClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	rec := &recorder{fail: 5, code: http.StatusBadRequest}
	server := httptest.NewServer(rec.handler(t))
	defer server.Close()

	retry := resilience.Config{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	n := NewNotifier(Config{BotToken: "token", ChatID: "42", BaseURL: server.URL, Retry: retry}, server.Client(), nil)
	err := n.Deliver(context.Background(), domain.Report{}, domain.Chunk{Total: 1, Text: "hi"})
	if !resilience.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if rec.fail != 4 {
		t.Fatalf("expected exactly one attempt, %d failures left", rec.fail)
	}
}

func TestNotifierMisconfigured(t *testing.T) {
	t.Parallel()

	n := NewNotifier(Config{}, nil, nil)
	if err := n.Deliver(context.Background(), domain.Report{}, domain.Chunk{Total: 1, Text: "x"}); err == nil {
		t.Fatalf("expected error without credentials")
	}
}
