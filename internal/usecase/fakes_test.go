package usecase

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"time"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/ports"
)

type fakePlatform struct {
	sources  []domain.Source
	listErr  error
	messages map[string][]domain.Message
	failures map[string]error
	// failAfter yields that many messages before failing.
	failAfter map[string]int

	mu      sync.Mutex
	streams map[string]int
}

func (f *fakePlatform) ListSources(context.Context) ([]domain.Source, error) {
	return f.sources, f.listErr
}

func (f *fakePlatform) StreamMessages(_ context.Context, source domain.Source, limit int) iter.Seq2[domain.Message, error] {
	f.mu.Lock()
	if f.streams == nil {
		f.streams = map[string]int{}
	}
	f.streams[source.ID]++
	f.mu.Unlock()

	return func(yield func(domain.Message, error) bool) {
		msgs := f.messages[source.ID]
		if err, ok := f.failures[source.ID]; ok {
			n := f.failAfter[source.ID]
			for i := 0; i < n && i < len(msgs); i++ {
				if !yield(msgs[i], nil) {
					return
				}
			}
			yield(domain.Message{}, err)
			return
		}
		for i, msg := range msgs {
			if i >= limit {
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

var _ ports.ChatPlatform = (*fakePlatform)(nil)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	fail    map[string]error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	for marker, err := range g.fail {
		if strings.Contains(prompt, marker) {
			return "", err
		}
	}
	return "summary: " + firstLine(prompt), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

type delivery struct {
	provenance string
	chunk      domain.Chunk
}

type fakeSink struct {
	name  string
	limit int
	err   error
	// failOn fails only for reports with this provenance.
	failOn   string
	panicMsg string

	mu         sync.Mutex
	deliveries []delivery
	finalized  int
	finalErr   error
}

func (s *fakeSink) Name() string    { return s.name }
func (s *fakeSink) ChunkLimit() int { return s.limit }

func (s *fakeSink) Deliver(_ context.Context, report domain.Report, chunk domain.Chunk) error {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil && (s.failOn == "" || s.failOn == report.Provenance) {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, delivery{provenance: report.Provenance, chunk: chunk})
	return nil
}

func (s *fakeSink) delivered() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.deliveries...)
}

type finalizingSink struct {
	fakeSink
}

func (s *finalizingSink) Finalize(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized++
	return s.finalErr
}

var errBoom = errors.New("boom")

func msgAt(source string, body string, ts time.Time) domain.Message {
	return domain.Message{SourceID: source, Timestamp: ts, Body: body}
}
