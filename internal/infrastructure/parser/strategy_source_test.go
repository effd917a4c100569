package parser

import (
	"context"
	"errors"
	"iter"
	"testing"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/scanner"
)

type stubPlatform struct {
	name    string
	sources []domain.Source
	err     error
}

func (s stubPlatform) Name() string { return s.name }

func (s stubPlatform) ListSources(context.Context, scanner.Site) ([]domain.Source, error) {
	out := make([]domain.Source, len(s.sources))
	copy(out, s.sources)
	return out, s.err
}

func (s stubPlatform) StreamMessages(_ context.Context, source domain.Source, _ int) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		yield(domain.Message{ID: s.name + ":" + source.ID, Body: "hello"}, nil)
	}
}

func TestStrategySourceSkipsFailingSite(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(stubPlatform{name: "telegram", sources: []domain.Source{{ID: "a", Name: "A", Readable: true}}})
	reg.Register(stubPlatform{name: "editorial", err: errors.New("list page down")})

	src := NewStrategySource(reg, []scanner.Site{
		{Name: "broken", Platform: "editorial"},
		{Name: "tg", Platform: "telegram"},
		{Name: "unknown", Platform: "discord"},
	}, nil)

	sources, err := src.ListSources(context.Background())
	if err != nil {
		t.Fatalf("ListSources error: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}
	if sources[0].Platform != "telegram" || sources[0].Site != "tg" {
		t.Fatalf("unexpected source %+v", sources[0])
	}

	for msg, err := range src.StreamMessages(context.Background(), sources[0], 10) {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		if msg.ID != "telegram:a" {
			t.Fatalf("stream was not routed to the listing platform: %s", msg.ID)
		}
	}
}

func TestStrategySourceAllSitesFailing(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(stubPlatform{name: "editorial", err: errors.New("down")})

	src := NewStrategySource(reg, []scanner.Site{{Name: "naver", Platform: "editorial"}}, nil)
	if _, err := src.ListSources(context.Background()); err == nil {
		t.Fatalf("expected error when no site could be listed")
	}
}

func TestStrategySourceUnknownPlatformStream(t *testing.T) {
	t.Parallel()

	src := NewStrategySource(scanner.NewRegistry(), nil, nil)
	var got error
	for _, err := range src.StreamMessages(context.Background(), domain.Source{Name: "x", Platform: "irc"}, 1) {
		got = err
	}
	if got == nil {
		t.Fatalf("expected error for unregistered platform")
	}
}
