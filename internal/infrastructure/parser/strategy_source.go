package parser

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/ports"
	"ChatDigest/internal/scanner"
)

// StrategySource implements ChatPlatform via registered platform strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []scanner.Site
	logger   *slog.Logger
}

var _ ports.ChatPlatform = (*StrategySource)(nil)

// NewStrategySource wires the platform registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []scanner.Site, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// ListSources enumerates the sources of every configured site in
// configuration order. A failing site is skipped; an error is returned only
// when no site could be listed.
func (s *StrategySource) ListSources(ctx context.Context) ([]domain.Source, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("platform registry is not configured")
	}

	s.debug("list sources", "sites", len(s.sites))

	var (
		aggregated []domain.Source
		failures   []error
	)
	for _, site := range s.sites {
		s.debug("process site", "site", site.Name, "platform", site.Platform, "channels", len(site.Channels))
		strategy, err := s.registry.Resolve(site.Platform)
		if err != nil {
			failures = append(failures, fmt.Errorf("site %s: %w", site.Name, err))
			s.warn("site skipped", "site", site.Name, "error", err)
			continue
		}

		sources, err := strategy.ListSources(ctx, site)
		if err != nil {
			failures = append(failures, fmt.Errorf("list site %s: %w", site.Name, err))
			s.warn("site skipped", "site", site.Name, "error", err)
			continue
		}

		for i := range sources {
			sources[i].Platform = strategy.Name()
			if sources[i].Site == "" {
				sources[i].Site = site.Name
			}
		}
		s.debug("site produced sources", "site", site.Name, "count", len(sources))
		aggregated = append(aggregated, sources...)
	}

	if len(aggregated) == 0 && len(failures) > 0 {
		return nil, errors.Join(failures...)
	}

	s.debug("strategy source done", "total_sources", len(aggregated))
	return aggregated, nil
}

// StreamMessages routes the read to the platform the source was listed by.
func (s *StrategySource) StreamMessages(ctx context.Context, source domain.Source, limit int) iter.Seq2[domain.Message, error] {
	if s.registry == nil {
		return failed(fmt.Errorf("platform registry is not configured"))
	}
	strategy, err := s.registry.Resolve(source.Platform)
	if err != nil {
		return failed(fmt.Errorf("source %s: %w", source.Name, err))
	}
	return strategy.StreamMessages(ctx, source, limit)
}

func failed(err error) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		yield(domain.Message{}, err)
	}
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
