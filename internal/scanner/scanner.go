package scanner

import (
	"context"
	"fmt"
	"iter"

	"ChatDigest/internal/domain"
)

// Site describes one configured place to read chat sources from.
type Site struct {
	Name     string
	Platform string
	Channels []string
	// BaseURL overrides the entry page of platforms that crawl a listing.
	BaseURL string
	Options map[string]string
}

// Platform captures a single chat platform strategy (Telegram mirror, editorial list, etc.).
type Platform interface {
	Name() string
	ListSources(ctx context.Context, site Site) ([]domain.Source, error)
	StreamMessages(ctx context.Context, source domain.Source, limit int) iter.Seq2[domain.Message, error]
}

// Registry keeps a mapping from platform names to their implementations.
type Registry struct {
	platforms map[string]Platform
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{platforms: map[string]Platform{}}
}

// Register adds or replaces a platform implementation.
func (r *Registry) Register(platform Platform) {
	if r.platforms == nil {
		r.platforms = map[string]Platform{}
	}
	r.platforms[platform.Name()] = platform
}

// Resolve returns a platform by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Platform, error) {
	if platform, ok := r.platforms[name]; ok {
		return platform, nil
	}
	return nil, fmt.Errorf("platform %s is not registered", name)
}
