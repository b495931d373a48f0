package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"repertoire/internal/config"
	"repertoire/internal/content"
	"repertoire/internal/logging"
	"repertoire/internal/services"
)

// Source yields content descriptors.
type Source interface {
	Name() string
	Contents(ctx context.Context) []*content.Content
}

// Factory builds a Source from its configuration.
type Factory func(cfg config.Source, logger *slog.Logger) (Source, error)

// Registry maps source type names to factories.
type Registry struct {
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry returns a registry with the built-in types registered.
func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		logger:    logging.NewComponentLogger(logger, "sources"),
	}
	r.Register(config.SourceTypeCSV, NewCSV)
	r.Register(config.SourceTypeInline, NewInline)
	return r
}

// Register adds or replaces the factory for a type.
func (r *Registry) Register(typ string, factory Factory) {
	r.factories[typ] = factory
}

// Types lists the registered type names, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Build instantiates the source described by cfg.
func (r *Registry) Build(cfg config.Source) (Source, error) {
	factory, ok := r.factories[cfg.Type]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "sources", "build",
			fmt.Sprintf("unknown source type %q for %q", cfg.Type, cfg.Name), nil)
	}
	return factory(cfg, r.logger.With(logging.String("source", cfg.Name)))
}
