package downloaders

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"repertoire/internal/config"
	"repertoire/internal/extract"
	"repertoire/internal/fetch"
	"repertoire/internal/logging"
	"repertoire/internal/services"
)

// Downloader is a configured downloader ready to run.
type Downloader struct {
	Config   config.Downloader
	Rule     *extract.Rule
	Strategy fetch.Strategy
}

// Name returns the configured name.
func (d *Downloader) Name() string { return d.Config.Name }

// Factory builds a Downloader from its configuration.
type Factory func(cfg config.Downloader, deps Dependencies) (*Downloader, error)

// Dependencies are shared collaborators handed to every factory.
type Dependencies struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	Executor   Executor
}

// Option configures a Registry.
type Option func(*Registry)

// WithHTTPClient overrides the client used by HTTP based downloaders.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Registry) {
		if client != nil {
			r.deps.HTTPClient = client
		}
	}
}

// WithExecutor injects a custom command executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Registry) {
		if exec != nil {
			r.deps.Executor = exec
		}
	}
}

// Registry maps downloader type names to factories.
type Registry struct {
	factories map[string]Factory
	deps      Dependencies
}

// NewRegistry returns a registry with the built-in types registered.
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		deps: Dependencies{
			Logger:     logging.NewComponentLogger(logger, "downloaders"),
			HTTPClient: http.DefaultClient,
			Executor:   commandExecutor{},
		},
	}
	r.Register(config.DownloaderTypeFile, NewFile)
	r.Register(config.DownloaderTypeVideo, NewVideo)
	for _, opt := range opts {
		opt(r)
	}
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

// Build instantiates the downloader described by cfg.
func (r *Registry) Build(cfg config.Downloader) (*Downloader, error) {
	factory, ok := r.factories[cfg.Type]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "downloaders", "build",
			fmt.Sprintf("unknown downloader type %q for %q", cfg.Type, cfg.Name), nil)
	}
	deps := r.deps
	deps.Logger = deps.Logger.With(logging.String(logging.FieldDownloader, cfg.Name))
	return factory(cfg, deps)
}
