package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	qerrors "github.com/quarryhq/quarry/internal/errors"
)

// Provider identifies an embedding provider.
type Provider string

const (
	// ProviderRemote uses the HTTP embedding service.
	ProviderRemote Provider = "remote"

	// ProviderStatic uses the deterministic hash-based embedder.
	ProviderStatic Provider = "static"

	// ProviderAuto probes the remote service and falls back to static.
	ProviderAuto Provider = "auto"
)

// ParseProvider maps a configured provider name to a Provider. Unknown
// and empty names select auto-detection.
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remote":
		return ProviderRemote
	case "static":
		return ProviderStatic
	default:
		return ProviderAuto
	}
}

// String returns the provider name.
func (p Provider) String() string {
	return string(p)
}

// Options configures embedder construction.
type Options struct {
	// Provider selects the embedder: "remote", "static", or empty for
	// auto-detection.
	Provider string

	// Endpoint, Model, Dimensions, BatchSize and RateLimit configure
	// the remote client; see RemoteConfig.
	Endpoint   string
	Model      string
	Dimensions int
	BatchSize  int
	RateLimit  float64

	// CacheSize is the embedding cache capacity. Zero applies the
	// default, negative disables caching.
	CacheSize int

	// Offline forces the static embedder regardless of Provider.
	Offline bool
}

// availabilityProbeTimeout bounds auto-detection probing. It covers a
// health check plus one probe embedding against a service that may
// still be loading its model.
const availabilityProbeTimeout = 15 * time.Second

// NewEmbedder builds the embedder selected by opts and wraps it with
// the LRU cache unless caching is disabled. Under auto-detection an
// unreachable service degrades to the static embedder with a warning;
// an explicitly requested remote provider fails instead.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	embedder, err := newProvider(ctx, opts)
	if err != nil {
		return nil, err
	}

	if opts.CacheSize >= 0 {
		embedder = NewCachedEmbedder(embedder, opts.CacheSize)
	}
	return embedder, nil
}

func newProvider(ctx context.Context, opts Options) (Embedder, error) {
	if opts.Offline {
		return NewStaticEmbedder(), nil
	}

	switch ParseProvider(opts.Provider) {
	case ProviderStatic:
		return NewStaticEmbedder(), nil

	case ProviderRemote:
		remote, err := NewRemoteEmbedder(ctx, remoteConfig(opts))
		if err != nil {
			return nil, qerrors.New(qerrors.ErrCodeBackendUnavailable,
				fmt.Sprintf("embedding service unavailable: %v", err), err).
				WithSuggestion("start the embedding service or set embeddings.provider to static")
		}
		return remote, nil

	default:
		cfg := remoteConfig(opts)
		probeCtx, cancel := context.WithTimeout(ctx, availabilityProbeTimeout)
		defer cancel()

		remote, err := NewRemoteEmbedder(probeCtx, cfg)
		if err == nil {
			return remote, nil
		}
		slog.Warn("embedder_fallback",
			slog.String("endpoint", cfg.Endpoint),
			slog.String("error", err.Error()))
		return NewStaticEmbedder(), nil
	}
}

// remoteConfig maps factory options onto the remote client config.
func remoteConfig(opts Options) RemoteConfig {
	cfg := DefaultRemoteConfig()
	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Dimensions > 0 {
		cfg.Dimensions = opts.Dimensions
	}
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}
	if opts.RateLimit != 0 {
		cfg.RateLimit = opts.RateLimit
	}
	return cfg
}

// EmbedderInfo describes a constructed embedder for status output.
type EmbedderInfo struct {
	Provider   Provider
	Model      string
	Dimensions int
	Available  bool // probed at call time
}

// GetInfo reports the provider, model, vector width and availability of
// an embedder, unwrapping the cache layer if present.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.Inner()
	}
	provider := ProviderStatic
	if _, ok := inner.(*RemoteEmbedder); ok {
		provider = ProviderRemote
	}
	return EmbedderInfo{
		Provider:   provider,
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}
}
