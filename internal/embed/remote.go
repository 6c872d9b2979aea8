package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	qerrors "github.com/quarryhq/quarry/internal/errors"
)

const (
	// DefaultEndpoint is the embedding service used when none is
	// configured.
	DefaultEndpoint = "http://localhost:8089"

	// DefaultRemoteModel is the embedding model requested by default.
	DefaultRemoteModel = "nomic-embed-text"

	// DefaultRateLimit is the allowed request rate against the service,
	// in requests per second.
	DefaultRateLimit = 8

	// DefaultMaxRetries is the number of retries after a failed request.
	DefaultMaxRetries = 2

	// remotePoolSize is the connection pool size for the service client.
	remotePoolSize = 4
)

// RemoteConfig configures the remote embedding service client.
type RemoteConfig struct {
	// Endpoint is the base URL of the embedding service.
	Endpoint string

	// Model is the embedding model requested from the service.
	Model string

	// Dimensions is the expected vector width. Zero means detect it
	// from the first response.
	Dimensions int

	// BatchSize is the number of texts sent per request.
	BatchSize int

	// RateLimit caps requests per second. Zero applies DefaultRateLimit,
	// negative disables limiting.
	RateLimit float64

	// WarmTimeout and ColdTimeout bound a single request depending on
	// whether the service answered recently.
	WarmTimeout time.Duration
	ColdTimeout time.Duration

	// MaxRetries is the number of retries after a failed request. The
	// zero value disables retries; DefaultRemoteConfig sets
	// DefaultMaxRetries.
	MaxRetries int

	// SkipProbe skips the startup health check and dimension probe.
	SkipProbe bool

	// ProgressFunc, when set, receives (completed, total) counts after
	// each request of a batch.
	ProgressFunc ProgressFunc
}

// DefaultRemoteConfig returns the default remote client configuration.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Endpoint:    DefaultEndpoint,
		Model:       DefaultRemoteModel,
		BatchSize:   DefaultBatchSize,
		RateLimit:   DefaultRateLimit,
		WarmTimeout: DefaultWarmTimeout,
		ColdTimeout: DefaultColdTimeout,
		MaxRetries:  DefaultMaxRetries,
	}
}

// embedRequest is the wire format sent to the service.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the wire format returned by the service.
type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// RemoteEmbedder generates embeddings through an HTTP embedding
// service. Every request passes a rate limiter and a circuit breaker,
// and transient failures are retried with exponential backoff.
type RemoteEmbedder struct {
	client    *http.Client
	transport *http.Transport
	limiter   *rate.Limiter
	breaker   *qerrors.CircuitBreaker
	retry     qerrors.RetryConfig
	config    RemoteConfig
	dims      int

	mu       sync.RWMutex
	closed   bool
	lastCall time.Time
	progress ProgressFunc
}

var _ Embedder = (*RemoteEmbedder)(nil)

// NewRemoteEmbedder creates a client for the configured embedding
// service. Unless cfg.SkipProbe is set it verifies the service is
// reachable and, when no width is configured, detects one from a probe
// embedding.
func NewRemoteEmbedder(ctx context.Context, cfg RemoteConfig) (*RemoteEmbedder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultRemoteModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.WarmTimeout <= 0 {
		cfg.WarmTimeout = DefaultWarmTimeout
	}
	if cfg.ColdTimeout <= 0 {
		cfg.ColdTimeout = DefaultColdTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	// Idle connections are dropped quickly: indexing runs are
	// short-lived CLI invocations, not a long-running server.
	transport := &http.Transport{
		MaxIdleConns:        remotePoolSize,
		MaxIdleConnsPerHost: remotePoolSize,
		MaxConnsPerHost:     remotePoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	// No client-level timeout. Deadlines come from per-request contexts
	// so warm and cold requests can be bounded differently.
	client := &http.Client{Transport: transport}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	e := &RemoteEmbedder{
		client:    client,
		transport: transport,
		limiter:   limiter,
		breaker:   qerrors.NewCircuitBreaker("embedding-service"),
		retry: qerrors.RetryConfig{
			MaxRetries:   cfg.MaxRetries,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
		config:   cfg,
		dims:     cfg.Dimensions,
		progress: cfg.ProgressFunc,
	}

	if !cfg.SkipProbe {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.ColdTimeout)
		defer cancel()

		if err := e.ping(probeCtx); err != nil {
			transport.CloseIdleConnections()
			return nil, fmt.Errorf("embedding service unreachable at %s: %w", cfg.Endpoint, err)
		}
		if e.dims == 0 {
			dims, err := e.detectDimensions(probeCtx)
			if err != nil {
				transport.CloseIdleConnections()
				return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
			}
			e.dims = dims
		}
	}
	if e.dims == 0 {
		e.dims = DefaultDimensions
	}

	return e, nil
}

// ping checks the service health endpoint.
func (e *RemoteEmbedder) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// detectDimensions learns the vector width from a probe embedding.
func (e *RemoteEmbedder) detectDimensions(ctx context.Context) (int, error) {
	embeddings, err := e.doEmbed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(embeddings[0]) == 0 {
		return 0, fmt.Errorf("service returned an empty embedding")
	}
	return len(embeddings[0]), nil
}

// Embed generates the embedding for a single text. Blank text yields a
// zero vector without touching the service.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, errClosed
	}
	e.mu.RUnlock()

	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}

	embeddings, err := e.embedGuarded(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts. Blank texts get
// zero vectors locally; the rest are sent in request-sized slices.
// Cancellation is honored between requests.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, errClosed
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	type indexedText struct {
		idx  int
		text string
	}
	results := make([][]float32, len(texts))
	var pending []indexedText
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
		} else {
			pending = append(pending, indexedText{i, text})
		}
	}
	if len(pending) == 0 {
		return results, nil
	}

	for start := 0; start < len(pending); start += e.config.BatchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + e.config.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]
		batchTexts := make([]string, len(batch))
		for i, it := range batch {
			batchTexts[i] = it.text
		}

		embeddings, err := e.embedGuarded(ctx, batchTexts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}
		for i, emb := range embeddings {
			results[batch[i].idx] = emb
		}

		e.mu.RLock()
		report := e.progress
		e.mu.RUnlock()
		if report != nil {
			report(end, len(pending))
		}
	}
	return results, nil
}

// embedGuarded sends one embedding request through the circuit breaker
// and the retry loop.
func (e *RemoteEmbedder) embedGuarded(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := qerrors.CircuitExecuteWithResult(e.breaker,
		func() ([][]float32, error) {
			return qerrors.RetryWithResult(ctx, e.retry, func() ([][]float32, error) {
				return e.doEmbedOnce(ctx, texts)
			})
		},
		func() ([][]float32, error) {
			return nil, fmt.Errorf("embedding service at %s: %w", e.config.Endpoint, qerrors.ErrCircuitOpen)
		})
	if err != nil {
		if !errors.Is(err, qerrors.ErrCircuitOpen) && e.breaker.State() == qerrors.StateOpen {
			slog.Warn("embed_circuit_open",
				slog.String("endpoint", e.config.Endpoint),
				slog.Int("failures", e.breaker.Failures()))
		}
		return nil, err
	}

	e.mu.Lock()
	e.lastCall = time.Now()
	e.mu.Unlock()
	return embeddings, nil
}

// doEmbedOnce performs a single rate-limited request attempt. Waiting
// for a limiter token consumes no request deadline; the warm or cold
// timeout starts once the token is held.
func (e *RemoteEmbedder) doEmbedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	timeout := e.requestTimeout()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.Debug("embed_request",
		slog.Int("texts", len(texts)),
		slog.Duration("timeout", timeout))

	embeddings, err := e.doEmbed(callCtx, texts)
	if err != nil {
		slog.Debug("embed_request_failed",
			slog.Int("texts", len(texts)),
			slog.String("error", err.Error()))
		return nil, err
	}
	return embeddings, nil
}

// requestTimeout returns the cold timeout when the service has been
// idle long enough to unload the model, the warm timeout otherwise.
func (e *RemoteEmbedder) requestTimeout() time.Duration {
	e.mu.RLock()
	lastCall := e.lastCall
	e.mu.RUnlock()

	if lastCall.IsZero() || time.Since(lastCall) > ModelIdleThreshold {
		return e.config.ColdTimeout
	}
	return e.config.WarmTimeout
}

// doEmbed sends one embedding request and decodes the response. The
// returned vectors are normalized and index-aligned with texts.
func (e *RemoteEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("service returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		embeddings[i] = normalizeVector(vec)
	}
	return embeddings, nil
}

// Dimensions returns the embedding vector width.
func (e *RemoteEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *RemoteEmbedder) ModelName() string {
	return e.config.Model
}

// Available reports whether the service health endpoint answers. The
// caller's context bounds the check.
func (e *RemoteEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	return e.ping(ctx) == nil
}

// SetProgressFunc sets the callback receiving (completed, total) counts
// during EmbedBatch.
func (e *RemoteEmbedder) SetProgressFunc(fn ProgressFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = fn
}

// Close releases idle connections. Further calls fail.
func (e *RemoteEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.transport != nil {
		e.transport.CloseIdleConnections()
	}
	return nil
}
