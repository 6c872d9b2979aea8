package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	qerrors "github.com/quarryhq/quarry/internal/errors"
)

// Config represents the complete Quarry configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Chunking    ChunkingConfig    `yaml:"chunking" json:"chunking"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Taxonomy    TaxonomyConfig    `yaml:"taxonomy" json:"taxonomy"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// PathsConfig narrows which files get indexed.
type PathsConfig struct {
	// Include selects paths relative to the project root. Empty means
	// everything the scanner accepts.
	Include []string `yaml:"include" json:"include"`

	// Exclude vetoes matches. Entries stack on top of the built-in
	// exclude list rather than replacing it.
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// StorageConfig configures where indexes and snapshots live.
// Only DataDir is normally set; the per-file paths are overrides for
// unusual layouts and default to files inside DataDir.
type StorageConfig struct {
	// DataDir is the directory for all persisted state, relative to the
	// project root unless absolute.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// RegistryPath overrides the registry snapshot location.
	RegistryPath string `yaml:"registry_path,omitempty" json:"registry_path,omitempty"`

	// CorpusPath overrides the unit corpus database location.
	CorpusPath string `yaml:"corpus_path,omitempty" json:"corpus_path,omitempty"`

	// LexicalSnapshot overrides the lexical index snapshot location.
	LexicalSnapshot string `yaml:"lexical_snapshot,omitempty" json:"lexical_snapshot,omitempty"`

	// VectorPath overrides the dense vector index location.
	VectorPath string `yaml:"vector_path,omitempty" json:"vector_path,omitempty"`
}

// ChunkingConfig configures the adaptive chunker.
type ChunkingConfig struct {
	// MinSize is the smallest chunk size in characters.
	MinSize int `yaml:"min_size" json:"min_size"`

	// MaxSize is the largest chunk size in characters.
	// Must be >= MinSize; violating this is a fatal configuration error.
	MaxSize int `yaml:"max_size" json:"max_size"`

	// SizeStep is the granularity chunk sizes are floored to.
	SizeStep int `yaml:"size_step" json:"size_step"`

	// ScaleFactor divides page length to grow the chunk size with page
	// density. Larger pages get larger chunks.
	ScaleFactor int `yaml:"scale_factor" json:"scale_factor"`

	// SummaryMaxChars caps the extractive summary prepended to a unit
	// in place of literal overlap.
	SummaryMaxChars int `yaml:"summary_max_chars" json:"summary_max_chars"`

	// CarryAcrossPages carries the summary across page boundaries, so the
	// first unit of a page sees the last unit of the previous page.
	CarryAcrossPages bool `yaml:"carry_across_pages" json:"carry_across_pages"`
}

// SearchConfig configures lexical scoring and rank fusion.
// Weights and RRF constant are configurable via:
//  1. User config (~/.config/quarry/config.yaml) - personal defaults
//  2. Project config (.quarry.yaml) - per-collection tuning
//  3. Env vars (QUARRY_LEXICAL_WEIGHT, QUARRY_SEMANTIC_WEIGHT, QUARRY_RRF_CONSTANT) - highest priority
type SearchConfig struct {
	// LexicalWeight is the fusion weight for keyword matching (0.0-1.0).
	// Must sum to 1.0 with SemanticWeight.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// SemanticWeight is the fusion weight for semantic similarity (0.0-1.0).
	// Must sum to 1.0 with LexicalWeight.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// RRFConstant is the reciprocal rank fusion smoothing parameter (k).
	// Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// K1 controls BM25 term frequency saturation.
	K1 float64 `yaml:"k1" json:"k1"`

	// B controls BM25 document length normalization.
	B float64 `yaml:"b" json:"b"`

	// SemanticTopK is how many candidates the dense backend is asked for.
	SemanticTopK int `yaml:"semantic_top_k" json:"semantic_top_k"`

	// LexicalTopK is how many candidates the lexical index is asked for.
	LexicalTopK int `yaml:"lexical_top_k" json:"lexical_top_k"`

	// MaxResults is the default result count after fusion.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// BackendTimeout bounds each retrieval backend per query (e.g. "5s").
	BackendTimeout string `yaml:"backend_timeout" json:"backend_timeout"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "remote", "static", or empty for
	// auto-detection (remote if reachable, static fallback otherwise).
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// Endpoint is the embedding service URL (default: http://localhost:8089).
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// RateLimit caps requests per second against the embedding service.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`

	// CacheSize is the number of embeddings kept in the LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// TaxonomyConfig extends the built-in topic and domain keyword tables.
// Keys are topic/domain names, values are extra keywords to match.
type TaxonomyConfig struct {
	Topics  map[string][]string `yaml:"topics,omitempty" json:"topics,omitempty"`
	Domains map[string][]string `yaml:"domains,omitempty" json:"domains,omitempty"`
}

// PerformanceConfig bounds resource use during indexing and watch.
type PerformanceConfig struct {
	MaxFiles      int    `yaml:"max_files" json:"max_files"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb" json:"max_file_size_mb"`
	IndexWorkers  int    `yaml:"index_workers" json:"index_workers"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`

	// SQLiteCacheMB sizes the corpus database page cache.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// LoggingConfig sets the level for the rotating file log.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// defaultExcludePatterns apply to every run; project excludes add to
// them rather than replace them.
var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/.quarry/**",
	"**/node_modules/**",
	"**/.DS_Store",
	"**/Thumbs.db",
	"**/~$*", // Office owner files
	"**/*.tmp",
	"**/*.swp",
}

// NewConfig returns the built-in defaults, the base layer every other
// configuration source overrides.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths:   PathsConfig{Include: []string{}, Exclude: defaultExcludePatterns},
		Storage: StorageConfig{DataDir: ".quarry"},
		Chunking: ChunkingConfig{
			MinSize:          256,
			MaxSize:          1536,
			SizeStep:         64,
			ScaleFactor:      8,
			SummaryMaxChars:  150,
			CarryAcrossPages: false,
		},
		Search: SearchConfig{
			LexicalWeight:  0.4,
			SemanticWeight: 0.6,
			RRFConstant:    60,
			K1:             1.5,
			B:              0.75,
			SemanticTopK:   20,
			LexicalTopK:    20,
			MaxResults:     10,
			BackendTimeout: "5s",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // auto-detect
			Model:      "nomic-embed-text",
			Dimensions: 0, // take whatever the embedder reports
			BatchSize:  32,
			Endpoint:   "",
			RateLimit:  8,
			CacheSize:  4096,
		},
		Performance: PerformanceConfig{
			MaxFiles:      100000,
			MaxFileSizeMB: 50,
			IndexWorkers:  runtime.NumCPU(),
			WatchDebounce: "500ms",
			SQLiteCacheMB: 64,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns the user-level config file location:
// $XDG_CONFIG_HOME/quarry/config.yaml when XDG_CONFIG_HOME is set,
// ~/.config/quarry/config.yaml otherwise.
func GetUserConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "quarry", "config.yaml")
}

// GetUserConfigDir returns the directory holding the user config.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether a user config file is present.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the effective configuration for the project at dir.
// Sources apply in order: built-in defaults, the user config, the
// project .quarry.yaml, then QUARRY_* environment variables. Later
// sources win, and the merged result is validated as a whole.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userCfg, err := loadUserConfig()
	if err != nil {
		return nil, err
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, qerrors.ConfigError("invalid configuration", err).
			WithSuggestion("fix the reported setting in .quarry.yaml or remove it to use the default")
	}
	return cfg, nil
}

// LoadUserConfig reads just the user-level config. A missing file
// yields (nil, nil); most installs never create one.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("load user config %s: %w", path, err)
	}
	return cfg, nil
}

// loadFromFile folds the project config into c. Either spelling of the
// file name works, with .yaml preferred; having neither is fine.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".quarry.yaml", ".quarry.yml"} {
		if path := filepath.Join(dir, name); fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith folds the set values of other into c. Zero values mean
// "not set" and leave c alone, which is why a weight of exactly 0 can
// only come from an env var. Include lists replace; exclude lists and
// taxonomy keywords accumulate.
func (c *Config) mergeWith(other *Config) {
	overrideInt(&c.Version, other.Version)

	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	overrideStr(&c.Storage.DataDir, other.Storage.DataDir)
	overrideStr(&c.Storage.RegistryPath, other.Storage.RegistryPath)
	overrideStr(&c.Storage.CorpusPath, other.Storage.CorpusPath)
	overrideStr(&c.Storage.LexicalSnapshot, other.Storage.LexicalSnapshot)
	overrideStr(&c.Storage.VectorPath, other.Storage.VectorPath)

	overrideInt(&c.Chunking.MinSize, other.Chunking.MinSize)
	overrideInt(&c.Chunking.MaxSize, other.Chunking.MaxSize)
	overrideInt(&c.Chunking.SizeStep, other.Chunking.SizeStep)
	overrideInt(&c.Chunking.ScaleFactor, other.Chunking.ScaleFactor)
	overrideInt(&c.Chunking.SummaryMaxChars, other.Chunking.SummaryMaxChars)
	if other.Chunking.CarryAcrossPages {
		c.Chunking.CarryAcrossPages = true
	}

	overrideF64(&c.Search.LexicalWeight, other.Search.LexicalWeight)
	overrideF64(&c.Search.SemanticWeight, other.Search.SemanticWeight)
	overrideInt(&c.Search.RRFConstant, other.Search.RRFConstant)
	overrideF64(&c.Search.K1, other.Search.K1)
	overrideF64(&c.Search.B, other.Search.B)
	overrideInt(&c.Search.SemanticTopK, other.Search.SemanticTopK)
	overrideInt(&c.Search.LexicalTopK, other.Search.LexicalTopK)
	overrideInt(&c.Search.MaxResults, other.Search.MaxResults)
	overrideStr(&c.Search.BackendTimeout, other.Search.BackendTimeout)

	overrideStr(&c.Embeddings.Provider, other.Embeddings.Provider)
	overrideStr(&c.Embeddings.Model, other.Embeddings.Model)
	overrideInt(&c.Embeddings.Dimensions, other.Embeddings.Dimensions)
	overrideInt(&c.Embeddings.BatchSize, other.Embeddings.BatchSize)
	overrideStr(&c.Embeddings.Endpoint, other.Embeddings.Endpoint)
	overrideF64(&c.Embeddings.RateLimit, other.Embeddings.RateLimit)
	overrideInt(&c.Embeddings.CacheSize, other.Embeddings.CacheSize)

	mergeKeywords(&c.Taxonomy.Topics, other.Taxonomy.Topics)
	mergeKeywords(&c.Taxonomy.Domains, other.Taxonomy.Domains)

	overrideInt(&c.Performance.MaxFiles, other.Performance.MaxFiles)
	overrideInt(&c.Performance.MaxFileSizeMB, other.Performance.MaxFileSizeMB)
	overrideInt(&c.Performance.IndexWorkers, other.Performance.IndexWorkers)
	overrideStr(&c.Performance.WatchDebounce, other.Performance.WatchDebounce)
	overrideInt(&c.Performance.SQLiteCacheMB, other.Performance.SQLiteCacheMB)

	overrideStr(&c.Logging.Level, other.Logging.Level)
}

func overrideStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func overrideF64(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// mergeKeywords appends src's keyword lists to dst's, keyed by topic or
// domain name. Extending a built-in topic and adding a new one look the
// same here.
func mergeKeywords(dst *map[string][]string, src map[string][]string) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = make(map[string][]string, len(src))
	}
	for name, words := range src {
		(*dst)[name] = append((*dst)[name], words...)
	}
}

// applyEnvOverrides applies QUARRY_* variables on top of everything
// else. Values that fail to parse or fall outside their range are
// ignored rather than turned into errors.
func (c *Config) applyEnvOverrides() {
	envWeight(&c.Search.LexicalWeight, "QUARRY_LEXICAL_WEIGHT")
	envWeight(&c.Search.SemanticWeight, "QUARRY_SEMANTIC_WEIGHT")
	envPosInt(&c.Search.RRFConstant, "QUARRY_RRF_CONSTANT")

	envString(&c.Storage.DataDir, "QUARRY_DATA_DIR")
	envString(&c.Embeddings.Provider, "QUARRY_EMBEDDINGS_PROVIDER")
	envString(&c.Embeddings.Provider, "QUARRY_EMBEDDER") // shorthand for the above
	envString(&c.Embeddings.Model, "QUARRY_EMBEDDINGS_MODEL")
	envString(&c.Embeddings.Endpoint, "QUARRY_EMBEDDINGS_ENDPOINT")
	envString(&c.Logging.Level, "QUARRY_LOG_LEVEL")
	envPosInt(&c.Performance.IndexWorkers, "QUARRY_INDEX_WORKERS")
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envWeight accepts values in [0, 1]. Unlike file merging, an explicit
// 0 is honored here; the env var is the only way to zero out a weight.
func envWeight(dst *float64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
		*dst = w
	}
}

func envPosInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
		*dst = n
	}
}

// Validate reports the first setting the pipeline cannot run with.
// Load calls this after all sources are merged, so failures name the
// effective value rather than any single file's.
func (c *Config) Validate() error {
	s := c.Search
	if s.LexicalWeight < 0 || s.LexicalWeight > 1 {
		return fmt.Errorf("search.lexical_weight must be between 0 and 1, got %g", s.LexicalWeight)
	}
	if s.SemanticWeight < 0 || s.SemanticWeight > 1 {
		return fmt.Errorf("search.semantic_weight must be between 0 and 1, got %g", s.SemanticWeight)
	}
	if sum := s.LexicalWeight + s.SemanticWeight; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("search.lexical_weight + search.semantic_weight must equal 1.0, got %.2f", sum)
	}
	if s.K1 <= 0 {
		return fmt.Errorf("search.k1 must be positive, got %g", s.K1)
	}
	if s.B < 0 || s.B > 1 {
		return fmt.Errorf("search.b must be between 0 and 1, got %g", s.B)
	}
	if s.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", s.MaxResults)
	}

	// Chunking bounds are fatal: indexing must never start with a
	// chunker that cannot honor its own size contract.
	ch := c.Chunking
	if ch.MinSize <= 0 {
		return fmt.Errorf("chunking.min_size must be positive, got %d", ch.MinSize)
	}
	if ch.MaxSize < ch.MinSize {
		return fmt.Errorf("chunking.max_size (%d) must be >= chunking.min_size (%d)", ch.MaxSize, ch.MinSize)
	}
	if ch.SizeStep <= 0 {
		return fmt.Errorf("chunking.size_step must be positive, got %d", ch.SizeStep)
	}
	if ch.ScaleFactor <= 0 {
		return fmt.Errorf("chunking.scale_factor must be positive, got %d", ch.ScaleFactor)
	}
	if ch.SummaryMaxChars < 0 {
		return fmt.Errorf("chunking.summary_max_chars must be non-negative, got %d", ch.SummaryMaxChars)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "", "remote", "static":
	default:
		return fmt.Errorf("embeddings.provider must be 'remote', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML marshals the full configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// MergeNewDefaults fills zero-valued fields from the current defaults
// and reports which were added. `quarry config init --force` uses this
// to upgrade an old user config without losing its settings.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string
	fillInt := func(dst *int, v int, name string) {
		if *dst == 0 {
			*dst = v
			added = append(added, name)
		}
	}
	fillF64 := func(dst *float64, v float64, name string) {
		if *dst == 0 {
			*dst = v
			added = append(added, name)
		}
	}

	fillF64(&c.Search.LexicalWeight, defaults.Search.LexicalWeight, "search.lexical_weight")
	fillF64(&c.Search.SemanticWeight, defaults.Search.SemanticWeight, "search.semantic_weight")
	fillInt(&c.Search.RRFConstant, defaults.Search.RRFConstant, "search.rrf_constant")
	fillF64(&c.Search.K1, defaults.Search.K1, "search.k1")
	fillF64(&c.Search.B, defaults.Search.B, "search.b")

	fillInt(&c.Chunking.MinSize, defaults.Chunking.MinSize, "chunking.min_size")
	fillInt(&c.Chunking.MaxSize, defaults.Chunking.MaxSize, "chunking.max_size")
	fillInt(&c.Chunking.SizeStep, defaults.Chunking.SizeStep, "chunking.size_step")
	fillInt(&c.Chunking.ScaleFactor, defaults.Chunking.ScaleFactor, "chunking.scale_factor")
	fillInt(&c.Chunking.SummaryMaxChars, defaults.Chunking.SummaryMaxChars, "chunking.summary_max_chars")

	fillInt(&c.Embeddings.CacheSize, defaults.Embeddings.CacheSize, "embeddings.cache_size")
	fillInt(&c.Performance.SQLiteCacheMB, defaults.Performance.SQLiteCacheMB, "performance.sqlite_cache_mb")

	return added
}

// FindProjectRoot walks up from startDir until it finds a project
// marker, either a .git directory or a .quarry.yaml/.yml file. Without
// a marker it settles on startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", startDir, err)
	}
	for dir := abs; ; {
		if isProjectRoot(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

func isProjectRoot(dir string) bool {
	return dirExists(filepath.Join(dir, ".git")) ||
		fileExists(filepath.Join(dir, ".quarry.yaml")) ||
		fileExists(filepath.Join(dir, ".quarry.yml"))
}

// ResolveDataDir resolves the data directory against the project root.
// Absolute paths are used as-is.
func (c *Config) ResolveDataDir(root string) string {
	return resolveAgainst(root, c.Storage.DataDir)
}

// RegistryFile returns the registry snapshot path.
func (c *Config) RegistryFile(root string) string {
	if c.Storage.RegistryPath != "" {
		return resolveAgainst(root, c.Storage.RegistryPath)
	}
	return filepath.Join(c.ResolveDataDir(root), "registry.json")
}

// CorpusFile returns the unit corpus database path.
func (c *Config) CorpusFile(root string) string {
	if c.Storage.CorpusPath != "" {
		return resolveAgainst(root, c.Storage.CorpusPath)
	}
	return filepath.Join(c.ResolveDataDir(root), "units.db")
}

// LexicalSnapshotFile returns the lexical index snapshot path.
func (c *Config) LexicalSnapshotFile(root string) string {
	if c.Storage.LexicalSnapshot != "" {
		return resolveAgainst(root, c.Storage.LexicalSnapshot)
	}
	return filepath.Join(c.ResolveDataDir(root), "lexical.gob")
}

// VectorFile returns the dense vector index path.
func (c *Config) VectorFile(root string) string {
	if c.Storage.VectorPath != "" {
		return resolveAgainst(root, c.Storage.VectorPath)
	}
	return filepath.Join(c.ResolveDataDir(root), "vectors.hnsw")
}

func resolveAgainst(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// DiscoverDocDirs reports common documentation locations under dir.
// `quarry init` offers these as starting include paths.
func DiscoverDocDirs(dir string) []string {
	var found []string
	for _, d := range []string{"docs", "doc", "documents", "notes", "wiki"} {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}
	// At most one README; any spelling stands in for the rest.
	for _, f := range []string{"README.md", "readme.md", "README.markdown"} {
		if fileExists(filepath.Join(dir, f)) {
			found = append(found, f)
			break
		}
	}
	return found
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
