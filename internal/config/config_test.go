package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// projectDir creates a temp project holding the given .quarry.yaml
// content (none when empty) and isolates the user config, so only the
// files this test writes are in play.
func projectDir(t *testing.T, yamlContent string) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	if yamlContent != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".quarry.yaml"), []byte(yamlContent), 0o644))
	}
	return dir
}

// writeUserConfig puts content at the isolated user config location.
// Call after projectDir so XDG_CONFIG_HOME already points at a temp dir.
func writeUserConfig(t *testing.T, content string) string {
	t.Helper()
	path := GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults_SearchTuning(t *testing.T) {
	cfg := NewConfig()

	assert.InDelta(t, 0.4, cfg.Search.LexicalWeight, 1e-9)
	assert.InDelta(t, 0.6, cfg.Search.SemanticWeight, 1e-9)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.InDelta(t, 1.5, cfg.Search.K1, 1e-9)
	assert.InDelta(t, 0.75, cfg.Search.B, 1e-9)
	assert.Equal(t, 20, cfg.Search.LexicalTopK)
	assert.Equal(t, 20, cfg.Search.SemanticTopK)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, "5s", cfg.Search.BackendTimeout)
}

func TestDefaults_ChunkingProfile(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 256, cfg.Chunking.MinSize)
	assert.Equal(t, 1536, cfg.Chunking.MaxSize)
	assert.Equal(t, 64, cfg.Chunking.SizeStep)
	assert.Equal(t, 8, cfg.Chunking.ScaleFactor)
	assert.Equal(t, 150, cfg.Chunking.SummaryMaxChars)
	assert.False(t, cfg.Chunking.CarryAcrossPages)
}

func TestDefaults_RuntimeAndStorage(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, ".quarry", cfg.Storage.DataDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, runtime.NumCPU(), cfg.Performance.IndexWorkers)
	assert.Equal(t, 64, cfg.Performance.SQLiteCacheMB)

	// Auto-detection markers stay empty until resolved at runtime.
	assert.Empty(t, cfg.Embeddings.Provider)
	assert.Zero(t, cfg.Embeddings.Dimensions)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)

	for _, pat := range []string{"**/.git/**", "**/.quarry/**", "**/~$*"} {
		assert.Contains(t, cfg.Paths.Exclude, pat)
	}
}

func TestLoad_WithoutAnyFiles(t *testing.T) {
	// Given: a bare project and no user config
	dir := projectDir(t, "")

	// When: loading
	cfg, err := Load(dir)

	// Then: the defaults come back and already validate
	require.NoError(t, err)
	assert.InDelta(t, 0.4, cfg.Search.LexicalWeight, 1e-9)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ProjectFileOverrides(t *testing.T) {
	// Given: a project file touching a few sections
	dir := projectDir(t, `
version: 1
search:
  lexical_weight: 0.5
  semantic_weight: 0.5
  rrf_constant: 100
chunking:
  min_size: 512
  carry_across_pages: true
`)

	// When: loading
	cfg, err := Load(dir)

	// Then: set fields override, unset fields keep defaults
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cfg.Search.LexicalWeight, 1e-9)
	assert.Equal(t, 100, cfg.Search.RRFConstant)
	assert.Equal(t, 512, cfg.Chunking.MinSize)
	assert.True(t, cfg.Chunking.CarryAcrossPages)
	assert.Equal(t, 1536, cfg.Chunking.MaxSize)
	assert.Equal(t, 64, cfg.Chunking.SizeStep)
}

func TestLoad_FileNameSpellings(t *testing.T) {
	t.Run("yml alone is recognized", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		dir := t.TempDir()
		yml := "version: 1\nembeddings:\n  provider: static\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".quarry.yml"), []byte(yml), 0o644))

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "static", cfg.Embeddings.Provider)
	})

	t.Run("yaml wins over yml", func(t *testing.T) {
		dir := projectDir(t, "version: 1\nembeddings:\n  provider: remote\n")
		yml := "version: 1\nembeddings:\n  provider: static\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".quarry.yml"), []byte(yml), 0o644))

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "remote", cfg.Embeddings.Provider)
	})
}

func TestLoad_BadSyntaxSurfacesParseError(t *testing.T) {
	// Given: a file that is not YAML
	dir := projectDir(t, "search:\n  lexical_weight: [unclosed\n")

	// When: loading
	cfg, err := Load(dir)

	// Then: the parse failure names the file
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse")
	assert.Contains(t, err.Error(), ".quarry.yaml")
}

func TestLoad_WrongScalarTypeFails(t *testing.T) {
	// Given: a string where an int belongs
	dir := projectDir(t, "chunking:\n  min_size: plenty\n")

	// When: loading
	cfg, err := Load(dir)

	// Then: the YAML type error surfaces
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_UnreadableFileFails(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root, permission bits do not apply")
	}

	// Given: a config file with no read permission
	dir := projectDir(t, "")
	path := filepath.Join(dir, ".quarry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1"), 0o000))
	defer func() { _ = os.Chmod(path, 0o644) }()

	// When: loading
	cfg, err := Load(dir)

	// Then: the read failure surfaces instead of silently using defaults
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_LayerPrecedence(t *testing.T) {
	// Given: the same field set at several layers, plus fields set at
	// only one
	dir := projectDir(t, "embeddings:\n  model: project-model\n")
	writeUserConfig(t, "embeddings:\n  provider: remote\n  model: user-model\n")
	t.Setenv("QUARRY_EMBEDDINGS_MODEL", "env-model")

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: env beats project beats user, and the user's untouched
	// provider still applies
	assert.Equal(t, "env-model", cfg.Embeddings.Model)
	assert.Equal(t, "remote", cfg.Embeddings.Provider)
}

func TestLoad_UserConfigAloneApplies(t *testing.T) {
	// Given: only a user config
	dir := projectDir(t, "")
	writeUserConfig(t, "embeddings:\n  endpoint: http://gpu-box:8089\n")

	// When: loading
	cfg, err := Load(dir)

	// Then: the user setting lands
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:8089", cfg.Embeddings.Endpoint)
}

func TestLoad_BrokenUserConfigFails(t *testing.T) {
	// Given: an unparseable user config
	dir := projectDir(t, "")
	writeUserConfig(t, "embeddings:\n  model: [unclosed\n")

	// When: loading
	cfg, err := Load(dir)

	// Then: the error points at the user config, not the project
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "user config")
}

func TestEnvOverrides(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		got  func(*Config) any
		want any
	}{
		{
			name: "provider",
			env:  map[string]string{"QUARRY_EMBEDDINGS_PROVIDER": "static"},
			got:  func(c *Config) any { return c.Embeddings.Provider },
			want: "static",
		},
		{
			name: "provider shorthand",
			env:  map[string]string{"QUARRY_EMBEDDER": "remote"},
			got:  func(c *Config) any { return c.Embeddings.Provider },
			want: "remote",
		},
		{
			name: "model",
			env:  map[string]string{"QUARRY_EMBEDDINGS_MODEL": "all-minilm"},
			got:  func(c *Config) any { return c.Embeddings.Model },
			want: "all-minilm",
		},
		{
			name: "endpoint",
			env:  map[string]string{"QUARRY_EMBEDDINGS_ENDPOINT": "http://gpu-box:8089"},
			got:  func(c *Config) any { return c.Embeddings.Endpoint },
			want: "http://gpu-box:8089",
		},
		{
			name: "log level",
			env:  map[string]string{"QUARRY_LOG_LEVEL": "debug"},
			got:  func(c *Config) any { return c.Logging.Level },
			want: "debug",
		},
		{
			name: "data dir",
			env:  map[string]string{"QUARRY_DATA_DIR": "/var/lib/quarry"},
			got:  func(c *Config) any { return c.Storage.DataDir },
			want: "/var/lib/quarry",
		},
		{
			name: "rrf constant",
			env:  map[string]string{"QUARRY_RRF_CONSTANT": "80"},
			got:  func(c *Config) any { return c.Search.RRFConstant },
			want: 80,
		},
		{
			name: "rrf must be numeric",
			env:  map[string]string{"QUARRY_RRF_CONSTANT": "eighty"},
			got:  func(c *Config) any { return c.Search.RRFConstant },
			want: 60,
		},
		{
			name: "rrf must be positive",
			env:  map[string]string{"QUARRY_RRF_CONSTANT": "-3"},
			got:  func(c *Config) any { return c.Search.RRFConstant },
			want: 60,
		},
		{
			name: "index workers",
			env:  map[string]string{"QUARRY_INDEX_WORKERS": "2"},
			got:  func(c *Config) any { return c.Performance.IndexWorkers },
			want: 2,
		},
		{
			name: "weight zeroed explicitly",
			env: map[string]string{
				"QUARRY_LEXICAL_WEIGHT":  "0",
				"QUARRY_SEMANTIC_WEIGHT": "1",
			},
			got:  func(c *Config) any { return c.Search.LexicalWeight },
			want: 0.0,
		},
		{
			name: "weight out of range is ignored",
			env:  map[string]string{"QUARRY_LEXICAL_WEIGHT": "1.5"},
			got:  func(c *Config) any { return c.Search.LexicalWeight },
			want: 0.4,
		},
		{
			name: "empty value means unset",
			env:  map[string]string{"QUARRY_EMBEDDINGS_PROVIDER": ""},
			got:  func(c *Config) any { return c.Embeddings.Provider },
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := projectDir(t, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.got(cfg))
		})
	}
}

func TestEnvOverride_BeatsProjectFile(t *testing.T) {
	// Given: the same knob in the file and the environment
	dir := projectDir(t, "search:\n  rrf_constant: 100\n")
	t.Setenv("QUARRY_RRF_CONSTANT", "80")

	// When: loading
	cfg, err := Load(dir)

	// Then: the environment wins
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Search.RRFConstant)
}

func TestMerge_ExcludesAccumulate(t *testing.T) {
	// Given: a project adding its own exclude
	dir := projectDir(t, "paths:\n  exclude:\n    - \"**/drafts/**\"\n")

	// When: loading
	cfg, err := Load(dir)

	// Then: the built-in excludes are still present
	require.NoError(t, err)
	assert.Contains(t, cfg.Paths.Exclude, "**/drafts/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/.git/**")
}

func TestMerge_IncludesReplace(t *testing.T) {
	// Given: includes at both the user and project layer
	dir := projectDir(t, "paths:\n  include:\n    - \"wiki/**\"\n")
	writeUserConfig(t, "paths:\n  include:\n    - \"docs/**\"\n")

	// When: loading
	cfg, err := Load(dir)

	// Then: the project's list replaces the user's outright
	require.NoError(t, err)
	assert.Equal(t, []string{"wiki/**"}, cfg.Paths.Include)
}

func TestMerge_TaxonomyKeywordsAccumulate(t *testing.T) {
	// Given: taxonomy extensions at two layers sharing a topic
	dir := projectDir(t, `
taxonomy:
  topics:
    compliance: [audit]
    billing: [invoice]
`)
	writeUserConfig(t, "taxonomy:\n  topics:\n    compliance: [gdpr]\n")

	// When: loading
	cfg, err := Load(dir)

	// Then: keywords pile up per topic instead of replacing
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gdpr", "audit"}, cfg.Taxonomy.Topics["compliance"])
	assert.Equal(t, []string{"invoice"}, cfg.Taxonomy.Topics["billing"])
}

func TestMerge_ZeroValuesLeaveDefaults(t *testing.T) {
	// Given: a file setting exactly one field
	dir := projectDir(t, "search:\n  max_results: 25\n")

	// When: loading
	cfg, err := Load(dir)

	// Then: everything else keeps its default
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Search.MaxResults)
	assert.InDelta(t, 0.4, cfg.Search.LexicalWeight, 1e-9)
	assert.InDelta(t, 1.5, cfg.Search.K1, 1e-9)
	assert.Equal(t, 256, cfg.Chunking.MinSize)
}

func TestValidate_RejectsBadSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults pass", func(c *Config) {}, ""},
		{"uppercase provider passes", func(c *Config) { c.Embeddings.Provider = "REMOTE" }, ""},
		{"uppercase level passes", func(c *Config) { c.Logging.Level = "WARN" }, ""},
		{"negative lexical weight", func(c *Config) { c.Search.LexicalWeight = -0.1 }, "search.lexical_weight"},
		{"semantic weight above one", func(c *Config) { c.Search.SemanticWeight = 1.5 }, "search.semantic_weight"},
		{"weights off balance", func(c *Config) { c.Search.LexicalWeight, c.Search.SemanticWeight = 0.8, 0.8 }, "must equal 1.0"},
		{"zero k1", func(c *Config) { c.Search.K1 = 0 }, "search.k1"},
		{"b above one", func(c *Config) { c.Search.B = 1.2 }, "search.b"},
		{"negative max results", func(c *Config) { c.Search.MaxResults = -5 }, "max_results"},
		{"zero min size", func(c *Config) { c.Chunking.MinSize = 0 }, "min_size"},
		{"inverted chunk bounds", func(c *Config) { c.Chunking.MinSize, c.Chunking.MaxSize = 2048, 1024 }, "max_size"},
		{"zero size step", func(c *Config) { c.Chunking.SizeStep = 0 }, "size_step"},
		{"zero scale factor", func(c *Config) { c.Chunking.ScaleFactor = 0 }, "scale_factor"},
		{"negative summary cap", func(c *Config) { c.Chunking.SummaryMaxChars = -1 }, "summary_max_chars"},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "carrier-pigeon" }, "embeddings.provider"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ValidatesMergedResult(t *testing.T) {
	// Given: a file whose settings are individually fine but clash
	dir := projectDir(t, "chunking:\n  min_size: 1024\n  max_size: 512\n")

	// When: loading
	cfg, err := Load(dir)

	// Then: validation runs on the merged result and rejects it
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "max_size")
}

func TestUserConfigPath_FollowsXDG(t *testing.T) {
	t.Run("explicit XDG_CONFIG_HOME", func(t *testing.T) {
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		assert.Equal(t, filepath.Join(base, "quarry", "config.yaml"), GetUserConfigPath())
	})

	t.Run("falls back to ~/.config", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".config", "quarry", "config.yaml"), GetUserConfigPath())
	})

	t.Run("dir is the parent of the file", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		assert.Equal(t, filepath.Dir(GetUserConfigPath()), GetUserConfigDir())
	})
}

func TestUserConfigExists(t *testing.T) {
	// Given: an isolated, empty XDG home
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	assert.False(t, UserConfigExists())

	// When: the file appears
	writeUserConfig(t, "version: 1\n")

	// Then: it is seen
	assert.True(t, UserConfigExists())
}

func TestFindProjectRoot_Markers(t *testing.T) {
	mark := map[string]func(t *testing.T, root string){
		".git directory": func(t *testing.T, root string) {
			require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
		},
		".quarry.yaml file": func(t *testing.T, root string) {
			require.NoError(t, os.WriteFile(filepath.Join(root, ".quarry.yaml"), []byte("version: 1"), 0o644))
		},
		".quarry.yml file": func(t *testing.T, root string) {
			require.NoError(t, os.WriteFile(filepath.Join(root, ".quarry.yml"), []byte("version: 1"), 0o644))
		},
	}

	for name, plant := range mark {
		t.Run(name, func(t *testing.T) {
			// Given: a marker at the top and a deeply nested start point
			root := t.TempDir()
			plant(t, root)
			start := filepath.Join(root, "docs", "guides", "admin")
			require.NoError(t, os.MkdirAll(start, 0o755))

			// When: walking up from the nested directory
			got, err := FindProjectRoot(start)

			// Then: the marker's directory wins
			require.NoError(t, err)
			assert.Equal(t, root, got)
		})
	}
}

func TestFindProjectRoot_NoMarkerSettlesOnStart(t *testing.T) {
	dir := t.TempDir()

	root, err := FindProjectRoot(dir)

	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestFindProjectRoot_RelativeStartComesBackAbsolute(t *testing.T) {
	// Given: the working directory is itself a project root
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(orig) }()

	// When: starting from "."
	root, err := FindProjectRoot(".")

	// Then: the result is absolute
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(root))
}

func TestStoragePaths_DeriveFromDataDir(t *testing.T) {
	cfg := NewConfig()
	root := "/srv/project"

	data := cfg.ResolveDataDir(root)
	assert.Equal(t, filepath.Join(root, ".quarry"), data)
	assert.Equal(t, filepath.Join(data, "registry.json"), cfg.RegistryFile(root))
	assert.Equal(t, filepath.Join(data, "units.db"), cfg.CorpusFile(root))
	assert.Equal(t, filepath.Join(data, "lexical.gob"), cfg.LexicalSnapshotFile(root))
	assert.Equal(t, filepath.Join(data, "vectors.hnsw"), cfg.VectorFile(root))
}

func TestStoragePaths_HonorOverrides(t *testing.T) {
	cfg := NewConfig()
	cfg.Storage.DataDir = "/var/lib/quarry"
	cfg.Storage.RegistryPath = "state/reg.json"
	cfg.Storage.VectorPath = "/mnt/fast/vec.hnsw"
	root := "/srv/project"

	// Absolute data dir ignores the root; per-file overrides resolve
	// against the root unless absolute themselves.
	assert.Equal(t, "/var/lib/quarry", cfg.ResolveDataDir(root))
	assert.Equal(t, filepath.Join(root, "state", "reg.json"), cfg.RegistryFile(root))
	assert.Equal(t, "/mnt/fast/vec.hnsw", cfg.VectorFile(root))
	assert.Equal(t, filepath.Join("/var/lib/quarry", "units.db"), cfg.CorpusFile(root))
}

func TestDiscoverDocDirs(t *testing.T) {
	t.Run("finds directories and one readme", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "docs"), 0o755))
		require.NoError(t, os.Mkdir(filepath.Join(dir, "notes"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Title"), 0o644))

		found := DiscoverDocDirs(dir)
		assert.ElementsMatch(t, []string{"docs", "notes", "README.md"}, found)
	})

	t.Run("empty and missing directories yield nothing", func(t *testing.T) {
		assert.Empty(t, DiscoverDocDirs(t.TempDir()))
		assert.Empty(t, DiscoverDocDirs(filepath.Join(t.TempDir(), "absent")))
	})

	t.Run("a file named docs does not count", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "docs"), []byte("x"), 0o644))
		assert.NotContains(t, DiscoverDocDirs(dir), "docs")
	})
}

func TestMergeNewDefaults_FillsOnlyGaps(t *testing.T) {
	// Given: a raw config that only sets the fusion weights
	cfg := &Config{}
	cfg.Search.LexicalWeight = 0.3
	cfg.Search.SemanticWeight = 0.7

	// When: merging in current defaults
	added := cfg.MergeNewDefaults()

	// Then: the set fields survive and the gaps are filled and named
	assert.InDelta(t, 0.3, cfg.Search.LexicalWeight, 1e-9)
	assert.Equal(t, 256, cfg.Chunking.MinSize)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Contains(t, added, "chunking.min_size")
	assert.Contains(t, added, "search.rrf_constant")
	assert.NotContains(t, added, "search.lexical_weight")
	assert.NotContains(t, added, "search.semantic_weight")
}

func TestMergeNewDefaults_FullConfigAddsNothing(t *testing.T) {
	cfg := NewConfig()
	assert.Empty(t, cfg.MergeNewDefaults())
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	// Given: a tuned config written as a project file
	dir := projectDir(t, "")
	cfg := NewConfig()
	cfg.Search.LexicalWeight = 0.55
	cfg.Search.SemanticWeight = 0.45
	cfg.Chunking.SummaryMaxChars = 200
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".quarry.yaml")))

	// When: loading the project
	got, err := Load(dir)

	// Then: the tuned values come back
	require.NoError(t, err)
	assert.InDelta(t, 0.55, got.Search.LexicalWeight, 1e-9)
	assert.InDelta(t, 0.45, got.Search.SemanticWeight, 1e-9)
	assert.Equal(t, 200, got.Chunking.SummaryMaxChars)
}

func TestConfig_JSONRoundTrip(t *testing.T) {
	// Given: a config with non-default values
	cfg := NewConfig()
	cfg.Search.LexicalWeight = 0.55
	cfg.Chunking.MinSize = 128
	cfg.Embeddings.Provider = "static"

	// When: round-tripping through JSON
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Then: values survive the json tags
	assert.InDelta(t, 0.55, decoded.Search.LexicalWeight, 1e-9)
	assert.Equal(t, 128, decoded.Chunking.MinSize)
	assert.Equal(t, "static", decoded.Embeddings.Provider)
}
