package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazardscope/hazardscope/pkg/scoring"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scoring.RadiusMiles != 50 {
		t.Errorf("expected default radius 50, got %v", cfg.Scoring.RadiusMiles)
	}
	if cfg.Scoring.Weights() != scoring.Defaults() {
		t.Errorf("expected default weights, got %+v", cfg.Scoring.Weights())
	}
	if cfg.Batch.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Batch.Workers)
	}
	if cfg.Backend.Kind != "tabular" || cfg.Data.Source != "file" {
		t.Errorf("unexpected defaults: backend %q source %q", cfg.Backend.Kind, cfg.Data.Source)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "non-existent file returns defaults",
			yaml: "", // signal: don't create a file
			check: func(t *testing.T, cfg *Config) {
				if cfg.Scoring.RadiusMiles != 50 {
					t.Errorf("expected default radius, got %v", cfg.Scoring.RadiusMiles)
				}
			},
		},
		{
			name: "valid YAML overrides defaults",
			yaml: `
data:
  source: s3
  sites: exports/sites.csv
  s3:
    bucket: hazard-data
    endpoint: http://minio:9000
backend:
  kind: indexed
  store: qdrant
  geo_index: redis
  index_fields: [state]
scoring:
  radius_miles: 25
  penalty_per_site: 20
batch:
  workers: 16
  threshold: medium
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Data.Source != "s3" || cfg.Data.S3.Bucket != "hazard-data" {
					t.Errorf("data = %+v", cfg.Data)
				}
				if cfg.Backend.Kind != "indexed" || cfg.Backend.Store != "qdrant" || cfg.Backend.GeoIndex != "redis" {
					t.Errorf("backend = %+v", cfg.Backend)
				}
				if len(cfg.Backend.IndexFields) != 1 {
					t.Errorf("expected 1 index field, got %v", cfg.Backend.IndexFields)
				}
				if cfg.Scoring.RadiusMiles != 25 || cfg.Scoring.PenaltyPerSite != 20 || cfg.Scoring.InitialScore != 100 {
					t.Errorf("scoring = %+v", cfg.Scoring)
				}
				if cfg.Batch.Workers != 16 {
					t.Errorf("expected 16 workers, got %d", cfg.Batch.Workers)
				}
				if err := cfg.Validate(); err != nil {
					t.Errorf("Validate: %v", err)
				}
			},
		},
		{
			name:    "invalid YAML returns error",
			yaml:    "{{invalid yaml",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")

			if tc.yaml != "" {
				if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
					t.Fatalf("write test config: %v", err)
				}
			}

			cfg, err := Load(path)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}

func TestLoadAppliesEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db/hazards")
	t.Setenv("REDIS_PASSWORD", "s3cret")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("QDRANT_API_KEY", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "backend:\n  qdrant:\n    api_key: from-file\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Data.Postgres.URL != "postgres://u:p@db/hazards" {
		t.Errorf("DATABASE_URL not applied: %q", cfg.Data.Postgres.URL)
	}
	if cfg.Backend.Redis.Password != "s3cret" || cfg.Backend.Redis.DB != 2 {
		t.Errorf("redis = %+v", cfg.Backend.Redis)
	}
	if cfg.Backend.Qdrant.APIKey != "from-file" {
		t.Errorf("empty env var overrode file value: %q", cfg.Backend.Qdrant.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown source", func(c *Config) { c.Data.Source = "ftp" }, "data.source"},
		{"missing sites", func(c *Config) { c.Data.Sites = " " }, "data.sites"},
		{"s3 without bucket", func(c *Config) { c.Data.Source = "s3" }, "bucket"},
		{"postgres without url", func(c *Config) { c.Data.Source = "postgres" }, "DATABASE_URL"},
		{"unknown backend", func(c *Config) { c.Backend.Kind = "graph" }, "backend.kind"},
		{"unknown store", func(c *Config) { c.Backend.Store = "mongo" }, "backend.store"},
		{"unknown geo index", func(c *Config) { c.Backend.GeoIndex = "h3" }, "geo_index"},
		{"negative radius", func(c *Config) { c.Scoring.RadiusMiles = -1 }, "radius_miles"},
		{"floor above start", func(c *Config) { c.Scoring.MinimumScore = 150 }, "minimum_score"},
		{"no workers", func(c *Config) { c.Batch.Workers = 0 }, "batch.workers"},
		{"bad threshold", func(c *Config) { c.Batch.Threshold = "severe" }, "batch.threshold"},
		{"zero radius is fine", func(c *Config) { c.Scoring.RadiusMiles = 0 }, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tc.wantErr)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Run("found in current directory", func(t *testing.T) {
		root := t.TempDir()
		configDir := filepath.Join(root, ".hazardscope")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			t.Fatalf("create config dir: %v", err)
		}
		configPath := filepath.Join(configDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		got := FindConfigFile(root)
		if got != configPath {
			t.Errorf("FindConfigFile = %q, want %q", got, configPath)
		}
	})

	t.Run("found in parent directory", func(t *testing.T) {
		root := t.TempDir()
		configDir := filepath.Join(root, ".hazardscope")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			t.Fatalf("create config dir: %v", err)
		}
		configPath := filepath.Join(configDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		sub := filepath.Join(root, "a", "b", "c")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatalf("create sub: %v", err)
		}

		got := FindConfigFile(sub)
		if got != configPath {
			t.Errorf("FindConfigFile = %q, want %q", got, configPath)
		}
	})

	t.Run("not found", func(t *testing.T) {
		root := t.TempDir()
		got := FindConfigFile(root)
		if got != "" {
			t.Errorf("FindConfigFile = %q, want empty", got)
		}
	})
}
