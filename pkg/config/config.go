// Package config handles loading and managing Hazardscope configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazardscope/hazardscope/pkg/scoring"
)

// Config is the top-level configuration for Hazardscope.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Backend BackendConfig `yaml:"backend"`
	Scoring ScoringConfig `yaml:"scoring"`
	Batch   BatchConfig   `yaml:"batch"`
	Server  ServerConfig  `yaml:"server"`
}

// DataConfig says where the site and subject records live.
type DataConfig struct {
	Source   string         `yaml:"source"`   // file, s3, gcs, postgres
	Sites    string         `yaml:"sites"`    // path, object key or table
	Subjects string         `yaml:"subjects"` // path, object key or table; optional
	S3       S3Config       `yaml:"s3"`
	GCS      GCSConfig      `yaml:"gcs"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"` // MinIO and other S3-compatible stores
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type GCSConfig struct {
	Bucket string `yaml:"bucket"`
}

type PostgresConfig struct {
	URL         string `yaml:"url"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// BackendConfig selects the storage backend and its indexes.
type BackendConfig struct {
	Kind               string       `yaml:"kind"`      // tabular, indexed
	Store              string       `yaml:"store"`     // memory, qdrant
	GeoIndex           string       `yaml:"geo_index"` // none, geohash, redis
	GeohashPrecision   int          `yaml:"geohash_precision"`
	IndexFields        []string     `yaml:"index_fields"`
	SitesCollection    string       `yaml:"sites_collection"`
	SubjectsCollection string       `yaml:"subjects_collection"`
	Qdrant             QdrantConfig `yaml:"qdrant"`
	Redis              RedisConfig  `yaml:"redis"`
}

type QdrantConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// ScoringConfig controls the flat-penalty model.
type ScoringConfig struct {
	RadiusMiles    float64 `yaml:"radius_miles"`
	InitialScore   int     `yaml:"initial_score"`
	PenaltyPerSite int     `yaml:"penalty_per_site"`
	MinimumScore   int     `yaml:"minimum_score"`
}

// Weights returns the scoring weights described by c.
func (c ScoringConfig) Weights() scoring.Weights {
	return scoring.Weights{Initial: c.InitialScore, Penalty: c.PenaltyPerSite, Floor: c.MinimumScore}
}

type BatchConfig struct {
	Workers   int    `yaml:"workers"`
	Threshold string `yaml:"threshold"` // tier for "at or worse" views
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Source: "file",
			Sites:  "data/superfund_sites.csv",
		},
		Backend: BackendConfig{
			Kind:               "tabular",
			Store:              "memory",
			GeoIndex:           "geohash",
			GeohashPrecision:   4,
			IndexFields:        []string{"status", "state"},
			SitesCollection:    "sites",
			SubjectsCollection: "subjects",
			Qdrant:             QdrantConfig{URL: "http://localhost:6333"},
			Redis:              RedisConfig{Addr: "localhost:6379", KeyPrefix: "hazardscope:geo"},
		},
		Scoring: ScoringConfig{
			RadiusMiles:    scoring.DefaultRadiusMiles,
			InitialScore:   scoring.InitialScore,
			PenaltyPerSite: scoring.PenaltyPerSite,
			MinimumScore:   scoring.MinimumScore,
		},
		Batch: BatchConfig{
			Workers:   4,
			Threshold: string(scoring.TierHigh),
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads a config file from the given path, then applies environment
// overrides. If the file does not exist, it starts from the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides secrets and endpoints from the environment. Unset or
// empty variables leave the current value alone.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Data.Sites, "HAZARDSCOPE_SITES")
	set(&c.Data.Subjects, "HAZARDSCOPE_SUBJECTS")
	set(&c.Data.Postgres.URL, "DATABASE_URL")
	set(&c.Data.S3.Bucket, "S3_BUCKET")
	set(&c.Data.S3.Endpoint, "S3_ENDPOINT")
	set(&c.Data.GCS.Bucket, "GCS_BUCKET")
	set(&c.Backend.Qdrant.URL, "QDRANT_URL")
	set(&c.Backend.Qdrant.APIKey, "QDRANT_API_KEY")
	set(&c.Backend.Redis.Addr, "REDIS_ADDR")
	set(&c.Backend.Redis.Password, "REDIS_PASSWORD")
	if v := getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Backend.Redis.DB = n
		}
	}
	set(&c.Server.Addr, "HAZARDSCOPE_ADDR")
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if !oneOf(c.Data.Source, "file", "s3", "gcs", "postgres") {
		return fmt.Errorf("data.source: unknown source %q", c.Data.Source)
	}
	if strings.TrimSpace(c.Data.Sites) == "" {
		return fmt.Errorf("data.sites is required")
	}
	switch c.Data.Source {
	case "s3":
		if c.Data.S3.Bucket == "" {
			return fmt.Errorf("data.s3.bucket is required for the s3 source")
		}
	case "gcs":
		if c.Data.GCS.Bucket == "" {
			return fmt.Errorf("data.gcs.bucket is required for the gcs source")
		}
	case "postgres":
		if c.Data.Postgres.URL == "" {
			return fmt.Errorf("data.postgres.url (or DATABASE_URL) is required for the postgres source")
		}
	}
	if !oneOf(c.Backend.Kind, "tabular", "indexed") {
		return fmt.Errorf("backend.kind: unknown kind %q", c.Backend.Kind)
	}
	if !oneOf(c.Backend.Store, "memory", "qdrant") {
		return fmt.Errorf("backend.store: unknown store %q", c.Backend.Store)
	}
	if !oneOf(c.Backend.GeoIndex, "", "none", "geohash", "redis") {
		return fmt.Errorf("backend.geo_index: unknown index %q", c.Backend.GeoIndex)
	}
	if c.Backend.GeohashPrecision < 0 || c.Backend.GeohashPrecision > 12 {
		return fmt.Errorf("backend.geohash_precision must be between 0 and 12, got %d", c.Backend.GeohashPrecision)
	}
	if c.Scoring.RadiusMiles < 0 {
		return fmt.Errorf("scoring.radius_miles must not be negative, got %v", c.Scoring.RadiusMiles)
	}
	if c.Scoring.PenaltyPerSite < 0 {
		return fmt.Errorf("scoring.penalty_per_site must not be negative, got %d", c.Scoring.PenaltyPerSite)
	}
	if c.Scoring.MinimumScore > c.Scoring.InitialScore {
		return fmt.Errorf("scoring.minimum_score %d exceeds initial_score %d", c.Scoring.MinimumScore, c.Scoring.InitialScore)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be positive, got %d", c.Batch.Workers)
	}
	if _, err := scoring.ParseTier(c.Batch.Threshold); err != nil {
		return fmt.Errorf("batch.threshold: %w", err)
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// FindConfigFile looks for .hazardscope/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".hazardscope", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
