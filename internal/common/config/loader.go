// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like GEMINI_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, ignored when absent
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "jobhunt-pipeline"
	}
	if cfg.App.MetricsAddr == "" {
		cfg.App.MetricsAddr = ":9090"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Pipeline.StageTimeout <= 0 {
		cfg.Pipeline.StageTimeout = 120000
	}
	if cfg.Pipeline.TimeoutPolicy == "" {
		cfg.Pipeline.TimeoutPolicy = "continue-partial"
	}
	if cfg.Pipeline.StageCacheTTL <= 0 {
		cfg.Pipeline.StageCacheTTL = 3600
	}
	if cfg.Pipeline.MaxActiveRuns <= 0 {
		cfg.Pipeline.MaxActiveRuns = 16
	}
	if cfg.Pipeline.OutreachTopN <= 0 {
		cfg.Pipeline.OutreachTopN = 5
	}

	if cfg.Matching.ChunkMaxChars <= 0 {
		cfg.Matching.ChunkMaxChars = 500
	}
	if cfg.Matching.ChunkMinChars <= 0 {
		cfg.Matching.ChunkMinChars = 40
	}
	if cfg.Matching.RetrievalK <= 0 {
		cfg.Matching.RetrievalK = 5
	}
	if cfg.Matching.SemanticWeight == 0 && cfg.Matching.RequirementsWeight == 0 {
		cfg.Matching.SemanticWeight = 0.6
		cfg.Matching.RequirementsWeight = 0.4
	}
	if cfg.Matching.Parallelism <= 0 {
		cfg.Matching.Parallelism = 4
	}

	if len(cfg.Tracker.ReminderDays) == 0 {
		cfg.Tracker.ReminderDays = map[string]int{
			"DISCOVERED":       3,
			"OUTREACH_DRAFTED": 2,
			"APPLIED":          7,
			"INTERVIEWING":     5,
		}
	}
	if cfg.Tracker.CheckInterval <= 0 {
		cfg.Tracker.CheckInterval = 60
	}
	if cfg.App.ResumeDir == "" {
		cfg.App.ResumeDir = "./resumes"
	}

	if cfg.Database.Postgres.MaxConnections <= 0 {
		cfg.Database.Postgres.MaxConnections = 20
	}
	if cfg.Database.Postgres.MaxIdle <= 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.ListingIndex == "" {
		cfg.Database.Elasticsearch.ListingIndex = "job-listings"
	}

	if cfg.Integrations.Gemini.EmbeddingModel == "" {
		cfg.Integrations.Gemini.EmbeddingModel = "gemini-embedding-001"
	}
	if cfg.Integrations.Gemini.DraftModel == "" {
		cfg.Integrations.Gemini.DraftModel = "gemini-2.5-flash"
	}
	if cfg.Integrations.Gemini.MaxRetries <= 0 {
		cfg.Integrations.Gemini.MaxRetries = 3
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Pipeline.TimeoutPolicy {
	case "continue-partial", "fail":
	default:
		return fmt.Errorf("pipeline.timeout_policy must be 'continue-partial' or 'fail', got %q", cfg.Pipeline.TimeoutPolicy)
	}

	total := cfg.Matching.SemanticWeight + cfg.Matching.RequirementsWeight
	if total <= 0 {
		return fmt.Errorf("matching weights must sum to a positive value")
	}
	if cfg.Matching.ScoreThreshold < 0 || cfg.Matching.ScoreThreshold > 1 {
		return fmt.Errorf("matching.score_threshold must be within [0,1], got %v", cfg.Matching.ScoreThreshold)
	}

	return nil
}
