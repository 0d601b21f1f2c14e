// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig         `mapstructure:"app"`
	Pipeline     PipelineConfig    `mapstructure:"pipeline"`
	Matching     MatchingConfig    `mapstructure:"matching"`
	Tracker      TrackerConfig     `mapstructure:"tracker"`
	Database     DatabaseConfig    `mapstructure:"database"`
	Integrations IntegrationConfig `mapstructure:"integrations"`
	Logging      LoggingConfig     `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	ResumeDir   string `mapstructure:"resume_dir"`
}

// PipelineConfig controls the orchestrator state machine.
type PipelineConfig struct {
	StageTimeout  int    `mapstructure:"stage_timeout"`   // milliseconds
	TimeoutPolicy string `mapstructure:"timeout_policy"`  // "continue-partial" or "fail"
	StageCacheTTL int    `mapstructure:"stage_cache_ttl"` // seconds
	MaxActiveRuns int    `mapstructure:"max_active_runs"`
	OutreachTopN  int    `mapstructure:"outreach_top_n"`
}

// MatchingConfig controls the chunker, the index and the scoring loop.
type MatchingConfig struct {
	ChunkMaxChars      int     `mapstructure:"chunk_max_chars"`
	ChunkMinChars      int     `mapstructure:"chunk_min_chars"`
	RetrievalK         int     `mapstructure:"retrieval_k"`
	SemanticWeight     float64 `mapstructure:"semantic_weight"`
	RequirementsWeight float64 `mapstructure:"requirements_weight"`
	ScoreThreshold     float64 `mapstructure:"score_threshold"`
	MaxJobs            int     `mapstructure:"max_jobs"`       // 0 = unlimited
	MaxWallClock       int     `mapstructure:"max_wall_clock"` // milliseconds, 0 = unlimited
	Parallelism        int     `mapstructure:"parallelism"`
}

// TrackerConfig holds the per-stage reminder interval table (days) and the
// reminder delivery settings.
type TrackerConfig struct {
	ReminderDays  map[string]int `mapstructure:"reminder_days"`
	CheckInterval int            `mapstructure:"check_interval"` // minutes, 0 disables the loop
	NotifyEmail   string         `mapstructure:"notify_email"`
	NotifyPhone   string         `mapstructure:"notify_phone"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	ListingIndex string   `mapstructure:"listing_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IntegrationConfig holds settings for external collaborators.
type IntegrationConfig struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
	AWS    AWSConfig    `mapstructure:"aws"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	DraftModel     string `mapstructure:"draft_model"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

type AWSConfig struct {
	Region string    `mapstructure:"region"`
	SES    SESConfig `mapstructure:"ses"`
	SNS    SNSConfig `mapstructure:"sns"`
}

type SESConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FromEmail string `mapstructure:"from_email"`
}

type SNSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
