// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetSubmitRatePerMinute() int
}

// SchedulerConfig provides settings for the asynq client, worker and cron scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetMarketRecomputeCron() string
	GetSnapshotCron() string
	GetReconcileCron() string
}

// RoutingConfig provides pipeline identifiers and site domains for lead routing.
type RoutingConfig interface {
	GetAgentPipelineID() string
	GetAgentStageID() string
	GetBuyerPipelineID() string
	GetBuyerStageID() string
	GetBuyerSiteDomains() []string
	GetAgentSiteDomain() string
}

// CRMConfig provides settings for the outbound CRM client.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMAPIKey() string
	GetCRMLocationID() string
	GetCRMTimeout() time.Duration
}

// RelayConfig provides settings for the fallback webhook relay.
type RelayConfig interface {
	GetRelayWebhookURL() string
	GetRelayTimeout() time.Duration
	IsRelayEnabled() bool
}

// ScoringConfig points at the optional weights file for scoring and heat.
type ScoringConfig interface {
	GetScoringWeightsFile() string
}

// AlertConfig provides alert thresholds and recipients.
type AlertConfig interface {
	GetAlertVolumeSpikeRatio() float64
	GetAlertVolumeMinLeads() int
	GetAlertFallbackSpikeRatio() float64
	GetAlertRecipients() []string
}

// EmailConfig provides settings for SMTP delivery of operator notifications.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketSnapshots() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	MigrationsDir           string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	SubmitRatePerMinute     int
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	MarketRecomputeCron     string
	SnapshotCron            string
	ReconcileCron           string
	AgentPipelineID         string
	AgentStageID            string
	BuyerPipelineID         string
	BuyerStageID            string
	BuyerSiteDomains        []string
	AgentSiteDomain         string
	CRMBaseURL              string
	CRMAPIKey               string
	CRMLocationID           string
	CRMTimeout              time.Duration
	RelayWebhookURL         string
	RelayTimeout            time.Duration
	ScoringWeightsFile      string
	AlertVolumeSpikeRatio   float64
	AlertVolumeMinLeads     int
	AlertFallbackSpikeRatio float64
	AlertRecipients         []string
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromName           string
	EmailFromAddress        string
	MinIOEndpoint           string
	MinIOAccessKey          string
	MinIOSecretKey          string
	MinIOUseSSL             bool
	MinioBucketSnapshots    string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string         { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool       { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string    { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool     { return c.CORSAllowCreds }
func (c *Config) GetSubmitRatePerMinute() int { return c.SubmitRatePerMinute }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool      { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string      { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int       { return c.AsynqConcurrency }
func (c *Config) GetMarketRecomputeCron() string { return c.MarketRecomputeCron }
func (c *Config) GetSnapshotCron() string        { return c.SnapshotCron }
func (c *Config) GetReconcileCron() string       { return c.ReconcileCron }

// RoutingConfig implementation
func (c *Config) GetAgentPipelineID() string    { return c.AgentPipelineID }
func (c *Config) GetAgentStageID() string       { return c.AgentStageID }
func (c *Config) GetBuyerPipelineID() string    { return c.BuyerPipelineID }
func (c *Config) GetBuyerStageID() string       { return c.BuyerStageID }
func (c *Config) GetBuyerSiteDomains() []string { return c.BuyerSiteDomains }
func (c *Config) GetAgentSiteDomain() string    { return c.AgentSiteDomain }

// CRMConfig implementation
func (c *Config) GetCRMBaseURL() string        { return c.CRMBaseURL }
func (c *Config) GetCRMAPIKey() string         { return c.CRMAPIKey }
func (c *Config) GetCRMLocationID() string     { return c.CRMLocationID }
func (c *Config) GetCRMTimeout() time.Duration { return c.CRMTimeout }

// RelayConfig implementation
func (c *Config) GetRelayWebhookURL() string     { return c.RelayWebhookURL }
func (c *Config) GetRelayTimeout() time.Duration { return c.RelayTimeout }
func (c *Config) IsRelayEnabled() bool           { return c.RelayWebhookURL != "" }

// ScoringConfig implementation
func (c *Config) GetScoringWeightsFile() string { return c.ScoringWeightsFile }

// AlertConfig implementation
func (c *Config) GetAlertVolumeSpikeRatio() float64   { return c.AlertVolumeSpikeRatio }
func (c *Config) GetAlertVolumeMinLeads() int         { return c.AlertVolumeMinLeads }
func (c *Config) GetAlertFallbackSpikeRatio() float64 { return c.AlertFallbackSpikeRatio }
func (c *Config) GetAlertRecipients() []string        { return c.AlertRecipients }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool {
	return c.SMTPHost != "" && c.EmailFromAddress != "" && len(c.AlertRecipients) > 0
}

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string        { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string       { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string       { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool            { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketSnapshots() string { return c.MinioBucketSnapshots }
func (c *Config) IsMinIOEnabled() bool            { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		MigrationsDir:           getEnv("MIGRATIONS_DIR", "migrations"),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		SubmitRatePerMinute:     mustInt(getEnv("SUBMIT_RATE_PER_MINUTE", "30")),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:        mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		MarketRecomputeCron:     getEnv("MARKET_RECOMPUTE_CRON", "15 2 * * *"),
		SnapshotCron:            getEnv("SNAPSHOT_CRON", "30 0 * * *"),
		ReconcileCron:           getEnv("RECONCILE_CRON", "*/15 * * * *"),
		AgentPipelineID:         getEnv("AGENT_PIPELINE_ID", ""),
		AgentStageID:            getEnv("AGENT_STAGE_ID", ""),
		BuyerPipelineID:         getEnv("BUYER_PIPELINE_ID", ""),
		BuyerStageID:            getEnv("BUYER_STAGE_ID", ""),
		BuyerSiteDomains:        splitCSV(getEnv("BUYER_SITE_DOMAINS", "")),
		AgentSiteDomain:         strings.ToLower(getEnv("AGENT_SITE_DOMAIN", "")),
		CRMBaseURL:              getEnv("CRM_BASE_URL", ""),
		CRMAPIKey:               getEnv("CRM_API_KEY", ""),
		CRMLocationID:           getEnv("CRM_LOCATION_ID", ""),
		CRMTimeout:              mustDuration(getEnv("CRM_TIMEOUT", "10s")),
		RelayWebhookURL:         getEnv("RELAY_WEBHOOK_URL", ""),
		RelayTimeout:            mustDuration(getEnv("RELAY_TIMEOUT", "5s")),
		ScoringWeightsFile:      getEnv("SCORING_WEIGHTS_FILE", ""),
		AlertVolumeSpikeRatio:   mustFloat(getEnv("ALERT_VOLUME_SPIKE_RATIO", "2.0")),
		AlertVolumeMinLeads:     mustInt(getEnv("ALERT_VOLUME_MIN_LEADS", "10")),
		AlertFallbackSpikeRatio: mustFloat(getEnv("ALERT_FALLBACK_SPIKE_RATIO", "0.25")),
		AlertRecipients:         splitCSV(getEnv("ALERT_RECIPIENTS", "")),
		SMTPHost:                getEnv("SMTP_HOST", ""),
		SMTPPort:                mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "Lead Engine"),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", ""),
		MinIOEndpoint:           getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:          getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:          getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:             strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketSnapshots:    getEnv("MINIO_BUCKET_SNAPSHOTS", "analytics-snapshots"),
	}

	for i, domain := range cfg.BuyerSiteDomains {
		cfg.BuyerSiteDomains[i] = strings.ToLower(domain)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if (cfg.AgentPipelineID == "") != (cfg.AgentStageID == "") {
		return nil, fmt.Errorf("AGENT_PIPELINE_ID and AGENT_STAGE_ID must be set together")
	}
	if (cfg.BuyerPipelineID == "") != (cfg.BuyerStageID == "") {
		return nil, fmt.Errorf("BUYER_PIPELINE_ID and BUYER_STAGE_ID must be set together")
	}
	if cfg.RelayTimeout <= 0 {
		cfg.RelayTimeout = 5 * time.Second
	}
	if cfg.CRMTimeout <= 0 {
		cfg.CRMTimeout = 10 * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
