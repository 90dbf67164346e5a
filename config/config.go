package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Radar RadarConfig `yaml:"radar"`
}

// RadarConfig is the project configuration.
type RadarConfig struct {
	Chain      ChainConfig      `yaml:"chain"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Triage     TriageConfig     `yaml:"triage"`
	Rules      RulesConfig      `yaml:"rules"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChainConfig controls chain access and the scan loop.
type ChainConfig struct {
	RPCURL         string        `yaml:"rpc_url"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	StartBlock     string        `yaml:"start_block"` // "latest" or a height
	BatchCap       int           `yaml:"batch_cap"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CheckpointConfig selects and configures the checkpoint store.
type CheckpointConfig struct {
	Mode  string                `yaml:"mode"` // file|redis
	File  FileCheckpointConfig  `yaml:"file"`
	Redis RedisCheckpointConfig `yaml:"redis"`
}

// FileCheckpointConfig configures the file-backed checkpoint store.
type FileCheckpointConfig struct {
	Path string `yaml:"path"`
}

// RedisCheckpointConfig configures the Redis-backed checkpoint store.
type RedisCheckpointConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"key_prefix"`
	ProcessedTTL time.Duration `yaml:"processed_ttl"`
}

// EnrichmentConfig controls the contract-metadata lookup client.
type EnrichmentConfig struct {
	Enabled bool          `yaml:"enabled"`
	APIURL  string        `yaml:"api_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// TriageConfig controls risk evaluation and escalation thresholds.
type TriageConfig struct {
	AlertMinScore int `yaml:"alert_min_score"`
	DeepThreshold int `yaml:"deep_threshold"`

	APIURL        string        `yaml:"api_url"`
	APIKey        string        `yaml:"api_key"`
	FastModel     string        `yaml:"fast_model"`
	DeepModel     string        `yaml:"deep_model"`
	FastMaxTokens int           `yaml:"fast_max_tokens"`
	DeepMaxTokens int           `yaml:"deep_max_tokens"`
	Timeout       time.Duration `yaml:"timeout"`

	MaxReportChars int    `yaml:"max_report_chars"`
	ExplorerURL    string `yaml:"explorer_url"`
}

// RulesConfig controls the local rules-based evaluator.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AlertsConfig configures notification channels.
type AlertsConfig struct {
	SendTimeout time.Duration        `yaml:"send_timeout"`
	Telegram    TelegramSinkConfig   `yaml:"telegram"`
	Webhook     WebhookSinkConfig    `yaml:"webhook"`
	Kafka       KafkaSinkConfig      `yaml:"kafka"`
	Command     CommandSinkConfig    `yaml:"command"`
	File        FileAlertsSinkConfig `yaml:"file"`
}

// TelegramSinkConfig configures the Telegram Bot API channel.
type TelegramSinkConfig struct {
	Enabled  bool          `yaml:"enabled"`
	BotToken string        `yaml:"bot_token"`
	ChatID   string        `yaml:"chat_id"`
	Limit    int           `yaml:"limit"`
	Timeout  time.Duration `yaml:"timeout"`
}

// WebhookSinkConfig configures a generic HTTP push channel.
type WebhookSinkConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Limit   int               `yaml:"limit"`
	Timeout time.Duration     `yaml:"timeout"`
}

// KafkaSinkConfig configures the Kafka channel.
type KafkaSinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	Brokers string `yaml:"brokers"` // comma-separated
	Topic   string `yaml:"topic"`
	Limit   int    `yaml:"limit"`
}

// CommandSinkConfig configures a subprocess channel; the alert text is
// appended as the final argument.
type CommandSinkConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Limit   int      `yaml:"limit"`
}

// FileAlertsSinkConfig configures the local JSONL alert archive.
type FileAlertsSinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
