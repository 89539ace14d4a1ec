package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the conversation store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// EngineConfig holds every dialogue-engine knob. All thresholds live here so
// there is a single authoritative value for each (notably MinDownPct).
type EngineConfig struct {
	FilledThreshold           float64 `yaml:"filled_threshold" mapstructure:"filled_threshold"`
	MinDownPct                float64 `yaml:"min_down_pct" mapstructure:"min_down_pct"`
	ConfirmThreshold          float64 `yaml:"confirm_threshold" mapstructure:"confirm_threshold"`
	FinancialConfirmThreshold float64 `yaml:"financial_confirm_threshold" mapstructure:"financial_confirm_threshold"`
	ExtractTimeoutSecs        int     `yaml:"extract_timeout_secs" mapstructure:"extract_timeout_secs"`
	ImmediateRepeatPenalty    float64 `yaml:"immediate_repeat_penalty" mapstructure:"immediate_repeat_penalty"`
	RepetitionPenaltyWeight   float64 `yaml:"repetition_penalty_weight" mapstructure:"repetition_penalty_weight"`
	RecencyBoost              float64 `yaml:"recency_boost" mapstructure:"recency_boost"`
	MinReserveMonths          int     `yaml:"min_reserve_months" mapstructure:"min_reserve_months"`
	SlotOverlayPath           string  `yaml:"slot_overlay_path" mapstructure:"slot_overlay_path"`
}

// AnthropicConfig holds Anthropic API settings for the extraction and
// clarification calls.
type AnthropicConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	Model        string  `yaml:"model" mapstructure:"model"`
	RequestsPerS float64 `yaml:"requests_per_s" mapstructure:"requests_per_s"`
}

// SalesforceConfig holds Salesforce JWT auth settings for decision publishing.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// NotionConfig holds the Notion token and decision-tracking database ID.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DecisionDB string `yaml:"decision_db" mapstructure:"decision_db"`
}

// ExportConfig configures decision export.
type ExportConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	FTPAddr string `yaml:"ftp_addr" mapstructure:"ftp_addr"`
	FTPUser string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPass string `yaml:"ftp_pass" mapstructure:"ftp_pass"`
	FTPDir  string `yaml:"ftp_dir" mapstructure:"ftp_dir"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PREQUAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prequal.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("engine.filled_threshold", 0.6)
	v.SetDefault("engine.min_down_pct", 0.25)
	v.SetDefault("engine.confirm_threshold", 0.4)
	v.SetDefault("engine.financial_confirm_threshold", 0.7)
	v.SetDefault("engine.extract_timeout_secs", 8)
	v.SetDefault("engine.immediate_repeat_penalty", 15)
	v.SetDefault("engine.repetition_penalty_weight", 3)
	v.SetDefault("engine.recency_boost", 7)
	v.SetDefault("engine.min_reserve_months", 6)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.requests_per_s", 5)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("export.dir", "exports")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
