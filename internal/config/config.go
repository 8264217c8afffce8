package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Metadata providers
	TMDBAPIKey    string
	TVDBAPIKey    string
	TVDBPin       string
	ProviderOrder []string // fallback order, e.g. ["tmdb", "tvdb"]

	// Matching
	MatchThreshold float64 // minimum acceptable candidate score

	// Renaming
	NamingScheme string // default scheme when a job does not supply one
	OutputDir    string // empty = rename in place
	DryRun       bool   // default for jobs that do not say otherwise

	// Jobs
	MaxConcurrentJobs int
	MaxFinishedJobs   int // terminal jobs kept before pruning
	JobRetentionHours int

	// History
	HistoryLimit int

	// Webhook
	WebhookTimeoutSeconds int

	// Server
	ServerPort string

	// Paths
	IgnoreFile   string // $CONFIG_DIR/ignore.txt
	DatabaseFile string // $CONFIG_DIR/renamarr.db

	// Tooling
	FFProbePath string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	viper.SetDefault("PROVIDER_ORDER", "tmdb,tvdb")
	viper.SetDefault("MATCH_THRESHOLD", 60.0)
	viper.SetDefault("NAMING_SCHEME", "{n} ({y})")
	viper.SetDefault("MAX_CONCURRENT_JOBS", 4)
	viper.SetDefault("MAX_FINISHED_JOBS", 200)
	viper.SetDefault("JOB_RETENTION_HOURS", 72)
	viper.SetDefault("HISTORY_LIMIT", 100)
	viper.SetDefault("WEBHOOK_TIMEOUT_SECONDS", 10)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("FFPROBE_PATH", "ffprobe")
	viper.SetDefault("LOG_LEVEL", "info")

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "renamarr")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		TMDBAPIKey:    viper.GetString("TMDB_API_KEY"),
		TVDBAPIKey:    viper.GetString("TVDB_API_KEY"),
		TVDBPin:       viper.GetString("TVDB_PIN"),
		ProviderOrder: splitList(viper.GetString("PROVIDER_ORDER")),

		MatchThreshold: viper.GetFloat64("MATCH_THRESHOLD"),

		NamingScheme: viper.GetString("NAMING_SCHEME"),
		OutputDir:    viper.GetString("OUTPUT_DIR"),
		DryRun:       viper.GetBool("DRY_RUN"),

		MaxConcurrentJobs: viper.GetInt("MAX_CONCURRENT_JOBS"),
		MaxFinishedJobs:   viper.GetInt("MAX_FINISHED_JOBS"),
		JobRetentionHours: viper.GetInt("JOB_RETENTION_HOURS"),

		HistoryLimit: viper.GetInt("HISTORY_LIMIT"),

		WebhookTimeoutSeconds: viper.GetInt("WEBHOOK_TIMEOUT_SECONDS"),

		ServerPort: viper.GetString("SERVER_PORT"),

		IgnoreFile:   filepath.Join(configDir, "ignore.txt"),
		DatabaseFile: filepath.Join(configDir, "renamarr.db"),

		FFProbePath: viper.GetString("FFPROBE_PATH"),

		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	// Validate required fields
	if config.TMDBAPIKey == "" {
		return nil, fmt.Errorf("TMDB_API_KEY is required")
	}
	if len(config.ProviderOrder) == 0 {
		return nil, fmt.Errorf("PROVIDER_ORDER must name at least one provider")
	}
	for _, p := range config.ProviderOrder {
		if p != "tmdb" && p != "tvdb" {
			return nil, fmt.Errorf("unknown provider %q in PROVIDER_ORDER", p)
		}
	}
	if config.MaxConcurrentJobs < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}

	return config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
