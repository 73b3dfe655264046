package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	AI         AI         `mapstructure:"ai"`
	Search     Search     `mapstructure:"search"`
	TTS        TTS        `mapstructure:"tts"`
	Storage    Storage    `mapstructure:"storage"`
	Database   Database   `mapstructure:"database"`
	Server     Server     `mapstructure:"server"`
	Generation Generation `mapstructure:"generation"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	LogLevel   string `mapstructure:"log_level"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// AI holds AI/LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Timeout        string  `mapstructure:"timeout"`
	MaxTokens      int32   `mapstructure:"max_tokens"`
	Temperature    float32 `mapstructure:"temperature"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
}

// Search holds search provider configuration
type Search struct {
	Providers  SearchProviders `mapstructure:"providers"`
	MaxResults int             `mapstructure:"max_results"`
	Timeout    string          `mapstructure:"timeout"`
}

// SearchProviders holds configuration for all search providers
type SearchProviders struct {
	Google GoogleSearchConfig `mapstructure:"google"`
}

// GoogleSearchConfig holds Google Custom Search configuration
type GoogleSearchConfig struct {
	APIKey   string `mapstructure:"api_key"`
	SearchID string `mapstructure:"search_id"`
}

// TTS holds text-to-speech configuration
type TTS struct {
	Provider     string  `mapstructure:"provider"`
	APIKey       string  `mapstructure:"api_key"`
	Model        string  `mapstructure:"model"`
	DefaultVoice string  `mapstructure:"default_voice"`
	DefaultSpeed float64 `mapstructure:"default_speed"`
	Timeout      string  `mapstructure:"timeout"`
}

// Storage holds blob storage configuration
type Storage struct {
	Directory     string `mapstructure:"directory"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// Database holds document store configuration
type Database struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// Server holds HTTP server configuration
type Server struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  string   `mapstructure:"read_timeout"`
	WriteTimeout string   `mapstructure:"write_timeout"`
	APIToken     string   `mapstructure:"api_token"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

// Generation holds episode generation configuration
type Generation struct {
	Workers         int    `mapstructure:"workers"`
	MaxTopics       int    `mapstructure:"max_topics"`
	ResearchLayers  int    `mapstructure:"research_layers"`
	ProviderTimeout string `mapstructure:"provider_timeout"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".podgen")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".podgen")

	viper.SetDefault("ai.gemini.model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.gemini.timeout", "30s")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.7)
	viper.SetDefault("ai.gemini.embedding_model", "gemini-embedding-001")

	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("search.timeout", "15s")

	viper.SetDefault("tts.provider", "openai")
	viper.SetDefault("tts.model", "tts-1")
	viper.SetDefault("tts.default_voice", "alloy")
	viper.SetDefault("tts.default_speed", 1.0)
	viper.SetDefault("tts.timeout", "60s")

	viper.SetDefault("storage.directory", "audio")
	viper.SetDefault("storage.public_base_url", "http://localhost:8080/media")

	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "podgen")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.cors_origins", []string{"*"})

	viper.SetDefault("generation.workers", 2)
	viper.SetDefault("generation.max_topics", 8)
	viper.SetDefault("generation.research_layers", 2)
	viper.SetDefault("generation.provider_timeout", "60s")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("search.providers.google.api_key", []string{
		"GOOGLE_CUSTOM_SEARCH_API_KEY",
		"GOOGLE_CSE_API_KEY",
	})

	bindEnvKeys("search.providers.google.search_id", []string{
		"GOOGLE_CUSTOM_SEARCH_ID",
		"GOOGLE_CSE_ID",
	})

	bindEnvKeys("tts.api_key", []string{
		"OPENAI_API_KEY",
		"TTS_API_KEY",
	})

	bindEnvKeys("database.uri", []string{
		"MONGODB_URI",
		"PODGEN_DATABASE_URI",
	})

	bindEnvKeys("server.api_token", []string{
		"PODGEN_API_TOKEN",
	})
}

// bindEnvKeys binds the first set environment variable from a list of aliases
func bindEnvKeys(configKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(configKey, value)
			return
		}
	}
}

// validateConfig performs basic sanity checks on the loaded configuration
func validateConfig(config *Config) error {
	if config.Generation.Workers < 1 {
		return fmt.Errorf("generation.workers must be at least 1, got %d", config.Generation.Workers)
	}
	if config.Generation.MaxTopics < 1 {
		return fmt.Errorf("generation.max_topics must be at least 1, got %d", config.Generation.MaxTopics)
	}
	if config.TTS.DefaultSpeed != 0 && (config.TTS.DefaultSpeed < 0.5 || config.TTS.DefaultSpeed > 2.0) {
		return fmt.Errorf("tts.default_speed must be between 0.5 and 2.0, got %.2f", config.TTS.DefaultSpeed)
	}
	return nil
}

// ParseDuration parses a duration string from config, falling back to a
// default when unset or malformed.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
