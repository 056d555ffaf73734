package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Classifier ClassifierConfig
	Matcher    MatcherConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type ClassifierConfig struct {
	Provider       string
	Model          string
	APIKey         string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	MaxCountries   int
	MaxCandidates  int
	DefaultCountry string
}

type MatcherConfig struct {
	MaxConcurrency  int
	MaxBatchSize    int
	MaxAttempts     int
	InitialDelayMS  int
	MaxDelayMS      int
	MaxAlternatives int
}

type CacheConfig struct {
	DefaultTTL  time.Duration
	FrequentTTL time.Duration
	KeyPrefix   string
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/tariffmatch")

	viper.SetEnvPrefix("TARIFFMATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("classifier.provider", "openai")
	viper.SetDefault("classifier.model", "gpt-4")
	viper.SetDefault("classifier.temperature", 0.1)
	viper.SetDefault("classifier.maxTokens", 1024)
	viper.SetDefault("classifier.timeoutSec", 30)
	viper.SetDefault("classifier.maxCountries", 10)
	viper.SetDefault("classifier.maxCandidates", 5)
	viper.SetDefault("classifier.defaultCountry", "default")

	viper.SetDefault("matcher.maxConcurrency", 5)
	viper.SetDefault("matcher.maxBatchSize", 100)
	viper.SetDefault("matcher.maxAttempts", 3)
	viper.SetDefault("matcher.initialDelayMS", 500)
	viper.SetDefault("matcher.maxDelayMS", 5000)
	viper.SetDefault("matcher.maxAlternatives", 3)

	viper.SetDefault("cache.defaultTTL", 24*time.Hour)
	viper.SetDefault("cache.frequentTTL", 7*24*time.Hour)
	viper.SetDefault("cache.keyPrefix", "match")

	viper.SetDefault("ratelimit.maxRequestsPerMinute", 120)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
