package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	CacheEnabled  bool   `mapstructure:"CACHE_ENABLED"`

	// Gemini language model.
	GeminiAPIKey          string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel           string        `mapstructure:"GEMINI_MODEL"`
	GeminiVisionModel     string        `mapstructure:"GEMINI_VISION_MODEL"`
	GeminiTemperature     float32       `mapstructure:"GEMINI_TEMPERATURE"`
	GeminiMaxOutputTokens int32         `mapstructure:"GEMINI_MAX_OUTPUT_TOKENS"`
	LLMTimeout            time.Duration `mapstructure:"LLM_TIMEOUT"`

	// Worker recommendation backend.
	RecommendationURL        string        `mapstructure:"RECOMMENDATION_URL"`
	RecommendationTimeout    time.Duration `mapstructure:"RECOMMENDATION_TIMEOUT"`
	RecommendationRatePerMin int           `mapstructure:"RECOMMENDATION_RATE_PER_MIN"`
	RecommendationCacheTTL   time.Duration `mapstructure:"RECOMMENDATION_CACHE_TTL"`

	// Chat sessions.
	ChatContextTurns  int           `mapstructure:"CHAT_CONTEXT_TURNS"`
	ChatSessionTTL    time.Duration `mapstructure:"CHAT_SESSION_TTL"`
	ChatMaxImageBytes int64         `mapstructure:"CHAT_MAX_IMAGE_BYTES"`

	// Speech to text.
	GoogleServiceAccountFile string `mapstructure:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	SpeechLanguage           string `mapstructure:"SPEECH_LANGUAGE"`

	// Location.
	GeolocationEnabled  bool          `mapstructure:"GEOLOCATION_ENABLED"`
	GeolocationCacheTTL time.Duration `mapstructure:"GEOLOCATION_CACHE_TTL"`
	DefaultLocation     string        `mapstructure:"DEFAULT_LOCATION"`
}

var AppConfig Config

func LoadConfig() {
	// A .env file is optional; real environment variables still win through viper.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 100)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("CACHE_ENABLED", false)

	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("GEMINI_VISION_MODEL", "gemini-1.5-flash")
	v.SetDefault("GEMINI_TEMPERATURE", 0.7)
	v.SetDefault("GEMINI_MAX_OUTPUT_TOKENS", 500)
	v.SetDefault("LLM_TIMEOUT", 30*time.Second)

	v.SetDefault("RECOMMENDATION_URL", "http://localhost:5000")
	v.SetDefault("RECOMMENDATION_TIMEOUT", 15*time.Second)
	v.SetDefault("RECOMMENDATION_RATE_PER_MIN", 120)
	v.SetDefault("RECOMMENDATION_CACHE_TTL", 10*time.Minute)

	v.SetDefault("CHAT_CONTEXT_TURNS", 10)
	v.SetDefault("CHAT_SESSION_TTL", 30*time.Minute)
	v.SetDefault("CHAT_MAX_IMAGE_BYTES", 8<<20)

	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	v.SetDefault("SPEECH_LANGUAGE", "en-US")

	v.SetDefault("GEOLOCATION_ENABLED", false)
	v.SetDefault("GEOLOCATION_CACHE_TTL", 24*time.Hour)
	v.SetDefault("DEFAULT_LOCATION", "")
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
