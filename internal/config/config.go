package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env        string
	ServerPort string

	// StoreDriver selects the repository backend: "postgres" or "memory".
	StoreDriver string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// RedisURL enables presence tracking when set.
	RedisURL  string
	JWTSecret string

	// KafkaBrokers enables message event publishing when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// OTelEndpoint enables trace export when set.
	OTelEndpoint    string
	OTelServiceName string
	OTelSampleRatio float64

	WS WSConfig
}

type WSConfig struct {
	// ReportErrors sends an error event back to the connection that issued a
	// rejected intent. Rejections are only logged otherwise.
	ReportErrors     bool
	IntentsPerSecond float64
	IntentBurst      int
	SendBuffer       int
}

func (c *Config) Development() bool {
	return c.Env == "development"
}

// Load reads configuration from the environment, an optional .env file and
// an optional config file named by CONFIG_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "teamchat")
	v.SetDefault("DB_PASSWORD", "teamchat_dev_password")
	v.SetDefault("DB_NAME", "teamchat")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "chat.messages")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_SERVICE_NAME", "teamchat")
	v.SetDefault("OTEL_TRACES_SAMPLER_ARG", 1.0)
	v.SetDefault("WS_REPORT_ERRORS", false)
	v.SetDefault("WS_INTENTS_PER_SECOND", 20)
	v.SetDefault("WS_INTENT_BURST", 40)
	v.SetDefault("WS_SEND_BUFFER", 256)

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{
		Env:             v.GetString("APP_ENV"),
		ServerPort:      v.GetString("SERVER_PORT"),
		StoreDriver:     v.GetString("STORE_DRIVER"),
		DBHost:          v.GetString("DB_HOST"),
		DBPort:          v.GetString("DB_PORT"),
		DBUser:          v.GetString("DB_USER"),
		DBPassword:      v.GetString("DB_PASSWORD"),
		DBName:          v.GetString("DB_NAME"),
		RedisURL:        v.GetString("REDIS_URL"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		KafkaBrokers:    splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:      v.GetString("KAFKA_TOPIC"),
		OTelEndpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelServiceName: v.GetString("OTEL_SERVICE_NAME"),
		OTelSampleRatio: v.GetFloat64("OTEL_TRACES_SAMPLER_ARG"),
		WS: WSConfig{
			ReportErrors:     v.GetBool("WS_REPORT_ERRORS"),
			IntentsPerSecond: v.GetFloat64("WS_INTENTS_PER_SECOND"),
			IntentBurst:      v.GetInt("WS_INTENT_BURST"),
			SendBuffer:       v.GetInt("WS_SEND_BUFFER"),
		},
	}

	switch cfg.StoreDriver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
