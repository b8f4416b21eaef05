package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the vision engine.
type Config struct {
	Port      int
	Version   string
	Inference InferenceConfig
	Stream    StreamConfig
	Evidence  EvidenceConfig
	Notify    NotifyConfig
	Telemetry TelemetryConfig
	Log       LogConfig
}

type InferenceConfig struct {
	BaseURL   string
	Namespace string
}

type StreamConfig struct {
	// FrameInterval is the default sampling interval applied when a
	// request does not set one.
	FrameInterval time.Duration
	// ChunkDuration is the length of evidence clips.
	ChunkDuration time.Duration
}

type EvidenceConfig struct {
	Dir           string
	BaseURL       string
	RetentionDays int
}

type NotifyConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Topic         string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("ENGINE_PORT", 8080),
		Version: envStr("ENGINE_VERSION", "0.4.0"),
		Inference: InferenceConfig{
			BaseURL:   envStr("INFERENCE_BASE_URL", "http://localhost:8500"),
			Namespace: envStr("INFERENCE_NAMESPACE", "vision"),
		},
		Stream: StreamConfig{
			FrameInterval: envDuration("STREAM_FRAME_INTERVAL", 2*time.Second),
			ChunkDuration: envDuration("STREAM_CHUNK_DURATION", 10*time.Second),
		},
		Evidence: EvidenceConfig{
			Dir:           envStr("EVIDENCE_DIR", "/var/lib/visionedge/evidence"),
			BaseURL:       envStr("EVIDENCE_BASE_URL", "http://localhost:8080/evidence"),
			RetentionDays: envInt("EVIDENCE_RETENTION_DAYS", 30),
		},
		Notify: NotifyConfig{
			RedisAddr:     envStr("REDIS_ADDR", "localhost:6379"),
			RedisPassword: envStr("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Topic:         envStr("NOTIFY_TOPIC", "vision_results"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", true),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "visionedge-engine"),
		},
		Log: LogConfig{
			File:       envStr("LOG_FILE", ""),
			MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 14),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
