package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort    string
	FeedPort    string
	GRPCServer  string
	RedisAddr   string
	RedisDB     int
	ProxyAddr   string
	LogLevel    string
	LogFormat   string
	RawLogDir   string
	AnchorsFile string

	// Fuente de ubicación: "sim" o "feed"
	Provider        string
	ProviderTimeout time.Duration

	LocationInterval  time.Duration
	HeadingInterval   time.Duration
	SensorInterval    time.Duration
	WindowSize        int
	AccuracyThreshold float64
	MaxSampleAge      time.Duration

	UseCompass   bool
	ShowDebug    bool
	ShowAccuracy bool
	ShowHeading  bool

	CenterLat     float64
	CenterLon     float64
	MetersPerUnit float64

	SimStep        float64
	SimMinAccuracy float64
	SimMaxAccuracy float64
	SimSeed        int64

	TracingEnabled  bool
	TracingExporter string
	OTLPEndpoint    string
	TraceRatio      float64
}

func Load() Config {
	return Config{
		HTTPPort:    getEnv("HTTP_PORT", "9000"),
		FeedPort:    getEnv("FEED_PORT", "8001"),
		GRPCServer:  getEnv("GRPC_SERVER", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		ProxyAddr:   getEnv("PROXY_ADDR", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		RawLogDir:   getEnv("RAW_LOG_DIR", ""),
		AnchorsFile: getEnv("ANCHORS_FILE", ""),

		Provider:        strings.ToLower(getEnv("LOCATION_PROVIDER", "sim")),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),

		LocationInterval:  getEnvDuration("LOCATION_INTERVAL", time.Second),
		HeadingInterval:   getEnvDuration("HEADING_INTERVAL", 100*time.Millisecond),
		SensorInterval:    getEnvDuration("SENSOR_INTERVAL", 2*time.Second),
		WindowSize:        getEnvInt("SMOOTHING_WINDOW", 5),
		AccuracyThreshold: getEnvFloat("ACCURACY_THRESHOLD", 20),
		MaxSampleAge:      getEnvDuration("MAX_SAMPLE_AGE", 120*time.Second),

		UseCompass:   getEnvBool("USE_COMPASS", true),
		ShowDebug:    getEnvBool("SHOW_DEBUG", true),
		ShowAccuracy: getEnvBool("SHOW_ACCURACY", true),
		ShowHeading:  getEnvBool("SHOW_HEADING", true),

		CenterLat:     getEnvFloat("CENTER_LAT", 37.45545247454799),
		CenterLon:     getEnvFloat("CENTER_LON", -120.00904196548811),
		MetersPerUnit: getEnvFloat("METERS_PER_UNIT", 100),

		SimStep:        getEnvFloat("SIM_STEP_METERS", 1.5),
		SimMinAccuracy: getEnvFloat("SIM_MIN_ACCURACY", 3),
		SimMaxAccuracy: getEnvFloat("SIM_MAX_ACCURACY", 25),
		SimSeed:        int64(getEnvInt("SIM_SEED", 0)),

		TracingEnabled:  getEnvBool("TRACING_ENABLED", false),
		TracingExporter: getEnv("TRACING_EXPORTER", "stdout"),
		OTLPEndpoint:    getEnv("OTLP_ENDPOINT", ""),
		TraceRatio:      getEnvFloat("TRACING_SAMPLE_RATIO", 1),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

// acepta "1.5s", "100ms" o segundos sueltos ("2")
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}
