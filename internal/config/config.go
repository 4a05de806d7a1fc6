package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ServerConfig configures the hosted document API.
type ServerConfig struct {
	Port              string
	AllowedOrigin     string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	AuthSecret        string
	TokenTTLHours     int
	SummaryTTLSeconds int
}

// ClientConfig configures the point-of-sale agent.
type ClientConfig struct {
	ListenAddr           string
	RemoteURL            string
	LocalDBPath          string
	ProbeIntervalSeconds int
	RequestTimeoutSecs   int
}

func Load() ServerConfig {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	summaryTTL, err := strconv.Atoi(getEnv("SUMMARY_TTL_SECONDS", "30"))
	if err != nil || summaryTTL < 1 {
		summaryTTL = 30
	}
	tokenTTL, err := strconv.Atoi(getEnv("TOKEN_TTL_HOURS", "720"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 720
	}

	cfg := ServerConfig{
		Port:              getEnv("PORT", "8080"),
		AllowedOrigin:     getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           redisDB,
		AuthSecret:        strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		TokenTTLHours:     tokenTTL,
		SummaryTTLSeconds: summaryTTL,
	}

	return cfg
}

func LoadClient() ClientConfig {
	probe, err := strconv.Atoi(getEnv("PROBE_INTERVAL_SECONDS", "30"))
	if err != nil || probe < 1 {
		probe = 30
	}
	timeout, err := strconv.Atoi(getEnv("REQUEST_TIMEOUT_SECONDS", "10"))
	if err != nil || timeout < 1 {
		timeout = 10
	}

	return ClientConfig{
		ListenAddr:           getEnv("POS_LISTEN_ADDR", "127.0.0.1:7373"),
		RemoteURL:            getEnv("REMOTE_URL", "http://127.0.0.1:8080"),
		LocalDBPath:          getEnv("LOCAL_DB_PATH", "pos.db"),
		ProbeIntervalSeconds: probe,
		RequestTimeoutSecs:   timeout,
	}
}

func (c ServerConfig) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
