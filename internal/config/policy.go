package config

import (
	"os"
	"strconv"
	"time"
)

// Policy holds the credit and retrieval policy constants. Values come from
// the environment with sensible defaults so a bare checkout runs.
type Policy struct {
	DefaultStartingCredits int64
	LowBalanceThreshold    int64
	QueryCost              int64
	SessionTTL             time.Duration
	ReservationTTL         time.Duration
	SourceTimeout          time.Duration
	GeneratorTimeout       time.Duration
	MaxRetrievalItems      int
	SnippetMaxChars        int
	WebCacheTTL            time.Duration
	RetryAttempts          int
}

func LoadPolicy() *Policy {
	return &Policy{
		DefaultStartingCredits: getEnvAsInt64("CREDITS_STARTING_BALANCE", 10),
		LowBalanceThreshold:    getEnvAsInt64("CREDITS_LOW_THRESHOLD", 3),
		QueryCost:              getEnvAsInt64("CREDITS_QUERY_COST", 1),
		SessionTTL:             getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		ReservationTTL:         getEnvAsDuration("RESERVATION_TTL", 2*time.Minute),
		SourceTimeout:          getEnvAsDuration("SOURCE_TIMEOUT", 8*time.Second),
		GeneratorTimeout:       getEnvAsDuration("GENERATOR_TIMEOUT", 30*time.Second),
		MaxRetrievalItems:      getEnvAsInt("MAX_RETRIEVAL_ITEMS", 10),
		SnippetMaxChars:        getEnvAsInt("SNIPPET_MAX_CHARS", 200),
		WebCacheTTL:            getEnvAsDuration("WEB_CACHE_TTL", 15*time.Minute),
		RetryAttempts:          getEnvAsInt("PROVIDER_RETRY_ATTEMPTS", 2),
	}
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
