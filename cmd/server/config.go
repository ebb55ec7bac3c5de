package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"txkit/internal/core/tx"
)

// paramPrefix marks environment variables forwarded as server runtime
// parameters, e.g. DB_PARAM_search_path=app.
const paramPrefix = "DB_PARAM_"

// loadProperties folds the environment into the property bag read by
// tx.ParseConfig.
func loadProperties() map[string]string {
	props := map[string]string{
		tx.PropURL: mustEnv("DATABASE_URL"),
	}

	setIf := func(prop, env string) {
		if v := os.Getenv(env); v != "" {
			props[prop] = v
		}
	}
	setIf(tx.PropUsername, "DB_USER")
	setIf(tx.PropPassword, "DB_PASSWORD")
	setIf(tx.PropMinSize, "DB_MIN_SIZE")
	setIf(tx.PropMaxSize, "DB_MAX_SIZE")
	setIf(tx.PropMaxStatements, "DB_MAX_STATEMENTS")
	setIf(tx.PropTransactionTimeout, "DB_TX_TIMEOUT")
	setIf(tx.PropIdleTestPeriod, "DB_IDLE_TEST_PERIOD")
	setIf(tx.PropTestSession, "DB_TEST_SESSION")

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, paramPrefix) {
			continue
		}
		if name := strings.TrimPrefix(key, paramPrefix); name != "" {
			props[name] = value
		}
	}

	return props
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
