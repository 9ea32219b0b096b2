package shared

import (
	"fmt"
	"os"
	"strconv"
)

func GetEnv(key string) (string, error) {
	value, set := os.LookupEnv(key)
	if !set || value == "" {
		return "", fmt.Errorf("environment variable must be set: %s", key)
	}
	return value, nil
}

func GetEnvDefault(key, defaultValue string) string {
	if value, set := os.LookupEnv(key); set {
		return value
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	if value, set := os.LookupEnv(key); set {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvFloat rejects unparseable or negative values instead of silently
// using the default, since it feeds prices.
func GetEnvFloat(key string, defaultValue float64) (float64, error) {
	value, set := os.LookupEnv(key)
	if !set {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	if floatValue < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return floatValue, nil
}
