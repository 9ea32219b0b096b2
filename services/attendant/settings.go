package main

import (
	"fmt"
	"time"

	"github.com/round-cube/parking-attendant/pricing"
	"github.com/round-cube/parking-attendant/shared"
)

const (
	backendMemory = "memory"
	backendRedis  = "redis"
)

type Settings struct {
	hourlyRate         float64
	policy             pricing.Policy
	location           *time.Location
	currencySymbol     string
	foreignCurrency    string
	rateURL            string
	fixedRate          float64
	rateField          string
	rateTimeoutS       int
	ledgerBackend      string
	redisURL           string
	rmqURL             string
	entrancesQueueName string
	exitsQueueName     string
	httpAddr           string
	promPort           int
	promPath           string
	logLevel           string
}

func newSettings() (Settings, error) {
	var s Settings
	var err error

	s.hourlyRate, err = shared.GetEnvFloat("HOURLY_RATE", 1000)
	if err != nil {
		return s, err
	}

	s.policy, err = pricing.ParsePolicy(shared.GetEnvDefault("BILLING_POLICY", string(pricing.PolicyRoundUp)))
	if err != nil {
		return s, err
	}

	tz := shared.GetEnvDefault("TIMEZONE", "America/Argentina/Buenos_Aires")
	s.location, err = time.LoadLocation(tz)
	if err != nil {
		return s, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	s.ledgerBackend = shared.GetEnvDefault("LEDGER_BACKEND", backendMemory)
	switch s.ledgerBackend {
	case backendMemory:
	case backendRedis:
		s.redisURL, err = shared.GetEnv("REDIS_URL")
		if err != nil {
			return s, err
		}
	default:
		return s, fmt.Errorf("unknown LEDGER_BACKEND %q (want %s or %s)", s.ledgerBackend, backendMemory, backendRedis)
	}

	s.currencySymbol = shared.GetEnvDefault("CURRENCY_SYMBOL", "$")
	s.foreignCurrency = shared.GetEnvDefault("FOREIGN_CURRENCY", "USD")
	s.rateURL = shared.GetEnvDefault("RATE_URL", "https://dolarapi.com/v1/dolares/blue")
	s.fixedRate, err = shared.GetEnvFloat("FIXED_RATE", 0)
	if err != nil {
		return s, err
	}
	s.rateField = shared.GetEnvDefault("RATE_FIELD", "venta")
	s.rateTimeoutS = shared.GetEnvInt("RATE_TIMEOUT_S", 5)
	s.rmqURL = shared.GetEnvDefault("RMQ_URL", "")
	s.entrancesQueueName = shared.GetEnvDefault("ENTRANCES_QUEUE_NAME", "entrances")
	s.exitsQueueName = shared.GetEnvDefault("EXITS_QUEUE_NAME", "exits")
	s.httpAddr = shared.GetEnvDefault("HTTP_ADDR", ":8080")
	s.promPath = shared.GetEnvDefault("PROM_PATH", "/metrics")
	s.promPort = shared.GetEnvInt("PROM_PORT", 2112)
	s.logLevel = shared.GetEnvDefault("LOG_LEVEL", "info")

	return s, nil
}
