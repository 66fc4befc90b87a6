package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const DefaultHoldTTL = 15 * time.Minute

// GetHoldTTL reads HOLD_TTL_MINUTES; holds fall back to the default
// window when it is unset or unparsable.
func GetHoldTTL() time.Duration {
	v := os.Getenv("HOLD_TTL_MINUTES")
	if v == "" {
		return DefaultHoldTTL
	}
	mins, err := strconv.Atoi(v)
	if err != nil || mins <= 0 {
		return DefaultHoldTTL
	}
	return time.Duration(mins) * time.Minute
}

func GetReaperInterval() time.Duration {
	v := os.Getenv("REAPER_INTERVAL_SECONDS")
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return time.Minute
	}
	return time.Duration(secs) * time.Second
}

func GetPollerInterval() time.Duration {
	v := os.Getenv("POLLER_INTERVAL_SECONDS")
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(secs) * time.Second
}
