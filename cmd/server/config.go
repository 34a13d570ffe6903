package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	DataDir    string

	KafkaBrokers []string
	EventsTopic  string
	FeedTopic    string
	FeedInterval time.Duration

	LogLevel string
}

// loadConfig reads a .env file when present, then the environment.
func loadConfig() Config {
	_ = godotenv.Load()

	return Config{
		ListenAddr:   getenv("MATCHBOOK_LISTEN", ":50051"),
		DataDir:      getenv("MATCHBOOK_DATA_DIR", "./data"),
		KafkaBrokers: strings.Split(getenv("MATCHBOOK_KAFKA_BROKERS", "localhost:9092"), ","),
		EventsTopic:  getenv("MATCHBOOK_EVENTS_TOPIC", "matchbook.events"),
		FeedTopic:    getenv("MATCHBOOK_FEED_TOPIC", "matchbook.depth"),
		FeedInterval: getdur("MATCHBOOK_FEED_INTERVAL", time.Second),
		LogLevel:     getenv("MATCHBOOK_LOG_LEVEL", "info"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
