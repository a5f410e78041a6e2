// Package config provides application configuration management with support
// for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// defaultRelays is the relay set the original OpenBook client ships with.
var defaultRelays = []string{
	"wss://relay.damus.io",
	"wss://relay.primal.net",
	"wss://nos.lol",
	"wss://relay.snort.social",
	"wss://nostr.wine",
	"wss://relay.nostr.band",
}

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Relay   RelayConfig
	Feed    FeedConfig
	Grant   GrantConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig holds local persistence configuration.
type StorageConfig struct {
	// DataPath is the directory for the key store, the DM watermark,
	// the signer identity file, and the search index.
	DataPath string
}

// RelayConfig holds relay transport configuration.
type RelayConfig struct {
	// URLs is the relay set for the pool transport. The in-process
	// relay the daemon currently runs against ignores it.
	URLs []string
	// PublishRPS / PublishBurst bound outbound publishes per author.
	PublishRPS   float64
	PublishBurst int
}

// FeedConfig holds feed reconciliation configuration.
type FeedConfig struct {
	// Limit caps the discovery and follower feeds (default: 50).
	Limit int
}

// GrantConfig holds key-grant listener configuration.
type GrantConfig struct {
	// LookbackSeconds is how far back the first grant scan reaches when no
	// watermark has been persisted yet (default: 3600).
	LookbackSeconds int64
}

// LoadConfig loads configuration from os.Args with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadConfig with explicit arguments, for tests.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("openbook-sync", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for local storage")
	relays := fs.String("relays", "", "Comma-separated relay URLs")
	feedLimit := fs.String("feed-limit", "", "Maximum feed entries (default: 50)")
	publishRPS := fs.String("publish-rps", "", "Publishes per second per author (default: 2)")
	grantLookback := fs.String("grant-lookback", "", "First grant scan lookback in seconds (default: 3600)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	loadEnvFile(*envFile)

	cfg := &Config{
		App:     AppConfig{Environment: pick(*env, "OPENBOOK_ENV", "development")},
		Logger:  LoggerConfig{Level: pick(*logLevel, "OPENBOOK_LOG_LEVEL", "info")},
		Storage: StorageConfig{DataPath: pick(*dataPath, "OPENBOOK_DATA_PATH", defaultDataPath())},
		Relay: RelayConfig{
			URLs:         splitRelays(pick(*relays, "OPENBOOK_RELAYS", "")),
			PublishRPS:   pickFloat(*publishRPS, "OPENBOOK_PUBLISH_RPS", 2),
			PublishBurst: 5,
		},
		Feed:  FeedConfig{Limit: pickInt(*feedLimit, "OPENBOOK_FEED_LIMIT", 50)},
		Grant: GrantConfig{LookbackSeconds: int64(pickInt(*grantLookback, "OPENBOOK_GRANT_LOOKBACK", 3600))},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment %q", c.App.Environment)
	}
	if c.Storage.DataPath == "" {
		return errors.New("data path must not be empty")
	}
	if c.Feed.Limit <= 0 {
		return errors.New("feed limit must be positive")
	}
	if c.Relay.PublishRPS <= 0 {
		return errors.New("publish rate must be positive")
	}
	return nil
}

// pick resolves a value: flag > environment variable > default.
func pick(flagValue, envKey, def string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return def
}

func pickInt(flagValue, envKey string, def int) int {
	raw := pick(flagValue, envKey, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func pickFloat(flagValue, envKey string, def float64) float64 {
	raw := pick(flagValue, envKey, "")
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}

func splitRelays(raw string) []string {
	if raw == "" {
		return append([]string(nil), defaultRelays...)
	}
	var urls []string
	for _, u := range strings.Split(raw, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return append([]string(nil), defaultRelays...)
	}
	return urls
}

func defaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".openbook"
	}
	return home + "/.openbook"
}

// loadEnvFile reads KEY=VALUE lines into the process environment without
// overwriting variables that are already set. A missing file is not an error.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
}
