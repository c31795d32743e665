package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		WSURL      string `yaml:"ws_url"`
		APIBaseURL string `yaml:"api_base_url"`
	} `yaml:"server"`
	Timers struct {
		HeartbeatSeconds   int `yaml:"heartbeat_seconds"`
		OfferExpirySeconds int `yaml:"offer_expiry_seconds"`
		ResumeWaitSeconds  int `yaml:"resume_wait_seconds"`
		StatusPollMillis   int `yaml:"status_poll_millis"`
	} `yaml:"timers"`
	Reconnect struct {
		InitialDelayMillis int `yaml:"initial_delay_millis"`
		MaxDelaySeconds    int `yaml:"max_delay_seconds"`
	} `yaml:"reconnect"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Probe struct {
		Address        string `yaml:"address"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"probe"`
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// Опциональный YAML файл, переменные окружения важнее
	if path := os.Getenv("RIDEHAIL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.Server.WSURL = getEnv("RIDEHAIL_WS_URL", withDefault(cfg.Server.WSURL, "ws://localhost:8080/ws"))
	cfg.Server.APIBaseURL = getEnv("RIDEHAIL_API_URL", withDefault(cfg.Server.APIBaseURL, "http://localhost:8080"))

	cfg.Timers.HeartbeatSeconds = getEnvInt("RIDEHAIL_HEARTBEAT_SECONDS", withDefaultInt(cfg.Timers.HeartbeatSeconds, 10))
	cfg.Timers.OfferExpirySeconds = getEnvInt("RIDEHAIL_OFFER_EXPIRY_SECONDS", withDefaultInt(cfg.Timers.OfferExpirySeconds, 30))
	cfg.Timers.ResumeWaitSeconds = getEnvInt("RIDEHAIL_RESUME_WAIT_SECONDS", withDefaultInt(cfg.Timers.ResumeWaitSeconds, 5))
	cfg.Timers.StatusPollMillis = getEnvInt("RIDEHAIL_STATUS_POLL_MILLIS", withDefaultInt(cfg.Timers.StatusPollMillis, 500))

	cfg.Reconnect.InitialDelayMillis = getEnvInt("RIDEHAIL_RECONNECT_INITIAL_MILLIS", withDefaultInt(cfg.Reconnect.InitialDelayMillis, 500))
	cfg.Reconnect.MaxDelaySeconds = getEnvInt("RIDEHAIL_RECONNECT_MAX_SECONDS", withDefaultInt(cfg.Reconnect.MaxDelaySeconds, 30))

	cfg.Storage.Path = getEnv("RIDEHAIL_STORAGE_PATH", withDefault(cfg.Storage.Path, "ridehail.db"))

	cfg.Probe.Address = getEnv("RIDEHAIL_PROBE_ADDRESS", withDefault(cfg.Probe.Address, ""))
	cfg.Probe.TimeoutSeconds = getEnvInt("RIDEHAIL_PROBE_TIMEOUT_SECONDS", withDefaultInt(cfg.Probe.TimeoutSeconds, 3))

	return cfg, nil
}

func withDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}

func withDefaultInt(val, def int) int {
	if val != 0 {
		return val
	}
	return def
}

func (c *Config) Print() {
	fmt.Printf("🌐 Server: ws=%s api=%s\n", c.Server.WSURL, c.Server.APIBaseURL)
	fmt.Printf("⏱ Timers → heartbeat:%ds | offer_expiry:%ds | resume_wait:%ds | poll:%dms\n",
		c.Timers.HeartbeatSeconds, c.Timers.OfferExpirySeconds,
		c.Timers.ResumeWaitSeconds, c.Timers.StatusPollMillis)
	fmt.Printf("🔁 Reconnect: initial=%dms max=%ds\n", c.Reconnect.InitialDelayMillis, c.Reconnect.MaxDelaySeconds)
	fmt.Printf("💾 Storage: %s\n", c.Storage.Path)
}
