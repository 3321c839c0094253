package pollconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the poll gateway settings
type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Connection struct {
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxMessageSize int64         `yaml:"max_message_size"`
		SendBuffer     int           `yaml:"send_buffer"`
	} `yaml:"connection"`

	BroadcastBuffer int `yaml:"broadcast_buffer"`

	NATS struct {
		URL           string        `yaml:"url"`
		Subject       string        `yaml:"subject"`
		MaxReconnects int           `yaml:"max_reconnects"`
		ReconnectWait time.Duration `yaml:"reconnect_wait"`
	} `yaml:"nats"`
}

// Default returns the built-in settings
func Default() Config {
	var c Config
	c.Server.Port = "5000"
	c.Server.AllowedOrigins = []string{"http://localhost:3000"}
	c.Log.Level = "info"
	c.Log.Pretty = true
	c.Connection.WriteTimeout = 10 * time.Second
	c.Connection.ReadTimeout = 60 * time.Second
	c.Connection.PingInterval = 30 * time.Second
	c.Connection.MaxMessageSize = 4096
	c.Connection.SendBuffer = 256
	c.BroadcastBuffer = 1000
	c.NATS.Subject = "poll.events"
	c.NATS.MaxReconnects = -1
	c.NATS.ReconnectWait = 2 * time.Second
	return c
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the gateway cannot start with
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	if c.Connection.PingInterval <= 0 || c.Connection.ReadTimeout <= 0 || c.Connection.WriteTimeout <= 0 {
		return fmt.Errorf("connection timeouts must be positive")
	}
	if c.Connection.PingInterval >= c.Connection.ReadTimeout {
		return fmt.Errorf("ping interval %s must be shorter than read timeout %s",
			c.Connection.PingInterval, c.Connection.ReadTimeout)
	}
	if c.NATS.URL != "" && strings.TrimSpace(c.NATS.Subject) == "" {
		return fmt.Errorf("nats subject is required when nats url is set")
	}
	return nil
}

// Addr returns the listen address
func (c Config) Addr() string {
	return ":" + c.Server.Port
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("POLL_PORT", c.Server.Port)
	if origins := os.Getenv("POLL_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}
	c.Log.Level = getEnv("POLL_LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getEnvAsBool("POLL_LOG_PRETTY", c.Log.Pretty)
	c.BroadcastBuffer = getEnvAsInt("POLL_BROADCAST_BUFFER", c.BroadcastBuffer)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Subject = getEnv("NATS_SUBJECT", c.NATS.Subject)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
