package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every environment variable the client reads
const EnvPrefix = "LECTURECHAT_"

// Config is the chat client's settings, one section per concern
type Config struct {
	Chat       *ChatConfig       `json:"chat" envPrefix:"CHAT_"`
	Reconnect  *ReconnectConfig  `json:"reconnect" envPrefix:"RECONNECT_"`
	Send       *SendConfig       `json:"send" envPrefix:"SEND_"`
	WebSocket  *WebSocketConfig  `json:"websocket" envPrefix:"WEBSOCKET_"`
	TokenStore *TokenStoreConfig `json:"token_store" envPrefix:"TOKENSTORE_"`
}

// ChatConfig locates the chat backend. The socket endpoint is derived from
// the REST base url by stripping StripSuffix and appending SocketPath.
type ChatConfig struct {
	BaseURL     string `json:"base_url" env:"BASE_URL"`
	StripSuffix string `json:"strip_suffix" env:"STRIP_SUFFIX"`
	SocketPath  string `json:"socket_path" env:"SOCKET_PATH"`
}

type ReconnectConfig struct {
	Attempts int           `json:"attempts" env:"ATTEMPTS"`
	Delay    time.Duration `json:"delay" env:"DELAY"`
	DelayMax time.Duration `json:"delay_max" env:"DELAY_MAX"`
}

type SendConfig struct {
	AckTimeout   time.Duration `json:"ack_timeout" env:"ACK_TIMEOUT"`
	TypingWindow time.Duration `json:"typing_window" env:"TYPING_WINDOW"`
}

type WebSocketConfig struct {
	DialTimeout  time.Duration `json:"dial_timeout" env:"DIAL_TIMEOUT"`
	PingInterval time.Duration `json:"ping_interval" env:"PING_INTERVAL"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT"`
	BufferSize   int           `json:"buffer_size" env:"BUFFER_SIZE"`
}

// TokenStoreConfig picks where credentials live: memory, sqlite or redis
type TokenStoreConfig struct {
	Driver      string `json:"driver" env:"DRIVER"`
	Path        string `json:"path" env:"PATH"`
	RedisAddr   string `json:"redis_addr" env:"REDIS_ADDR"`
	RedisDB     int    `json:"redis_db" env:"REDIS_DB"`
	RedisPrefix string `json:"redis_prefix" env:"REDIS_PREFIX"`
	AccessToken string `json:"-" env:"ACCESS_TOKEN"`
}

// DefaultConfig mirrors the mobile client: ten reconnect attempts between
// one and five seconds, a ten second ack timeout and a 20s dial.
func DefaultConfig() *Config {
	return &Config{
		Chat: &ChatConfig{
			BaseURL:     "http://localhost:8000/chat/",
			StripSuffix: "/chat/",
			SocketPath:  "/ws",
		},
		Reconnect: &ReconnectConfig{
			Attempts: 10,
			Delay:    time.Second,
			DelayMax: 5 * time.Second,
		},
		Send: &SendConfig{
			AckTimeout:   10 * time.Second,
			TypingWindow: 2 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			DialTimeout:  20 * time.Second,
			PingInterval: 25 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 5 * time.Second,
			BufferSize:   100,
		},
		TokenStore: &TokenStoreConfig{
			Driver:      "memory",
			Path:        "./data/lecturechat.db",
			RedisPrefix: "lecturechat:",
		},
	}
}

func (c *Config) Validate() error {
	if c.Chat == nil {
		return fmt.Errorf("chat configuration is required")
	}
	if c.Chat.BaseURL == "" {
		return fmt.Errorf("chat base url cannot be empty")
	}
	u, err := url.Parse(c.Chat.BaseURL)
	if err != nil {
		return fmt.Errorf("chat base url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("chat base url scheme must be http(s) or ws(s), got %q", u.Scheme)
	}
	if !strings.HasPrefix(c.Chat.SocketPath, "/") {
		return fmt.Errorf("socket path must start with /")
	}

	if c.Reconnect == nil {
		return fmt.Errorf("reconnect configuration is required")
	}
	if c.Reconnect.Attempts <= 0 {
		return fmt.Errorf("reconnect attempts must be positive")
	}
	if c.Reconnect.Delay <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	if c.Reconnect.DelayMax < c.Reconnect.Delay {
		return fmt.Errorf("reconnect delay max must be at least the initial delay")
	}

	if c.Send == nil {
		return fmt.Errorf("send configuration is required")
	}
	if c.Send.AckTimeout <= 0 {
		return fmt.Errorf("ack timeout must be positive")
	}
	if c.Send.TypingWindow < 0 {
		return fmt.Errorf("typing window cannot be negative")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.DialTimeout <= 0 {
		return fmt.Errorf("WebSocket dial timeout must be positive")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.TokenStore == nil {
		return fmt.Errorf("token store configuration is required")
	}
	switch c.TokenStore.Driver {
	case "memory":
	case "sqlite":
		if c.TokenStore.Path == "" {
			return fmt.Errorf("sqlite token store needs a path")
		}
	case "redis":
		if c.TokenStore.RedisAddr == "" {
			return fmt.Errorf("redis token store needs an address")
		}
	default:
		return fmt.Errorf("unknown token store driver %q", c.TokenStore.Driver)
	}

	return nil
}

// SocketURL derives the socket endpoint from the chat base url:
// http://host/chat/ becomes ws://host/ws.
func (c *Config) SocketURL() (string, error) {
	base := c.Chat.BaseURL
	if c.Chat.StripSuffix != "" {
		base = strings.Replace(base, c.Chat.StripSuffix, "", 1)
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("chat base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + c.Chat.SocketPath
	return u.String(), nil
}

// LoadFromEnv overlays LECTURECHAT_* variables on the defaults
func LoadFromEnv() (*Config, error) {
	config := DefaultConfig()
	if err := applyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// fileConfig is the JSON layout on disk; durations are strings like "5s"
type fileConfig struct {
	Chat      *ChatConfig `json:"chat"`
	Reconnect *struct {
		Attempts int    `json:"attempts"`
		Delay    string `json:"delay"`
		DelayMax string `json:"delay_max"`
	} `json:"reconnect"`
	Send *struct {
		AckTimeout   string `json:"ack_timeout"`
		TypingWindow string `json:"typing_window"`
	} `json:"send"`
	WebSocket *struct {
		DialTimeout  string `json:"dial_timeout"`
		PingInterval string `json:"ping_interval"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
		BufferSize   int    `json:"buffer_size"`
	} `json:"websocket"`
	TokenStore *TokenStoreConfig `json:"token_store"`
}

// LoadFromFile reads a JSON config file over the defaults
func LoadFromFile(filepath string) (*Config, error) {
	config := DefaultConfig()
	if err := applyFile(config, filepath); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}
	return config, nil
}

func applyFile(config *Config, filepath string) error {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var f fileConfig
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	if f.Chat != nil {
		setString(&config.Chat.BaseURL, f.Chat.BaseURL)
		setString(&config.Chat.StripSuffix, f.Chat.StripSuffix)
		setString(&config.Chat.SocketPath, f.Chat.SocketPath)
	}

	var errs []string
	duration := func(name, raw string, dst *time.Duration) {
		if raw == "" {
			return
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			return
		}
		*dst = d
	}

	if r := f.Reconnect; r != nil {
		if r.Attempts > 0 {
			config.Reconnect.Attempts = r.Attempts
		}
		duration("reconnect.delay", r.Delay, &config.Reconnect.Delay)
		duration("reconnect.delay_max", r.DelayMax, &config.Reconnect.DelayMax)
	}
	if s := f.Send; s != nil {
		duration("send.ack_timeout", s.AckTimeout, &config.Send.AckTimeout)
		duration("send.typing_window", s.TypingWindow, &config.Send.TypingWindow)
	}
	if w := f.WebSocket; w != nil {
		duration("websocket.dial_timeout", w.DialTimeout, &config.WebSocket.DialTimeout)
		duration("websocket.ping_interval", w.PingInterval, &config.WebSocket.PingInterval)
		duration("websocket.read_timeout", w.ReadTimeout, &config.WebSocket.ReadTimeout)
		duration("websocket.write_timeout", w.WriteTimeout, &config.WebSocket.WriteTimeout)
		if w.BufferSize > 0 {
			config.WebSocket.BufferSize = w.BufferSize
		}
	}
	if ts := f.TokenStore; ts != nil {
		setString(&config.TokenStore.Driver, ts.Driver)
		setString(&config.TokenStore.Path, ts.Path)
		setString(&config.TokenStore.RedisAddr, ts.RedisAddr)
		setString(&config.TokenStore.RedisPrefix, ts.RedisPrefix)
		if ts.RedisDB > 0 {
			config.TokenStore.RedisDB = ts.RedisDB
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid durations in %s: %s", filepath, strings.Join(errs, "; "))
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// LoadConfigWithPrecedence resolves file > environment > defaults. A
// missing file is not an error; an unreadable or invalid one is.
func LoadConfigWithPrecedence(filepath string) (*Config, error) {
	config := DefaultConfig()
	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if filepath != "" {
		if _, err := os.Stat(filepath); err == nil {
			if err := applyFile(config, filepath); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", filepath, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
