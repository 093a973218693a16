package config

import (
	"os"
	"strings"
	"time"

	"RPChat/tools/errs"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

type WSConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	SendQueueSize   int           `yaml:"send_queue_size"` // outbound frames buffered per connection
	MaxFrameBytes   int64         `yaml:"max_frame_bytes"`
	WriteWait       time.Duration `yaml:"write_wait"`
	PongWait        time.Duration `yaml:"pong_wait"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // empty = any origin
}

type ChatConfig struct {
	MaxMessageLength int           `yaml:"max_message_length"` // in runes
	PersistTimeout   time.Duration `yaml:"persist_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"` // empty = in-memory store
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr"` // empty = presence mirror disabled
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PresenceTTL time.Duration `yaml:"presence_ttl"`
}

type NatsConfig struct {
	URL             string `yaml:"url"` // empty = narrator bridge disabled
	Name            string `yaml:"name"`
	NarratorSubject string `yaml:"narrator_subject"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // empty = admin API disabled
}

type AppConfig struct {
	NodeID   int64          `yaml:"node_id"`
	HTTPAddr string         `yaml:"http_addr"`
	LogLevel string         `yaml:"log_level"`
	WS       WSConfig       `yaml:"ws"`
	Chat     ChatConfig     `yaml:"chat"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Nats     NatsConfig     `yaml:"nats"`
	Admin    AdminConfig    `yaml:"admin"`
}

// envBindings maps environment variables onto dotted config paths.
var envBindings = map[string]string{
	"RPCHAT_NODE_ID":            "node_id",
	"RPCHAT_HTTP_ADDR":          "http_addr",
	"RPCHAT_LOG_LEVEL":          "log_level",
	"RPCHAT_WS_SEND_QUEUE":      "ws.send_queue_size",
	"RPCHAT_WS_ALLOWED_ORIGINS": "ws.allowed_origins",
	"RPCHAT_MAX_MESSAGE_LENGTH": "chat.max_message_length",
	"RPCHAT_DATABASE_URL":       "database.url",
	"RPCHAT_DATABASE_MAX_CONNS": "database.max_conns",
	"RPCHAT_REDIS_ADDR":         "redis.addr",
	"RPCHAT_REDIS_PASSWORD":     "redis.password",
	"RPCHAT_REDIS_DB":           "redis.db",
	"RPCHAT_NATS_URL":           "nats.url",
	"RPCHAT_NATS_SUBJECT":       "nats.narrator_subject",
	"RPCHAT_ADMIN_JWT_SECRET":   "admin.jwt_secret",
}

func Default() AppConfig {
	c := AppConfig{}
	c.norm()
	return c
}

func (c *AppConfig) norm() {
	if c.NodeID <= 0 {
		c.NodeID = 1
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.WS.ReadBufferSize <= 0 {
		c.WS.ReadBufferSize = 4096
	}
	if c.WS.WriteBufferSize <= 0 {
		c.WS.WriteBufferSize = 4096
	}
	if c.WS.SendQueueSize <= 0 {
		c.WS.SendQueueSize = 256
	}
	if c.WS.MaxFrameBytes <= 0 {
		c.WS.MaxFrameBytes = 64 << 10
	}
	if c.WS.WriteWait <= 0 {
		c.WS.WriteWait = 10 * time.Second
	}
	if c.WS.PongWait <= 0 {
		c.WS.PongWait = 60 * time.Second
	}
	if c.WS.PingInterval <= 0 || c.WS.PingInterval >= c.WS.PongWait {
		c.WS.PingInterval = c.WS.PongWait * 9 / 10
	}
	if c.Chat.MaxMessageLength <= 0 {
		c.Chat.MaxMessageLength = 2000
	}
	if c.Chat.PersistTimeout <= 0 {
		c.Chat.PersistTimeout = 5 * time.Second
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Redis.PresenceTTL <= 0 {
		c.Redis.PresenceTTL = 2 * time.Hour
	}
	if c.Nats.Name == "" {
		c.Nats.Name = "rpchat-gateway"
	}
	if c.Nats.NarratorSubject == "" {
		c.Nats.NarratorSubject = "rp.narrator"
	}
}

// Load reads the optional YAML file at path, applies RPCHAT_* environment
// overrides and fills defaults.
func Load(path string) (*AppConfig, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*AppConfig, error) {
	var c AppConfig
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.WrapMsg(err, "read config", "path", path)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return nil, errs.WrapMsg(err, "parse config", "path", path)
		}
	}
	if err := applyEnv(&c, lookup); err != nil {
		return nil, err
	}
	c.norm()
	return &c, nil
}

func applyEnv(c *AppConfig, lookup func(string) (string, bool)) error {
	overrides := make(map[string]any)
	for env, path := range envBindings {
		v, ok := lookup(env)
		if !ok {
			continue
		}
		setPath(overrides, strings.Split(path, "."), v)
	}
	if len(overrides) == 0 {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		Result:           c,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errs.Wrap(err)
	}
	if err := dec.Decode(overrides); err != nil {
		return errs.WrapMsg(err, "decode env overrides")
	}
	return nil
}

func setPath(m map[string]any, keys []string, v string) {
	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[k] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = v
}

// WithDefaults fills unset websocket settings.
func (c WSConfig) WithDefaults() WSConfig {
	a := AppConfig{WS: c}
	a.norm()
	return a.WS
}
