package structures

import "time"

const (
	ModePrivate = "private"
	ModeGroup   = "group"

	CompressionNone = "none"
	CompressionZstd = "zstd"
)

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type BotConfig struct {
	Mode          string  `yaml:"mode" validate:"required|in:private,group"`
	TargetGroupID int64   `yaml:"targetGroupId"`
	AdminIDs      []int64 `yaml:"adminIds"`
	OwnerID       int64   `yaml:"ownerId"`
}

type RateLimitConfig struct {
	Messages      int `yaml:"messages" validate:"required|int|min:1"`
	WindowSeconds int `yaml:"windowSeconds" validate:"required|int|min:1"`
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

type Persistence struct {
	FilePath                string `yaml:"filePath" validate:"required"`
	AutoSaveIntervalSeconds int    `yaml:"autoSaveIntervalSeconds" validate:"required|int|min:1"`
	WriteTimeoutSeconds     int    `yaml:"writeTimeoutSeconds" validate:"int|min:0"`
	Compression             string `yaml:"compression" validate:"in:none,zstd"`
}

func (p Persistence) SaveInterval() time.Duration {
	return time.Duration(p.AutoSaveIntervalSeconds) * time.Second
}

// WriteTimeout is zero when writes are unbounded.
func (p Persistence) WriteTimeout() time.Duration {
	return time.Duration(p.WriteTimeoutSeconds) * time.Second
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"uint"`
	Dir   string `yaml:"dir"`
}

type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	Size       int  `yaml:"size"`
	TTLSeconds int  `yaml:"ttlSeconds"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	Bot         BotConfig       `yaml:"bot"`
	RateLimit   RateLimitConfig `yaml:"rateLimit"`
	WebServer   Server          `yaml:"webServer"`
	Persistence Persistence     `yaml:"persistence"`
	Logger      LoggerConfig    `yaml:"logger"`
	Cache       CacheConfig     `yaml:"cache"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}

// IsAdmin reports whether id is the owner or one of the configured admins.
func (c *Config) IsAdmin(id int64) bool {
	if id == 0 {
		return false
	}
	if id == c.Bot.OwnerID {
		return true
	}
	for _, a := range c.Bot.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}
