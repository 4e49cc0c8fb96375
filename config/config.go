package config

import "time"

// Config contains all application settings
type Config struct {
	BindPort      int    `mapstructure:"PORT" yaml:"port"`
	BindHost      string `mapstructure:"HOST" yaml:"host"`
	DatabaseURL   string `mapstructure:"DATABASE_URL" yaml:"database_url"`
	NATSServerURL string `mapstructure:"NATS_URL" yaml:"nats_url"`
	AdminAPIKey   string `mapstructure:"ADMIN_API_KEY" yaml:"admin_api_key"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL" yaml:"log_level"`
	LogFormat string `mapstructure:"LOG_FORMAT" yaml:"log_format"`

	// Log synchronization
	ForwardURL     string        `mapstructure:"FORWARD_URL" yaml:"forward_url"`
	SyncInterval   time.Duration `mapstructure:"SYNC_INTERVAL" yaml:"sync_interval"`
	SyncRetryCount int           `mapstructure:"SYNC_RETRY_COUNT" yaml:"sync_retry_count"`
	SyncRetryDelay time.Duration `mapstructure:"SYNC_RETRY_DELAY" yaml:"sync_retry_delay"`
	SyncStart      string        `mapstructure:"SYNC_START" yaml:"sync_start"`
	DeviceTimeout  time.Duration `mapstructure:"DEVICE_TIMEOUT" yaml:"device_timeout"`
	ForwardTimeout time.Duration `mapstructure:"FORWARD_TIMEOUT" yaml:"forward_timeout"`

	// Device sessions
	SessionTTL       time.Duration `mapstructure:"SESSION_TTL" yaml:"session_ttl"`
	SessionCacheSize int           `mapstructure:"SESSION_CACHE_SIZE" yaml:"session_cache_size"`

	// Push protocol
	CommandTTL      time.Duration `mapstructure:"COMMAND_TTL" yaml:"command_ttl"`
	ResultRetention time.Duration `mapstructure:"RESULT_RETENTION" yaml:"result_retention"`

	// Notifications
	NotificationCategories []string `mapstructure:"NOTIFICATION_CATEGORIES" yaml:"notification_categories"`

	// Version
	BuildVersion string `yaml:"-"`
	BuildHash    string `yaml:"-"`
	BuildTime    string `yaml:"-"`
}

// Defaults for settings that must never be zero at runtime.
const (
	DefaultSyncInterval     = time.Minute
	DefaultSyncRetryCount   = 3
	DefaultSyncRetryDelay   = 5 * time.Second
	DefaultDeviceTimeout    = 10 * time.Second
	DefaultForwardTimeout   = 10 * time.Second
	DefaultSessionTTL       = 10 * time.Minute
	DefaultSessionCacheSize = 256
	DefaultCommandTTL       = 24 * time.Hour
	DefaultResultRetention  = time.Hour
)

// Normalize replaces zero or negative values with their defaults.
func (c *Config) Normalize() {
	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.SyncRetryCount <= 0 {
		c.SyncRetryCount = DefaultSyncRetryCount
	}
	if c.SyncRetryDelay < 0 {
		c.SyncRetryDelay = DefaultSyncRetryDelay
	}
	if c.DeviceTimeout <= 0 {
		c.DeviceTimeout = DefaultDeviceTimeout
	}
	if c.ForwardTimeout <= 0 {
		c.ForwardTimeout = DefaultForwardTimeout
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.SessionCacheSize <= 0 {
		c.SessionCacheSize = DefaultSessionCacheSize
	}
	if c.CommandTTL <= 0 {
		c.CommandTTL = DefaultCommandTTL
	}
	if c.ResultRetention <= 0 {
		c.ResultRetention = DefaultResultRetention
	}
}
