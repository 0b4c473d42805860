package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	AdminName         string        `mapstructure:"admin_name" yaml:"admin_name"`
	AdminPassword     string        `mapstructure:"admin_password" yaml:"admin_password"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash" yaml:"admin_password_hash"`
	TokenSecret       string        `mapstructure:"token_secret" yaml:"token_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	DatabaseDSN       string        `mapstructure:"database_dsn" yaml:"database_dsn"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	MaxFrameBytes     int64         `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
	FramesPerMinute   int           `mapstructure:"frames_per_minute" yaml:"frames_per_minute"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
// The admin password default exists so a fresh checkout runs; deployments
// are expected to override it via config file or PARLEY_ADMIN_PASSWORD.
func Default() Config {
	return Config{
		Addr:              ":8080",
		AdminName:         "Admin",
		AdminPassword:     "change-me",
		TokenSecret:       "parley-dev-secret",
		TokenTTL:          12 * time.Hour,
		DatabaseDSN:       ":memory:",
		LogLevel:          "info",
		MaxFrameBytes:     4096,
		FramesPerMinute:   120,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}
