package config

import "time"

// Default values for configuration.
const (
	// Server defaults
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultCleanupInterval = 1 * time.Hour

	// Discord defaults
	DefaultAPIBaseURL     = "https://discord.com/api"
	DefaultWidgetPageURL  = "https://discord.com/widget"
	DefaultUserAgent      = "discord-widget/1.0"
	DefaultRequestTimeout = 10 * time.Second

	// Fetch defaults
	DefaultPoolSize      = 4
	DefaultTaskTimeout   = 30 * time.Second
	DefaultTaskTTL       = 24 * time.Hour
	DefaultIdleWidgetTTL = 30 * time.Minute

	// Logging defaults
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultMaskInvites = true
)
