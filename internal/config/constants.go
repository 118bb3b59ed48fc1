package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// WebSocket connection timing
const (
	WSWriteWait      = 10 * time.Second
	WSPongWait       = 60 * time.Second
	WSPingPeriod     = (WSPongWait * 9) / 10
	WSMaxFrameBytes  = 64 << 10
	WSReadBufferSize = 1024
	// Upper bound for one subscribe/send round trip to the store
	WSRequestTimeout = 10 * time.Second
)

// Background job intervals
const IdleSweepInterval = 30 * time.Second

// Default rate limiting
const (
	DefaultRateLimitPerMin = 60
	SendRateLimitWindow    = time.Minute
)
