package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultGammaURL           = "https://gamma-api.polymarket.com"
	DefaultStreamURL          = "wss://ws-subscriptions-clob.polymarket.com"
	DefaultPageSize           = 500 // Gamma hard ceiling per request
	DefaultRequestDelay       = 500 * time.Millisecond
	DefaultGammaTimeout       = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultPingInterval       = 10 * time.Second
	DefaultStaleTimeout       = 30 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultEventBuffer        = 1000
	DefaultRefreshInterval    = 5 * time.Minute
	DefaultHydrateConcurrency = 4
	DefaultBatchSize          = 100
	DefaultFlushInterval      = 2 * time.Second
	DefaultWriteRetries       = 3
	DefaultRetryBackoff       = time.Second
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
)

func (c *Config) applyDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	if c.Gamma.BaseURL == "" {
		c.Gamma.BaseURL = DefaultGammaURL
	}
	if c.Gamma.PageSize == 0 {
		c.Gamma.PageSize = DefaultPageSize
	}
	if c.Gamma.RequestDelay == 0 {
		c.Gamma.RequestDelay = DefaultRequestDelay
	}
	if c.Gamma.Timeout == 0 {
		c.Gamma.Timeout = DefaultGammaTimeout
	}
	if c.Gamma.MaxRetries == 0 {
		c.Gamma.MaxRetries = DefaultMaxRetries
	}

	if c.Stream.URL == "" {
		c.Stream.URL = DefaultStreamURL
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.StaleTimeout == 0 {
		c.Stream.StaleTimeout = DefaultStaleTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.EventBuffer == 0 {
		c.Stream.EventBuffer = DefaultEventBuffer
	}

	if c.Metadata.RefreshInterval == 0 {
		c.Metadata.RefreshInterval = DefaultRefreshInterval
	}
	if c.Metadata.HydrateConcurrency == 0 {
		c.Metadata.HydrateConcurrency = DefaultHydrateConcurrency
	}

	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferCap == 0 {
		c.Recorder.BufferCap = 10 * c.Recorder.BatchSize
	}
	if c.Recorder.WriteRetries == 0 {
		c.Recorder.WriteRetries = DefaultWriteRetries
	}
	if c.Recorder.RetryBackoff == 0 {
		c.Recorder.RetryBackoff = DefaultRetryBackoff
	}
}
