package config

import "time"

// Config is the root configuration for the tick tool.
type Config struct {
	Database DBConfig       `yaml:"database"`
	Gamma    GammaConfig    `yaml:"gamma"`
	Stream   StreamConfig   `yaml:"stream"`
	Metadata MetadataConfig `yaml:"metadata"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Recorder RecorderConfig `yaml:"recorder"`
	Health   HealthConfig   `yaml:"health"`
}

// DBConfig holds the Postgres connection for tick storage.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// GammaConfig holds settings for the Gamma metadata API client.
type GammaConfig struct {
	BaseURL      string        `yaml:"base_url"`
	PageSize     int           `yaml:"page_size"`
	RequestDelay time.Duration `yaml:"request_delay"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
}

// StreamConfig holds CLOB market-channel WebSocket settings.
type StreamConfig struct {
	URL                string        `yaml:"url"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	StaleTimeout       time.Duration `yaml:"stale_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	EventBuffer        int           `yaml:"event_buffer"`
}

// MetadataConfig holds metadata cache settings.
type MetadataConfig struct {
	RefreshInterval    time.Duration `yaml:"refresh_interval"`
	HydrateConcurrency int           `yaml:"hydrate_concurrency"`
}

// TrackerConfig selects which markets get recorded. All criteria
// combine; an empty section tracks every open binary market.
type TrackerConfig struct {
	MarketIDs     []string `yaml:"market_ids"`
	Keywords      []string `yaml:"keywords"`
	MinVolume     float64  `yaml:"min_volume"`
	IncludeClosed bool     `yaml:"include_closed"`
	MaxMarkets    int      `yaml:"max_markets"`
}

// RecorderConfig holds trade recorder batching settings.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferCap     int           `yaml:"buffer_cap"`
	WriteRetries  int           `yaml:"write_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// HealthConfig holds the recorder's HTTP health endpoint settings.
// Port 0 disables the endpoint.
type HealthConfig struct {
	Port int `yaml:"port"`
}
