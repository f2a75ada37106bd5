package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed max_conns (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Gamma.PageSize < 1 || c.Gamma.PageSize > 500 {
		return fmt.Errorf("gamma.page_size must be between 1 and 500, got %d", c.Gamma.PageSize)
	}

	if c.Tracker.MinVolume < 0 {
		return fmt.Errorf("tracker.min_volume cannot be negative, got %v", c.Tracker.MinVolume)
	}

	if c.Recorder.BatchSize < 1 {
		return errors.New("recorder.batch_size must be >= 1")
	}
	if c.Recorder.BufferCap < c.Recorder.BatchSize {
		return fmt.Errorf("recorder.buffer_cap (%d) must be >= batch_size (%d)",
			c.Recorder.BufferCap, c.Recorder.BatchSize)
	}

	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 0 and 65535, got %d", c.Health.Port)
	}

	return nil
}
