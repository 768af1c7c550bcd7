package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreBackendRedis, StoreBackendSQLite:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", StoreBackendRedis, StoreBackendSQLite, c.Store.Backend)
	}
	if c.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must not be negative")
	}
	if c.Store.Backend == StoreBackendRedis && c.Redis.Addr == "" {
		return errors.New("redis.addr must be set when store.backend is redis")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Redis.Addr == "" {
		return errors.New("redis.addr must be set (the queue broker requires it)")
	}
	return ensurePositiveMap(map[string]int{
		"queue.concurrency":              c.Queue.Concurrency,
		"queue.task_timeout_seconds":     c.Queue.TaskTimeoutSeconds,
		"queue.shutdown_timeout_seconds": c.Queue.ShutdownTimeoutSeconds,
	})
}

func (c *Config) validateDownload() error {
	return ensurePositiveMap(map[string]int{
		"download.socket_timeout_seconds": c.Download.SocketTimeoutSeconds,
		"download.chain_rounds":           c.Download.ChainRounds,
		"download.backoff_base_seconds":   c.Download.BackoffBaseSeconds,
		"download.backoff_cap_seconds":    c.Download.BackoffCapSeconds,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
