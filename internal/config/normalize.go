package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeRedis()
	c.normalizeQueue()
	c.normalizeDownload()
	c.normalizeBrowser()
	c.normalizeObjectStore()
	c.normalizeWhisper()
	c.normalizeLLM()
	c.normalizeWebhook()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendRedis
	}
	if strings.TrimSpace(c.Store.SQLitePath) == "" {
		c.Store.SQLitePath = defaultSQLitePath
	}
	var err error
	if c.Store.SQLitePath, err = expandPath(c.Store.SQLitePath); err != nil {
		return fmt.Errorf("store.sqlite_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeRedis() {
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	if c.Redis.Addr == "" {
		if value, ok := os.LookupEnv("REDIS_ADDR"); ok {
			c.Redis.Addr = strings.TrimSpace(value)
		}
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaultRedisAddr
	}
}

func (c *Config) normalizeQueue() {
	c.Queue.Name = strings.TrimSpace(c.Queue.Name)
	if c.Queue.Name == "" {
		c.Queue.Name = defaultQueueName
	}
	if c.Queue.Concurrency <= 0 {
		c.Queue.Concurrency = defaultConcurrency
	}
	if c.Queue.MaxRetries < 0 {
		c.Queue.MaxRetries = defaultMaxRetries
	}
	if c.Queue.TaskTimeoutSeconds <= 0 {
		c.Queue.TaskTimeoutSeconds = defaultTaskTimeoutSeconds
	}
	if c.Queue.ShutdownTimeoutSeconds <= 0 {
		c.Queue.ShutdownTimeoutSeconds = defaultShutdownTimeout
	}
}

func (c *Config) normalizeDownload() {
	if c.Download.SocketTimeoutSeconds <= 0 {
		c.Download.SocketTimeoutSeconds = defaultSocketTimeoutSeconds
	}
	if c.Download.Retries <= 0 {
		c.Download.Retries = defaultDownloadRetries
	}
	if c.Download.FragmentRetries <= 0 {
		c.Download.FragmentRetries = defaultDownloadRetries
	}
	if c.Download.FileAccessRetries <= 0 {
		c.Download.FileAccessRetries = defaultDownloadRetries
	}
	if c.Download.MaxHeight <= 0 {
		c.Download.MaxHeight = defaultMaxHeight
	}
	if strings.TrimSpace(c.Download.MaxFilesize) == "" {
		c.Download.MaxFilesize = defaultMaxFilesize
	}
	if strings.TrimSpace(c.Download.RateLimit) == "" {
		c.Download.RateLimit = defaultRateLimit
	}
	if c.Download.ChainRounds <= 0 {
		c.Download.ChainRounds = defaultChainRounds
	}
	if c.Download.BackoffBaseSeconds <= 0 {
		c.Download.BackoffBaseSeconds = defaultBackoffBaseSeconds
	}
	if c.Download.BackoffCapSeconds <= 0 {
		c.Download.BackoffCapSeconds = defaultBackoffCapSeconds
	}
	if strings.TrimSpace(c.Download.UserAgent) == "" {
		c.Download.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeBrowser() {
	if c.Browser.PageLoadTimeoutSeconds <= 0 {
		c.Browser.PageLoadTimeoutSeconds = defaultPageLoadTimeout
	}
	if c.Browser.SettleSeconds <= 0 {
		c.Browser.SettleSeconds = defaultSettleSeconds
	}
	if c.Browser.NetworkSettleSeconds <= 0 {
		c.Browser.NetworkSettleSeconds = defaultNetworkSettle
	}
}

func (c *Config) normalizeObjectStore() {
	c.ObjectStore.HostSuffix = strings.TrimSpace(c.ObjectStore.HostSuffix)
	c.ObjectStore.Endpoint = strings.TrimSpace(c.ObjectStore.Endpoint)
	if c.ObjectStore.AccessKey == "" {
		if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
			c.ObjectStore.AccessKey = strings.TrimSpace(value)
		}
	}
	if c.ObjectStore.SecretKey == "" {
		if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
			c.ObjectStore.SecretKey = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.ObjectStore.Region) == "" {
		c.ObjectStore.Region = defaultObjectStoreRegion
	}
}

func (c *Config) normalizeWhisper() {
	c.Whisper.Model = strings.TrimSpace(c.Whisper.Model)
	if c.Whisper.Model == "" {
		c.Whisper.Model = defaultWhisperModel
	}
	c.Whisper.Language = strings.TrimSpace(c.Whisper.Language)
	if c.Whisper.Language == "" {
		c.Whisper.Language = defaultWhisperLanguage
	}
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeWebhook() {
	if c.Webhook.RequestTimeoutSeconds <= 0 {
		c.Webhook.RequestTimeoutSeconds = defaultWebhookTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
