package config

// Store backend identifiers accepted by [store].backend.
const (
	StoreBackendRedis  = "redis"
	StoreBackendSQLite = "sqlite"
)

const (
	defaultScratchDir           = "~/.local/share/scribe/scratch"
	defaultLogDir               = "~/.local/share/scribe/logs"
	defaultSQLitePath           = "~/.local/share/scribe/tasks.db"
	defaultRetentionDays        = 14
	defaultRedisAddr            = "127.0.0.1:6379"
	defaultQueueName            = "video_processing"
	defaultConcurrency          = 2
	defaultMaxRetries           = 3
	defaultTaskTimeoutSeconds   = 1200 // 20 minutes
	defaultShutdownTimeout      = 30
	defaultSocketTimeoutSeconds = 60
	defaultDownloadRetries      = 5
	defaultMaxHeight            = 1080
	defaultMaxFilesize          = "2G"
	defaultRateLimit            = "10M"
	defaultChainRounds          = 3
	defaultBackoffBaseSeconds   = 1
	defaultBackoffCapSeconds    = 30
	defaultUserAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultPageLoadTimeout      = 30
	defaultSettleSeconds        = 5
	defaultNetworkSettle        = 3
	defaultObjectStoreSuffix    = "amazonaws.com"
	defaultObjectStoreRegion    = "us-east-1"
	defaultWhisperModel         = "base"
	defaultWhisperLanguage      = "en"
	defaultLLMBaseURL           = "https://api.openai.com/v1"
	defaultLLMModel             = "gpt-4o"
	defaultLLMTimeoutSeconds    = 60
	defaultWebhookTimeout       = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
		},
		Store: Store{
			Backend:       StoreBackendRedis,
			SQLitePath:    defaultSQLitePath,
			RetentionDays: defaultRetentionDays,
		},
		Redis: Redis{
			Addr: defaultRedisAddr,
		},
		Queue: Queue{
			Name:                   defaultQueueName,
			Concurrency:            defaultConcurrency,
			MaxRetries:             defaultMaxRetries,
			TaskTimeoutSeconds:     defaultTaskTimeoutSeconds,
			ShutdownTimeoutSeconds: defaultShutdownTimeout,
		},
		Download: Download{
			SocketTimeoutSeconds: defaultSocketTimeoutSeconds,
			Retries:              defaultDownloadRetries,
			FragmentRetries:      defaultDownloadRetries,
			FileAccessRetries:    defaultDownloadRetries,
			MaxHeight:            defaultMaxHeight,
			MaxFilesize:          defaultMaxFilesize,
			RateLimit:            defaultRateLimit,
			ChainRounds:          defaultChainRounds,
			BackoffBaseSeconds:   defaultBackoffBaseSeconds,
			BackoffCapSeconds:    defaultBackoffCapSeconds,
			UserAgent:            defaultUserAgent,
		},
		Browser: Browser{
			Enabled:                true,
			PageLoadTimeoutSeconds: defaultPageLoadTimeout,
			SettleSeconds:          defaultSettleSeconds,
			NetworkSettleSeconds:   defaultNetworkSettle,
		},
		ObjectStore: ObjectStore{
			HostSuffix: defaultObjectStoreSuffix,
			Region:     defaultObjectStoreRegion,
			UseSSL:     true,
		},
		Whisper: Whisper{
			Model:    defaultWhisperModel,
			Language: defaultWhisperLanguage,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Webhook: Webhook{
			RequestTimeoutSeconds: defaultWebhookTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
