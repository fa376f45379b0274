package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	MySQL    MySQLConfig
	Log      LogConfig
	Payments PaymentsConfig
	Jobs     JobsConfig

	PayinX     PayinXConfig
	BkashSetup BkashSetupConfig
	ShurjoPay  ShurjoPayConfig
	StarPago   StarPagoConfig
	Launcx     LauncxConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type PaymentsConfig struct {
	MinPayoutAmount     float64
	PendingTimeout      time.Duration
	ProviderHTTPTimeout time.Duration

	WebhookInitialDelay  time.Duration
	WebhookMaxAttempts   int32
	WebhookRetryInterval time.Duration
	WebhookHTTPTimeout   time.Duration

	SettlementTimezone string
	JobBatchSize       int32
}

type JobsConfig struct {
	SweepInterval           time.Duration
	WebhookDispatchInterval time.Duration
}

type PayinXConfig struct {
	BaseURL     string
	SecretKey   string
	PublicKey   string
	CallbackURL string
	RedirectURL string
}

type BkashSetupConfig struct {
	BaseURL string
}

type ShurjoPayConfig struct {
	BaseURL   string
	Username  string
	Password  string
	Prefix    string
	ReturnURL string
	CancelURL string
}

type StarPagoConfig struct {
	BaseURL       string
	AppID         string
	Secret        string
	NotifyURL     string
	ReturnURL     string
	SignatureAlgo string
}

type LauncxConfig struct {
	BaseURL        string
	APIKey         string
	CallbackSecret string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "payment-gateway"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Payments: PaymentsConfig{
			MinPayoutAmount:      getFloatEnv("PAYMENTS_MIN_PAYOUT_AMOUNT", 400),
			PendingTimeout:       getMinutesEnv("PAYMENTS_PENDING_TIMEOUT_MINUTES", 15*time.Minute),
			ProviderHTTPTimeout:  getSecondsEnv("PAYMENTS_PROVIDER_HTTP_TIMEOUT_SECONDS", 60*time.Second),
			WebhookInitialDelay:  getSecondsEnv("PAYMENTS_WEBHOOK_INITIAL_DELAY_SECONDS", 10*time.Second),
			WebhookMaxAttempts:   int32(getIntEnv("PAYMENTS_WEBHOOK_MAX_ATTEMPTS", 3)),
			WebhookRetryInterval: getMinutesEnv("PAYMENTS_WEBHOOK_RETRY_INTERVAL_MINUTES", 5*time.Minute),
			WebhookHTTPTimeout:   getSecondsEnv("PAYMENTS_WEBHOOK_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			SettlementTimezone:   getEnv("PAYMENTS_SETTLEMENT_TIMEZONE", "Asia/Jakarta"),
			JobBatchSize:         int32(getIntEnv("PAYMENTS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			SweepInterval:           getMinutesEnv("PAYMENTS_SWEEP_INTERVAL_MINUTES", 5*time.Minute),
			WebhookDispatchInterval: getMinutesEnv("PAYMENTS_WEBHOOK_DISPATCH_INTERVAL_MINUTES", time.Minute),
		},
		PayinX: PayinXConfig{
			BaseURL:     getEnv("PAYINX_BASE_URL", ""),
			SecretKey:   getEnv("PAYINX_SECRET_KEY", ""),
			PublicKey:   getEnv("PAYINX_PUBLIC_KEY", ""),
			CallbackURL: getEnv("PAYINX_CALLBACK_URL", ""),
			RedirectURL: getEnv("PAYINX_REDIRECT_URL", ""),
		},
		BkashSetup: BkashSetupConfig{
			BaseURL: getEnv("BKASH_SETUP_BASE_URL", ""),
		},
		ShurjoPay: ShurjoPayConfig{
			BaseURL:   getEnv("SHURJOPAY_BASE_URL", ""),
			Username:  getEnv("SHURJOPAY_USERNAME", ""),
			Password:  getEnv("SHURJOPAY_PASSWORD", ""),
			Prefix:    getEnv("SHURJOPAY_PREFIX", "SP"),
			ReturnURL: getEnv("SHURJOPAY_RETURN_URL", ""),
			CancelURL: getEnv("SHURJOPAY_CANCEL_URL", ""),
		},
		StarPago: StarPagoConfig{
			BaseURL:       getEnv("STARPAGO_BASE_URL", ""),
			AppID:         getEnv("STARPAGO_APP_ID", ""),
			Secret:        getEnv("STARPAGO_SECRET", ""),
			NotifyURL:     getEnv("STARPAGO_NOTIFY_URL", ""),
			ReturnURL:     getEnv("STARPAGO_RETURN_URL", ""),
			SignatureAlgo: getEnv("STARPAGO_SIGNATURE_ALGO", "sha256"),
		},
		Launcx: LauncxConfig{
			BaseURL:        getEnv("LAUNCX_BASE_URL", ""),
			APIKey:         getEnv("LAUNCX_API_KEY", ""),
			CallbackSecret: getEnv("LAUNCX_CALLBACK_SECRET", ""),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
