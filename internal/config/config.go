package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Paystack    PaystackConfig
	Storage     StorageConfig
	Email       EmailConfig
	Auth        AuthConfig
	Features    FeatureFlags
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// PublicURL is used to build links sent by email.
	PublicURL string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	OrdersTopic   string
	ConsumerGroup string
}

type PaystackConfig struct {
	BaseURL     string
	SecretKey   string
	Currency    string
	CallbackURL string
	Timeout     time.Duration
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL prefixes object paths when building public URLs.
	PublicBaseURL string
}

type EmailConfig struct {
	BaseURL string
	APIKey  string
	From    string
	// ContactInbox receives contact-form submissions.
	ContactInbox string
	Timeout      time.Duration
}

type AuthConfig struct {
	JWTSecret   string
	AdminEmails []string
	ResetTTL    time.Duration
}

type FeatureFlags struct {
	EnableOrderEvents    bool `yaml:"enable_order_events"`
	EnableCatalogCaching bool `yaml:"enable_catalog_caching"`
	EnableEmailConsumer  bool `yaml:"enable_email_consumer"`
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE.
type fileConfig struct {
	AdminEmails []string      `yaml:"admin_emails"`
	LogLevel    string        `yaml:"log_level"`
	Features    *FeatureFlags `yaml:"features"`
}

// Load builds the configuration from an optional .env file, an optional
// YAML overlay and the process environment, in increasing precedence.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: getEnvString("SERVICE_NAME", "storefront-service"),
		LogLevel:    "info",
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
			PublicURL:    getEnvString("PUBLIC_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:         getEnvString("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnvString("DB_USER", "acme"),
			Password:     getEnvString("DB_PASSWORD", "acme"),
			Name:         getEnvString("DB_NAME", "acme_storefront"),
			SSLMode:      getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxLifetime:  getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			OrdersTopic:   getEnvString("KAFKA_ORDERS_TOPIC", "storefront.orders"),
			ConsumerGroup: getEnvString("KAFKA_CONSUMER_GROUP", "storefront-notifications"),
		},
		Paystack: PaystackConfig{
			BaseURL:     getEnvString("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			SecretKey:   getEnvString("PAYSTACK_SECRET_KEY", ""),
			Currency:    getEnvString("PAYSTACK_CURRENCY", "NGN"),
			CallbackURL: getEnvString("PAYSTACK_CALLBACK_URL", ""),
			Timeout:     time.Duration(getEnvInt("PAYSTACK_TIMEOUT", 30)) * time.Second,
		},
		Storage: StorageConfig{
			Endpoint:      getEnvString("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKey:     getEnvString("STORAGE_ACCESS_KEY", ""),
			SecretKey:     getEnvString("STORAGE_SECRET_KEY", ""),
			Bucket:        getEnvString("STORAGE_BUCKET", "media"),
			UseSSL:        getEnvBool("STORAGE_USE_SSL", false),
			PublicBaseURL: getEnvString("STORAGE_PUBLIC_URL", "http://localhost:9000/media"),
		},
		Email: EmailConfig{
			BaseURL:      getEnvString("EMAIL_API_URL", "https://api.resend.com"),
			APIKey:       getEnvString("EMAIL_API_KEY", ""),
			From:         getEnvString("EMAIL_FROM", "Solar Shop <no-reply@example.com>"),
			ContactInbox: getEnvString("EMAIL_CONTACT_INBOX", "sales@example.com"),
			Timeout:      time.Duration(getEnvInt("EMAIL_TIMEOUT", 15)) * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: getEnvString("AUTH_JWT_SECRET", ""),
			ResetTTL:  getEnvDuration("AUTH_RESET_TTL", time.Hour),
		},
		Features: FeatureFlags{
			EnableOrderEvents:    true,
			EnableCatalogCaching: true,
			EnableEmailConsumer:  true,
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		// A broken overlay is not fatal; env defaults still apply.
		_ = cfg.applyFile(path)
	}

	cfg.LogLevel = getEnvString("LOG_LEVEL", cfg.LogLevel)
	cfg.Auth.AdminEmails = getEnvList("ADMIN_EMAILS", cfg.Auth.AdminEmails)
	cfg.Features.EnableOrderEvents = getEnvBool("FEATURE_ORDER_EVENTS", cfg.Features.EnableOrderEvents)
	cfg.Features.EnableCatalogCaching = getEnvBool("FEATURE_CATALOG_CACHING", cfg.Features.EnableCatalogCaching)
	cfg.Features.EnableEmailConsumer = getEnvBool("FEATURE_EMAIL_CONSUMER", cfg.Features.EnableEmailConsumer)

	return cfg
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if len(fc.AdminEmails) > 0 {
		c.Auth.AdminEmails = normalizeList(fc.AdminEmails)
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.Features != nil {
		c.Features = *fc.Features
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return normalizeList(strings.Split(value, ","))
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
