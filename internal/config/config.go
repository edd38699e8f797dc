package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/half-paul/donations2.0-sub001/internal/processor"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Processors ProcessorsConfig
}

type ServerConfig struct {
	Port   int
	Env    string // "development", "production"
	APIKey string // staff API token; empty disables the staff endpoints
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// ProcessorsConfig carries credentials for each payment processor. A block
// left blank means the processor is unconfigured and hidden from donors.
type ProcessorsConfig struct {
	Stripe StripeConfig
	PayPal PayPalConfig
	Square SquareConfig
	Fake   FakeConfig
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	ProductID     string
}

type PayPalConfig struct {
	ClientID  string
	Secret    string
	WebhookID string
	ProductID string
	TestMode  bool
}

type SquareConfig struct {
	AccessToken     string
	SignatureKey    string
	LocationID      string
	NotificationURL string
	TestMode        bool
}

type FakeConfig struct {
	Enabled       bool
	WebhookSecret string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PAYPAL_TEST_MODE", true)
	viper.SetDefault("SQUARE_TEST_MODE", true)
	viper.SetDefault("FAKE_PROCESSOR_ENABLED", false)
	viper.SetDefault("FAKE_PROCESSOR_WEBHOOK_SECRET", "fake-webhook-secret")

	cfg := &Config{
		Server: ServerConfig{
			Port:   viper.GetInt("APP_PORT"),
			Env:    viper.GetString("APP_ENV"),
			APIKey: viper.GetString("STAFF_API_KEY"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Processors: ProcessorsConfig{
			Stripe: StripeConfig{
				SecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
				WebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
				ProductID:     viper.GetString("STRIPE_PRODUCT_ID"),
			},
			PayPal: PayPalConfig{
				ClientID:  viper.GetString("PAYPAL_CLIENT_ID"),
				Secret:    viper.GetString("PAYPAL_SECRET"),
				WebhookID: viper.GetString("PAYPAL_WEBHOOK_ID"),
				ProductID: viper.GetString("PAYPAL_PRODUCT_ID"),
				TestMode:  viper.GetBool("PAYPAL_TEST_MODE"),
			},
			Square: SquareConfig{
				AccessToken:     viper.GetString("SQUARE_ACCESS_TOKEN"),
				SignatureKey:    viper.GetString("SQUARE_SIGNATURE_KEY"),
				LocationID:      viper.GetString("SQUARE_LOCATION_ID"),
				NotificationURL: viper.GetString("SQUARE_NOTIFICATION_URL"),
				TestMode:        viper.GetBool("SQUARE_TEST_MODE"),
			},
			Fake: FakeConfig{
				Enabled:       viper.GetBool("FAKE_PROCESSOR_ENABLED"),
				WebhookSecret: viper.GetString("FAKE_PROCESSOR_WEBHOOK_SECRET"),
			},
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}

	return cfg, nil
}

// ProcessorConfig maps the loaded credentials onto the registry's config,
// leaving unconfigured processors nil so the registry fails fast on them.
func (p *ProcessorsConfig) ProcessorConfig() processor.Config {
	cfg := processor.Config{}
	if p.Stripe.SecretKey != "" {
		cfg.Stripe = &processor.StripeConfig{
			SecretKey:     p.Stripe.SecretKey,
			WebhookSecret: p.Stripe.WebhookSecret,
			ProductID:     p.Stripe.ProductID,
		}
	}
	if p.PayPal.ClientID != "" {
		cfg.PayPal = &processor.PayPalConfig{
			ClientID:  p.PayPal.ClientID,
			Secret:    p.PayPal.Secret,
			WebhookID: p.PayPal.WebhookID,
			ProductID: p.PayPal.ProductID,
			TestMode:  p.PayPal.TestMode,
		}
	}
	if p.Square.AccessToken != "" {
		cfg.Square = &processor.SquareConfig{
			AccessToken:     p.Square.AccessToken,
			SignatureKey:    p.Square.SignatureKey,
			LocationID:      p.Square.LocationID,
			NotificationURL: p.Square.NotificationURL,
			TestMode:        p.Square.TestMode,
		}
	}
	if p.Fake.Enabled {
		cfg.Fake = &processor.FakeConfig{WebhookSecret: p.Fake.WebhookSecret}
	}
	return cfg
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
