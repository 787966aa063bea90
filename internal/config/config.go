package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	ListenAddr    string
	DBDriver      string
	DBUser        string
	DBPassword    string
	DBName        string
	DBHost        string
	DBPort        string
	SQLitePath    string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	AdminToken    string
	EntryFee      decimal.Decimal
	FeeCurrency   string
	PaygateShopID string
	PaygateKey    string
	PaygateURL    string
	ReturnURL     string
	SMTPHost      string
	SMTPPort      string
	SMTPUser      string
	SMTPPassword  string
	MailFrom      string
	AllowedPayIP  []string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	fee, err := decimal.NewFromString(getEnv("ENTRY_FEE", "50.00"))
	if err != nil {
		log.WithError(err).Fatal("Invalid ENTRY_FEE value")
	}

	return &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		DBDriver:      getEnv("DB_DRIVER", "postgres"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "drawwin"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		SQLitePath:    getEnv("SQLITE_PATH", "drawwin.db"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		AdminToken:    getEnv("ADMIN_TOKEN", ""),
		EntryFee:      fee,
		FeeCurrency:   getEnv("FEE_CURRENCY", "USD"),
		PaygateShopID: getEnv("PAYGATE_SHOP_ID", ""),
		PaygateKey:    getEnv("PAYGATE_SECRET_KEY", ""),
		PaygateURL:    getEnv("PAYGATE_API_URL", "https://api.paygate.example/v3"),
		ReturnURL:     getEnv("PAYMENT_RETURN_URL", "http://localhost:8080/thanks"),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUser:      getEnv("SMTP_USER", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		MailFrom:      getEnv("MAIL_FROM", "no-reply@drawwin.example"),
		// Processor webhook source ranges; only these may call the
		// payment webhook.
		AllowedPayIP: []string{
			"185.71.76.0/27",
			"185.71.77.0/27",
			"77.75.153.0/25",
			"77.75.156.224/28",
			"77.75.154.128/25",
			"2a02:5180::/32",
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
