package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	AutoMigrate  bool   // apply the embedded schema at startup
	JWTSecret    string // secret used to sign staff tokens
	AccessTTLMin int    // staff token time-to-live in minutes

	AdminPassword string // HTTP Basic password for the owner; empty disables Basic auth
	StaffPIN      string // fallback waiter PIN when the staff_pins setting is absent

	Timezone *time.Location // restaurant-local zone used for day bounds and stats buckets
	Currency string         // ISO currency code used for online payments

	PublicBaseURL   string // base URL used to build payment success/cancel links
	StripeSecretKey string // empty disables online payments
	FiscalMockDir   string // directory where the mock fiscal provider writes receipts

	AMQPURL         string // RabbitMQ URL; empty disables event publishing
	KitchenConsumer bool   // run the kitchen log consumer in-process

	OrderPageSize    int // default page size for order listings
	OrderPageSizeMax int // upper bound for the limit query parameter
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"),
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		AutoMigrate:  envBool("DB_AUTO_MIGRATE", false),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),

		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		StaffPIN:      os.Getenv("STAFF_PIN"),

		Timezone: mustLocation("RESTAURANT_TZ", "Europe/Rome"),
		Currency: strings.ToLower(envStr("CURRENCY", "eur")),

		PublicBaseURL:   strings.TrimRight(envStr("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		FiscalMockDir:   envStr("FISCAL_MOCK_DIR", "fiscal_mock"),

		AMQPURL:         amqpURL(),
		KitchenConsumer: envBool("KITCHEN_CONSUMER_ENABLED", true),

		OrderPageSize:    envInt("ORDER_PAGE_SIZE", 50),
		OrderPageSizeMax: envInt("ORDER_PAGE_SIZE_MAX", 200),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// mustLocation resolves an IANA zone name. An unknown zone is fatal: every
// day boundary in the service depends on it.
func mustLocation(key, def string) *time.Location {
	name := envStr(key, def)
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Fatalf("invalid time zone for %s: %q: %v", key, name, err)
	}
	return loc
}

// amqpURL accepts both RABBITMQ_URL and AMQP_URL.
func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}
