package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMySQL = "mysql"
	DriverMongo = "mongo"
	DriverBolt  = "bolt"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env                 string        // application environment (e.g. "dev", "prod")
	Port                string        // HTTP port to listen on
	StoreDriver         string        // reservation store backend: mysql, mongo or bolt
	DBUser              string        // MySQL username
	DBPass              string        // MySQL password (optional)
	DBHost              string        // MySQL host address
	DBPort              string        // MySQL port number
	DBName              string        // MySQL database name
	MongoURI            string        // MongoDB connection string
	MongoDB             string        // MongoDB database name
	BoltPath            string        // BoltDB file path
	CatalogDSN          string        // PostgreSQL DSN of the destination catalog and flight inventory
	JWTSecret           string        // secret used to verify JWTs
	AccessTTLMin        int           // lifetime of tokens minted by cmd/token, in minutes
	CancellationPolicy  string        // "enforce" or "lenient"
	CancellationWindow  time.Duration // minimum time before departure for customer cancellations
	DestinationCacheTTL time.Duration // redis TTL of destination snapshots
	RabbitURL           string        // AMQP URL of the event broker (optional)
	NotifierLogDir      string        // directory the notifier writes reservations.log into
}

// Load reads a .env file when present, then the environment.  Required
// variables are enforced by must() and missing values cause the program
// to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:                 getenv("APP_ENV", "dev"),
		Port:                getenv("APP_PORT", "8080"),
		StoreDriver:         strings.ToLower(getenv("STORE_DRIVER", DriverMySQL)),
		DBPass:              os.Getenv("DB_PASS"),
		MongoDB:             getenv("MONGO_DB", "travel"),
		BoltPath:            getenv("BOLT_PATH", "data/reservations.db"),
		CatalogDSN:          must("CATALOG_DSN"),
		JWTSecret:           must("JWT_SECRET"),
		AccessTTLMin:        envInt("ACCESS_TOKEN_TTL_MIN", 60),
		CancellationPolicy:  strings.ToLower(getenv("CANCELLATION_POLICY", "enforce")),
		CancellationWindow:  envDur("CANCELLATION_WINDOW", 24*time.Hour),
		DestinationCacheTTL: envDur("DESTINATION_CACHE_TTL", 5*time.Minute),
		RabbitURL:           firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
		NotifierLogDir:      getenv("NOTIFIER_LOG_DIR", "logs"),
	}

	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case DriverMongo:
		cfg.MongoURI = must("MONGODB_URI")
	case DriverBolt:
	default:
		log.Fatalf("invalid STORE_DRIVER %q: want mysql, mongo or bolt", cfg.StoreDriver)
	}

	if cfg.CancellationPolicy != "enforce" && cfg.CancellationPolicy != "lenient" {
		log.Fatalf("invalid CANCELLATION_POLICY %q: want enforce or lenient", cfg.CancellationPolicy)
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
