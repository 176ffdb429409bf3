package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time expresses durations such as the hold TTL
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for TTLs.
type Config struct {
	Env              string        // application environment (e.g. "dev", "prod")
	Port             string        // HTTP port to listen on
	DBUser           string        // database username
	DBPass           string        // database password (optional)
	DBHost           string        // database host address
	DBPort           string        // database port number
	DBName           string        // database name
	JWTSecret        string        // secret used to sign JWTs
	AccessTTLMin     int           // access token time-to-live in minutes
	BcryptCost       int           // bcrypt cost for password hashing
	HoldTTL          time.Duration // lifetime of a seat hold
	WalletServiceURL string        // base URL of the wallet gateway
	WalletAPIKey     string        // api key sent on gateway verification calls
	WalletMerchantID string        // merchant id registered with the gateway
	WebhookSecret    string        // shared secret for webhook HMAC signatures
	CallbackURL      string        // webhook callback URL handed to the gateway
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Tunables with safe
// defaults use getenv().
func Load() Config {
	return Config{
		Env:              must("APP_ENV"),
		Port:             must("APP_PORT"),
		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"), // empty allowed
		DBHost:           must("DB_HOST"),
		DBPort:           must("DB_PORT"),
		DBName:           must("DB_NAME"),
		JWTSecret:        must("JWT_SECRET"),
		AccessTTLMin:     mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:       mustInt("BCRYPT_COST"),
		HoldTTL:          parseDur(getenv("SEAT_HOLD_TTL", "300s")),
		WalletServiceURL: getenv("WALLET_SERVICE_URL", "http://localhost:5000"),
		WalletAPIKey:     must("WALLET_API_KEY"),
		WalletMerchantID: must("WALLET_MERCHANT_ID"),
		WebhookSecret:    must("WALLET_WEBHOOK_SECRET"),
		CallbackURL:      getenv("WALLET_CALLBACK_URL", ""),
	}
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

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 300 * time.Second
	}
	return d
}
