package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/club-membership/internal/database"
	"github.com/iliyamo/club-membership/internal/utils"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  It is built once in main and passed down
// explicitly; no package reads the environment on its own.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	LogLevel string // debug, info, warn, error

	DBDriver string // mysql, postgres or sqlite
	DBUser   string
	DBPass   string
	DBHost   string
	DBPort   string
	DBName   string
	DBPath   string // sqlite file path
	Migrate  bool   // apply migrations on start

	AccessSecret  string        // signs access tokens
	RefreshSecret string        // signs refresh tokens
	JWTAlgorithm  string        // HS256, HS384 or HS512
	AccessTTL     time.Duration // access token lifetime
	RefreshTTL    time.Duration // refresh token lifetime
	BcryptCost    int           // bcrypt cost for password hashing

	CookieSecure   bool
	CookieSameSite string // lax, strict or none
	CookieDomain   string

	CORSOrigins []string
}

// Load reads configuration values from the environment and returns a
// Config.  A .env file in the working directory is merged first when
// present; variables already set in the process win.
func Load() Config {
	_ = godotenv.Load()

	driver := strings.ToLower(envStr("DB_DRIVER", "mysql"))
	cfg := Config{
		Env:      envStr("APP_ENV", "dev"),
		Port:     envStr("APP_PORT", "8080"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		DBDriver: driver,
		DBPath:   envStr("DB_PATH", "club.db"),
		Migrate:  envBool("MIGRATE_ON_START", false),

		AccessSecret:  must("JWT_SECRET"),
		RefreshSecret: must("JWT_REFRESH_SECRET"),
		JWTAlgorithm:  envStr("JWT_ALGORITHM", "HS256"),
		AccessTTL:     time.Duration(envInt("ACCESS_TOKEN_TTL_MIN", 30)) * time.Minute,
		RefreshTTL:    time.Duration(envInt("REFRESH_TOKEN_TTL_DAYS", 14)) * 24 * time.Hour,
		BcryptCost:    envInt("BCRYPT_COST", 12),

		CookieSecure:   envBool("COOKIE_SECURE", false),
		CookieSameSite: strings.ToLower(envStr("COOKIE_SAMESITE", "lax")),
		CookieDomain:   os.Getenv("COOKIE_DOMAIN"),

		CORSOrigins: splitList(envStr("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
	}
	if driver != "sqlite" {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// Tokens projects the signing settings used by utils.TokenCodec.
func (c Config) Tokens() utils.TokenConfig {
	return utils.TokenConfig{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		Algorithm:     c.JWTAlgorithm,
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
	}
}

// Database projects the connection settings for database.Open.  The
// migration runner asks for multi-statement support; the app pool does not.
func (c Config) Database(multiStatements bool) database.Settings {
	return database.Settings{
		Driver:          c.DBDriver,
		User:            c.DBUser,
		Pass:            c.DBPass,
		Host:            c.DBHost,
		Port:            c.DBPort,
		Name:            c.DBName,
		Path:            c.DBPath,
		MultiStatements: multiStatements,
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
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}
