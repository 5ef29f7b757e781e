package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for ports.
type Config struct {
    Env             string // application environment (e.g. "dev", "production")
    Port            string // HTTP port to listen on
    MongoURI        string // MongoDB connection string
    MongoAuthSource string // MongoDB authentication database (default "admin")
    MongoDB         string // database name holding the application collections
    JWTSecret       string // secret used to sign JWTs
    EmailUser       string // SMTP account used as the From address (optional)
    EmailPassword   string // SMTP account password (optional)
    SMTPHost        string // SMTP server host (default smtp.gmail.com)
    SMTPPort        int    // SMTP server port (default 465)
    FCMServerKey    string // Firebase Cloud Messaging server key (optional)
}

// insecureDefaultSecret is the signing key used when JWT_SECRET is unset
// outside of production.  Tokens signed with it stop verifying the moment
// a real secret is configured.
const insecureDefaultSecret = "your_secure_secret_here"

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  JWT_SECRET is only
// required in production; any other environment falls back to an insecure
// default so local setups keep working.
func Load() Config {
    cfg := Config{
        Env:             must("APP_ENV"),     // environment (dev/test/production)
        Port:            must("APP_PORT"),    // port to bind the HTTP server
        MongoURI:        must("MONGODB_URI"), // Mongo connection string
        MongoAuthSource: getenv("MONGODB_AUTH_SOURCE", "admin"),
        MongoDB:         getenv("MONGODB_DB", "mindflow"),
        JWTSecret:       os.Getenv("JWT_SECRET"),
        EmailUser:       os.Getenv("EMAIL_USER"),
        EmailPassword:   os.Getenv("EMAIL_PASSWORD"),
        SMTPHost:        getenv("SMTP_HOST", "smtp.gmail.com"),
        SMTPPort:        getenvInt("SMTP_PORT", 465),
        FCMServerKey:    os.Getenv("FCM_SERVER_KEY"),
    }
    if cfg.JWTSecret == "" {
        if cfg.Env == "production" {
            log.Fatal("JWT_SECRET must be set in production")
        }
        log.Printf("WARNING: JWT_SECRET not set, using insecure default (env=%s)", cfg.Env)
        cfg.JWTSecret = insecureDefaultSecret
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

// getenv returns the value of an optional environment variable or the
// provided default when the variable is unset or empty.
func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

// getenvInt is like getenv() but converts the retrieved string into an
// integer.  Unparseable values fall back to the default.
func getenvInt(key string, def int) int {
    s := os.Getenv(key)
    if s == "" {
        return def
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Printf("invalid int for %s: %q, using %d", key, s, def)
        return def
    }
    return n
}
