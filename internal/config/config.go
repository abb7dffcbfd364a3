package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported document store drivers.
const (
	DriverCouchDB = "couchdb"
	DriverMongoDB = "mongodb"
	DriverMemory  = "memory"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Store     StoreConfig
	Auth      AuthConfig
	Billing   BillingConfig
	Autosave  AutosaveConfig
	Reporting ReportingConfig
	WhatsApp  WhatsAppConfig
	Sheets    SheetsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string
}

// StoreConfig selects and configures the document database.
type StoreConfig struct {
	Driver  string
	CouchDB CouchDBConfig
	MongoDB MongoDBConfig
}

// CouchDBConfig holds the CouchDB endpoint and service credentials.
type CouchDBConfig struct {
	BaseURL  string
	DBName   string
	Username string
	Password string
	Timeout  time.Duration
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI        string
	DBName     string
	Collection string
}

// AuthConfig controls session checks on the API.
type AuthConfig struct {
	Enabled   bool
	AdminUser string
}

// BillingConfig holds bill calculation options.
type BillingConfig struct {
	DefaultPayRate   float64
	PreservePayments bool
}

// AutosaveConfig controls the periodic flush of pending ledger edits.
type AutosaveConfig struct {
	Schedule string
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule string
	Timezone     string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
// An empty AccessToken disables outbound delivery; share links keep working.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	BaseURL       string
	APIVersion    string
	ManagerID     string
	CountryCode   string
}

// Enabled reports whether outbound WhatsApp delivery is configured.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

// SheetsConfig contains configuration required to interact with Google Sheets.
// Export is disabled when CredentialsPath is empty.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	LedgerRange     string
}

// Enabled reports whether the Sheets export target is configured.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsPath != ""
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	payRate, err := getenvFloat("BILLING_DEFAULT_PAY_RATE", 8)
	if err != nil {
		return nil, err
	}
	couchTimeout, err := time.ParseDuration(getenvWithDefault("COUCHDB_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("COUCHDB_TIMEOUT: %w", err)
	}

	driver := strings.ToLower(getenvWithDefault("DOCSTORE_DRIVER", DriverCouchDB))

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Log: LogConfig{
			Level: os.Getenv("LOG_LEVEL"),
		},
		Store: StoreConfig{
			Driver: driver,
			CouchDB: CouchDBConfig{
				BaseURL:  getenvWithDefault("COUCHDB_URL", "http://localhost:5984"),
				DBName:   getenvWithDefault("COUCHDB_DB_NAME", "mcm"),
				Username: os.Getenv("COUCHDB_USER"),
				Password: os.Getenv("COUCHDB_PASSWORD"),
				Timeout:  couchTimeout,
			},
			MongoDB: MongoDBConfig{
				URI:        getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
				DBName:     getenvWithDefault("MONGODB_DB_NAME", "mcm"),
				Collection: getenvWithDefault("MONGODB_COLLECTION", "documents"),
			},
		},
		Auth: AuthConfig{
			Enabled:   getenvBool("AUTH_ENABLED", driver == DriverCouchDB),
			AdminUser: os.Getenv("AUTH_ADMIN_USER"),
		},
		Billing: BillingConfig{
			DefaultPayRate:   payRate,
			PreservePayments: getenvBool("BILLING_PRESERVE_PAYMENTS", true),
		},
		Autosave: AutosaveConfig{
			Schedule: getenvWithDefault("AUTOSAVE_SCHEDULE", "@every 5m"),
		},
		Reporting: ReportingConfig{
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "Asia/Kolkata"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:   os.Getenv("META_VERIFY_TOKEN"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			ManagerID:     os.Getenv("WHATSAPP_MANAGER_ID"),
			CountryCode:   getenvWithDefault("WHATSAPP_COUNTRY_CODE", "91"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			LedgerRange:     getenvWithDefault("GOOGLE_SHEET_LEDGER_RANGE", "Ledger!A:K"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Driver {
	case DriverCouchDB:
		if c.Store.CouchDB.BaseURL == "" || c.Store.CouchDB.DBName == "" {
			return errors.New("COUCHDB_URL and COUCHDB_DB_NAME must be provided")
		}
	case DriverMongoDB:
		if c.Store.MongoDB.URI == "" || c.Store.MongoDB.DBName == "" {
			return errors.New("MONGODB_URI and MONGODB_DB_NAME must be provided")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported DOCSTORE_DRIVER %q", c.Store.Driver)
	}

	if c.Auth.Enabled && c.Store.Driver != DriverCouchDB {
		return errors.New("AUTH_ENABLED requires the couchdb driver")
	}

	if c.Billing.DefaultPayRate <= 0 {
		return errors.New("BILLING_DEFAULT_PAY_RATE must be positive")
	}

	if c.Autosave.Schedule == "" {
		return errors.New("AUTOSAVE_SCHEDULE must be provided")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}
	if _, err := time.LoadLocation(c.Reporting.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}

	if c.WhatsApp.AccessToken != "" && c.WhatsApp.PhoneNumberID == "" {
		return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided with WHATSAPP_TOKEN")
	}

	if c.Sheets.Enabled() && c.Sheets.SpreadsheetID == "" {
		return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided")
	}

	return nil
}

// Location resolves the configured timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Reporting.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}
