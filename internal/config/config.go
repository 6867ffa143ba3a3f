// Package config handles loading and parsing of FieldMark configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for FieldMark.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Auth     AuthConfig     `yaml:"auth"`
	Registry RegistryConfig `yaml:"registry"`
	Labels   LabelsConfig   `yaml:"labels"`
	Codes    CodesConfig    `yaml:"codes"`
	Scan     ScanConfig     `yaml:"scan"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ShutdownTimeout is the graceful shutdown timeout in seconds.
	ShutdownTimeout int `yaml:"shutdown_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: text or json.
	Format string `yaml:"format"`
}

// AuthConfig holds the static API-token gate settings. Authorization policy
// itself lives outside FieldMark; this is only the perimeter check.
type AuthConfig struct {
	// Token is the bearer token required on API requests. Empty disables
	// the gate (development mode).
	Token string `yaml:"token"`
}

// RegistryConfig holds location registry settings.
type RegistryConfig struct {
	// Engine is the registry backend engine: memory, sqlite, firestore,
	// dynamodb, or cosmos.
	Engine    string          `yaml:"engine"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Firestore FirestoreConfig `yaml:"firestore"`
	DynamoDB  DynamoDBConfig  `yaml:"dynamodb"`
	Cosmos    CosmosConfig    `yaml:"cosmos"`
}

// SQLiteConfig holds SQLite-specific registry settings.
type SQLiteConfig struct {
	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`
}

// FirestoreConfig holds Firestore registry settings.
type FirestoreConfig struct {
	// ProjectID is the GCP project hosting the Firestore database.
	ProjectID string `yaml:"project_id"`
	// Collection is the Firestore collection name for location documents.
	Collection string `yaml:"collection"`
	// CredentialsFile optionally points at a service account JSON file.
	CredentialsFile string `yaml:"credentials_file"`
}

// DynamoDBConfig holds DynamoDB registry settings.
type DynamoDBConfig struct {
	// Table is the DynamoDB table name.
	Table string `yaml:"table"`
	// Region is the AWS region of the table.
	Region string `yaml:"region"`
	// EndpointURL optionally overrides the service endpoint (local testing).
	EndpointURL string `yaml:"endpoint_url"`
}

// CosmosConfig holds Azure Cosmos DB registry settings.
type CosmosConfig struct {
	// Endpoint is the Cosmos account endpoint URL.
	Endpoint string `yaml:"endpoint"`
	// MasterKey is the Cosmos account master key.
	MasterKey string `yaml:"master_key"`
	// Database is the Cosmos database name.
	Database string `yaml:"database"`
	// Container is the Cosmos container name.
	Container string `yaml:"container"`
}

// LabelsConfig holds label archive settings.
type LabelsConfig struct {
	// Backend is the label archive backend: local, memory, s3, gcs, azure.
	Backend string `yaml:"backend"`
	// RootDir is the base directory for the local backend.
	RootDir string `yaml:"root_dir"`
	// Size is the rendered label edge length in pixels.
	Size int `yaml:"size"`
	// S3Bucket is the bucket name for the s3 backend.
	S3Bucket string `yaml:"s3_bucket"`
	// S3Region is the AWS region for the s3 backend.
	S3Region string `yaml:"s3_region"`
	// S3Prefix is the optional key prefix for the s3 backend.
	S3Prefix string `yaml:"s3_prefix"`
	// S3EndpointURL optionally overrides the S3 endpoint (local testing).
	S3EndpointURL string `yaml:"s3_endpoint_url"`
	// S3AccessKeyID and S3SecretAccessKey optionally set static credentials
	// for the s3 backend; empty falls back to the default credential chain.
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`
	// GCSBucket is the bucket name for the gcs backend.
	GCSBucket string `yaml:"gcs_bucket"`
	// GCSPrefix is the optional object prefix for the gcs backend.
	GCSPrefix string `yaml:"gcs_prefix"`
	// AzureContainer is the container name for the azure backend.
	AzureContainer string `yaml:"azure_container"`
	// AzureAccountURL is the storage account URL for the azure backend
	// (https://{account}.blob.core.windows.net).
	AzureAccountURL string `yaml:"azure_account_url"`
	// AzurePrefix is the optional blob prefix for the azure backend.
	AzurePrefix string `yaml:"azure_prefix"`
}

// CodesConfig holds identifier minting and resolution settings.
type CodesConfig struct {
	// DefaultPrefix is the prefix used when a mint request omits one.
	DefaultPrefix string `yaml:"default_prefix"`
	// MaxAttempts is the per-mint uniqueness retry budget.
	MaxAttempts int `yaml:"max_attempts"`
	// MaxBatch is the hard ceiling for batch mint requests.
	MaxBatch int `yaml:"max_batch"`
	// Categories lists the path segments recognized by the payload resolver
	// when extracting an embedded code from a structured reference.
	Categories []string `yaml:"categories"`
}

// ScanConfig holds scan session settings.
type ScanConfig struct {
	// Device is the capture device type: sim, dir, or push.
	Device string `yaml:"device"`
	// SpoolDir is the frame spool directory for the dir device.
	SpoolDir string `yaml:"spool_dir"`
	// FrameRate is the decode loop cadence in ticks per second.
	FrameRate int `yaml:"frame_rate"`
	// SessionTTL is the idle scan session lifetime in seconds.
	SessionTTL int `yaml:"session_ttl"`
	// VerifyCodes controls whether resolved codes are checked against the
	// registry before a session reports success.
	VerifyCodes bool `yaml:"verify_codes"`
	// StopOnUnknown stops the session with a not-found failure when a
	// verified code has no location record. When false the session keeps
	// scanning and reports a recoverable invalid signal instead.
	StopOnUnknown bool `yaml:"stop_on_unknown"`
}

// Load reads a YAML configuration file from the given path and returns
// a parsed Config. It applies sensible defaults for unset values.
// If the primary path fails, it falls back to fieldmark.example.yaml
// in the same directory or parent directory.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		// Try fallback paths
		fallbackPaths := []string{
			filepath.Join(filepath.Dir(path), "fieldmark.example.yaml"),
			filepath.Join(filepath.Dir(path), "..", "fieldmark.example.yaml"),
		}
		var fallbackErr error
		for _, fp := range fallbackPaths {
			data, fallbackErr = os.ReadFile(fp)
			if fallbackErr == nil {
				break
			}
		}
		if fallbackErr != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults for empty fields that YAML didn't set
	applyDefaults(cfg)

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in any fields that are still at their zero value
// after YAML unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8420
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Registry.Engine == "" {
		cfg.Registry.Engine = "sqlite"
	}
	if cfg.Registry.SQLite.Path == "" {
		cfg.Registry.SQLite.Path = "./data/registry.db"
	}
	if cfg.Labels.Backend == "" {
		cfg.Labels.Backend = "local"
	}
	if cfg.Labels.RootDir == "" {
		cfg.Labels.RootDir = "./data/labels"
	}
	if cfg.Labels.Size == 0 {
		cfg.Labels.Size = 512
	}
	if cfg.Codes.DefaultPrefix == "" {
		cfg.Codes.DefaultPrefix = "LOC"
	}
	if cfg.Codes.MaxAttempts == 0 {
		cfg.Codes.MaxAttempts = 10
	}
	if cfg.Codes.MaxBatch == 0 {
		cfg.Codes.MaxBatch = 100
	}
	if len(cfg.Codes.Categories) == 0 {
		cfg.Codes.Categories = []string{"location", "locations", "inspection", "l"}
	}
	if cfg.Scan.Device == "" {
		cfg.Scan.Device = "push"
	}
	if cfg.Scan.FrameRate == 0 {
		cfg.Scan.FrameRate = 30
	}
	if cfg.Scan.SessionTTL == 0 {
		cfg.Scan.SessionTTL = 120
	}
}
