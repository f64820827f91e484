// Package config loads feeder settings from an optional YAML file and
// FEEDER_* environment variables. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string `mapstructure:"database_url"` // FEEDER_DATABASE_URL (PostgreSQL; empty = SQLite)
	SQLitePath  string `mapstructure:"sqlite_path"`  // FEEDER_SQLITE_PATH (default <state>/feeder.db)
	NATSURL     string `mapstructure:"nats_url"`     // FEEDER_NATS_URL (optional, empty = no events)
	ServersFile string `mapstructure:"servers_file"` // FEEDER_SERVERS_FILE (default ~/.config/xsoar-feeder/servers.toml)
	KeyringDir  string `mapstructure:"keyring_dir"`  // FEEDER_KEYRING_DIR (file backend only)

	HTTPTimeout time.Duration `mapstructure:"http_timeout"` // FEEDER_HTTP_TIMEOUT (default 60s)
	LastFlag    string        `mapstructure:"last_flag"`    // FEEDER_LAST_FLAG ("overall" or "per-field")

	// Attachment storage
	BlobDir        string `mapstructure:"blob_dir"`         // FEEDER_BLOB_DIR (default <state>/attachments)
	BlobS3Bucket   string `mapstructure:"blob_s3_bucket"`   // FEEDER_BLOB_S3_BUCKET (enables S3 when set)
	BlobS3Prefix   string `mapstructure:"blob_s3_prefix"`   // FEEDER_BLOB_S3_PREFIX (default "attachments/")
	BlobS3Region   string `mapstructure:"blob_s3_region"`   // FEEDER_BLOB_S3_REGION (default "us-east-1")
	BlobS3Endpoint string `mapstructure:"blob_s3_endpoint"` // FEEDER_BLOB_S3_ENDPOINT (custom endpoint for MinIO)

	// Backup settings
	BackupInterval   time.Duration `mapstructure:"backup_interval"`    // FEEDER_BACKUP_INTERVAL (default 0 = disabled)
	BackupS3Bucket   string        `mapstructure:"backup_s3_bucket"`   // FEEDER_BACKUP_S3_BUCKET (enables S3 when set)
	BackupS3Endpoint string        `mapstructure:"backup_s3_endpoint"` // FEEDER_BACKUP_S3_ENDPOINT
	BackupS3Region   string        `mapstructure:"backup_s3_region"`   // FEEDER_BACKUP_S3_REGION (default "us-east-1")
	BackupS3Key      string        `mapstructure:"backup_s3_key"`      // FEEDER_BACKUP_S3_KEY (default "feeder/backup.jsonl")
	BackupGitRepo    string        `mapstructure:"backup_git_repo"`    // FEEDER_BACKUP_GIT_REPO (enables git when set)
	BackupGitFile    string        `mapstructure:"backup_git_file"`    // FEEDER_BACKUP_GIT_FILE (default "feeder.jsonl")
	BackupGitBranch  string        `mapstructure:"backup_git_branch"`  // FEEDER_BACKUP_GIT_BRANCH (default "main")
}

// StateDir returns ~/.local/state/xsoar-feeder.
func StateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".xsoar-feeder")
	}
	return filepath.Join(home, ".local", "state", "xsoar-feeder")
}

// DefaultFile returns ~/.config/xsoar-feeder/config.yaml.
func DefaultFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "xsoar-feeder", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	state := StateDir()
	home, _ := os.UserHomeDir()
	for key, value := range map[string]any{
		"database_url":       "",
		"sqlite_path":        filepath.Join(state, "feeder.db"),
		"nats_url":           "",
		"servers_file":       filepath.Join(home, ".config", "xsoar-feeder", "servers.toml"),
		"keyring_dir":        filepath.Join(state, "keyring"),
		"http_timeout":       "60s",
		"last_flag":          "overall",
		"blob_dir":           filepath.Join(state, "attachments"),
		"blob_s3_bucket":     "",
		"blob_s3_prefix":     "attachments/",
		"blob_s3_region":     "us-east-1",
		"blob_s3_endpoint":   "",
		"backup_interval":    "0s",
		"backup_s3_bucket":   "",
		"backup_s3_endpoint": "",
		"backup_s3_region":   "us-east-1",
		"backup_s3_key":      "feeder/backup.jsonl",
		"backup_git_repo":    "",
		"backup_git_file":    "feeder.jsonl",
		"backup_git_branch":  "main",
	} {
		v.SetDefault(key, value)
	}
}

// Load reads the YAML file at path, if it exists, then applies FEEDER_*
// environment variables. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FEEDER")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) && !isPathError(err) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if c.HTTPTimeout < 0 {
		return nil, fmt.Errorf("http_timeout must not be negative, got %s", c.HTTPTimeout)
	}
	if c.BackupInterval < 0 {
		return nil, fmt.Errorf("backup_interval must not be negative, got %s", c.BackupInterval)
	}
	if c.LastFlag != "overall" && c.LastFlag != "per-field" {
		return nil, fmt.Errorf("last_flag must be \"overall\" or \"per-field\", got %q", c.LastFlag)
	}
	return c, nil
}

func isPathError(err error) bool {
	var pe *os.PathError
	return errors.As(err, &pe)
}
