package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/auto-dns/docker-log-sentry/internal/util"
)

// AppConfig holds the capture-and-classify pipeline configuration.
type AppConfig struct {
	LogDir             string `mapstructure:"log_dir"`
	PollInterval       int    `mapstructure:"poll_interval"`
	ContainerNames     string `mapstructure:"container_names"`
	HeartbeatInterval  int    `mapstructure:"heartbeat_interval"`
	TailIntervalMs     int    `mapstructure:"tail_interval_ms"`
	CaptureJoinTimeout int    `mapstructure:"capture_join_timeout"`
	FilterJoinTimeout  int    `mapstructure:"filter_join_timeout"`
}

// CaptureConfig holds container log stream options.
type CaptureConfig struct {
	// Tail is passed to the runtime on every attach: "all" or a line count.
	Tail string `mapstructure:"tail"`
	// RetryBackoff in seconds; zero means the poll interval.
	RetryBackoff int `mapstructure:"retry_backoff"`
}

// LoggingConfig holds the logging-related configuration.
type LoggingConfig struct {
	Level string `mapstructure:"log_level"`
}

// EtcdConfig holds the optional heartbeat registry configuration.
type EtcdConfig struct {
	Endpoints       []string `mapstructure:"endpoints"`
	HeartbeatPrefix string   `mapstructure:"heartbeat_prefix"`
	HeartbeatTTL    int64    `mapstructure:"heartbeat_ttl"`
	DialTimeout     float64  `mapstructure:"dial_timeout"`
}

// SnapshotConfig holds the database snapshot job configuration.
type SnapshotConfig struct {
	AWSRegion        string `mapstructure:"aws_region"`
	RDSInstanceID    string `mapstructure:"rds_instance_id"`
	SQLitePath       string `mapstructure:"sqlite_path"`
	BackupDir        string `mapstructure:"backup_dir"`
	RetentionDaily   int    `mapstructure:"retention_daily"`
	RetentionWeekly  int    `mapstructure:"retention_weekly"`
	RetentionMonthly int    `mapstructure:"retention_monthly"`
	Schedule         string `mapstructure:"schedule"`
}

// Config is the top-level configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Logging  LoggingConfig  `mapstructure:"log"`
	Etcd     EtcdConfig     `mapstructure:"etcd"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
}

// Flat environment names kept for deployments that predate the sectioned keys.
var legacyEnv = map[string]string{
	"app.log_dir":                "LOG_DIR",
	"app.poll_interval":          "POLL_INTERVAL",
	"app.container_names":        "CONTAINER_NAMES",
	"snapshot.aws_region":        "AWS_REGION",
	"snapshot.rds_instance_id":   "RDS_INSTANCE_ID",
	"snapshot.sqlite_path":       "SPRING_SQLITE_PATH",
	"snapshot.backup_dir":        "BACKUP_DIR",
	"snapshot.retention_daily":   "RETENTION_DAILY",
	"snapshot.retention_weekly":  "RETENTION_WEEKLY",
	"snapshot.retention_monthly": "RETENTION_MONTHLY",
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.log_dir", "/app/logs")
	v.SetDefault("app.poll_interval", 5)
	v.SetDefault("app.container_names", "flask_open,java_springv1")
	v.SetDefault("app.heartbeat_interval", 60)
	v.SetDefault("app.tail_interval_ms", 200)
	v.SetDefault("app.capture_join_timeout", 10)
	v.SetDefault("app.filter_join_timeout", 5)
	v.SetDefault("capture.tail", "all")
	v.SetDefault("capture.retry_backoff", 0)
	v.SetDefault("log.log_level", "INFO")
	v.SetDefault("etcd.endpoints", []string{})
	v.SetDefault("etcd.heartbeat_prefix", "/docker-log-sentry/heartbeat")
	v.SetDefault("etcd.heartbeat_ttl", 180)
	v.SetDefault("etcd.dial_timeout", 2.0)
	v.SetDefault("snapshot.aws_region", "us-west-2")
	v.SetDefault("snapshot.rds_instance_id", "")
	v.SetDefault("snapshot.sqlite_path", "/spring-volumes/sqlite.db")
	v.SetDefault("snapshot.backup_dir", "/app/backups")
	v.SetDefault("snapshot.retention_daily", 7)
	v.SetDefault("snapshot.retention_weekly", 4)
	v.SetDefault("snapshot.retention_monthly", 3)
	v.SetDefault("snapshot.schedule", "0 3 * * *")
}

// BindEnv enables environment overrides: APP_LOG_DIR style names plus the legacy flat names.
func BindEnv(v *viper.Viper) error {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, legacy := range legacyEnv {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// InitConfig performs the initial configuration: setting defaults, specifying the config file, and reading it.
func InitConfig(configFile string) error {
	SetDefaults(viper.GetViper())

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config") // Looks for config.yaml
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// If the file is not found, just continue with defaults and env vars.
	}

	return BindEnv(viper.GetViper())
}

// Load unmarshals the global configuration into the Config struct.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &config, nil
}

// ValidationError reports an unusable configuration value.
type ValidationError struct {
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Key, e.Message)
}

// Validate checks the settings the capture pipeline cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.App.LogDir) == "" {
		return &ValidationError{Key: "app.log_dir", Message: "must not be empty"}
	}
	if c.App.PollInterval < 1 {
		return &ValidationError{Key: "app.poll_interval", Message: fmt.Sprintf("must be at least 1 second, got %d", c.App.PollInterval)}
	}
	if len(c.App.TargetNames()) == 0 {
		return &ValidationError{Key: "app.container_names", Message: "no container names configured"}
	}
	if c.App.TailIntervalMs < 1 {
		return &ValidationError{Key: "app.tail_interval_ms", Message: "must be positive"}
	}
	if c.Capture.RetryBackoff < 0 {
		return &ValidationError{Key: "capture.retry_backoff", Message: "must not be negative"}
	}
	return nil
}

// TargetNames returns the configured container names in order.
func (a AppConfig) TargetNames() []string {
	return util.SplitList(a.ContainerNames, ",")
}

func (a AppConfig) PollDuration() time.Duration {
	return time.Duration(a.PollInterval) * time.Second
}

func (a AppConfig) TailSlice() time.Duration {
	return time.Duration(a.TailIntervalMs) * time.Millisecond
}

func (a AppConfig) HeartbeatDuration() time.Duration {
	return time.Duration(a.HeartbeatInterval) * time.Second
}

func (a AppConfig) CaptureJoinDuration() time.Duration {
	return time.Duration(a.CaptureJoinTimeout) * time.Second
}

func (a AppConfig) FilterJoinDuration() time.Duration {
	return time.Duration(a.FilterJoinTimeout) * time.Second
}

// Backoff returns the wait between attach attempts.
func (c *Config) Backoff() time.Duration {
	if c.Capture.RetryBackoff > 0 {
		return time.Duration(c.Capture.RetryBackoff) * time.Second
	}
	return c.App.PollDuration()
}
