package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/semmidev/mongovault/internal/domain"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Restore  RestoreConfig  `mapstructure:"restore"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type MongoDBConfig struct {
	URI            string        `mapstructure:"uri"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	S3     S3Config     `mapstructure:"s3"`
	Local  LocalConfig  `mapstructure:"local"`
	GDrive GDriveConfig `mapstructure:"gdrive"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	KeyPath         string `mapstructure:"key_path"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	PartSizeMB      int64  `mapstructure:"part_size_mb"`
}

type LocalConfig struct {
	Path string `mapstructure:"path"`
}

type GDriveConfig struct {
	FolderID         string `mapstructure:"folder_id"`
	CredentialsFile  string `mapstructure:"credentials_file"`
	ClientSecretFile string `mapstructure:"client_secret_file"`
	RefreshToken     string `mapstructure:"refresh_token"`
}

type BackupConfig struct {
	Schedule   string `mapstructure:"schedule"`
	Strategy   string `mapstructure:"strategy"`
	NameFormat string `mapstructure:"name_format"`
	BatchSize  int    `mapstructure:"batch_size"`
	TempDir    string `mapstructure:"temp_dir"`

	// CompressionLevel is a gzip level; -1 is the library default.
	CompressionLevel int `mapstructure:"compression_level"`

	// RetentionDays is parsed leniently by Load; absent or invalid is 0.
	RetentionDays int `mapstructure:"-"`
}

type RestoreConfig struct {
	DropDelay time.Duration `mapstructure:"drop_delay"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

const (
	StorageS3     = "s3"
	StorageLocal  = "local"
	StorageGDrive = "gdrive"

	StrategyDriver    = "driver"
	StrategyMongoDump = "mongodump"
)

var envBindings = map[string]string{
	"app.log_level":                     "LOG_LEVEL",
	"app.log_file":                      "LOG_FILE",
	"mongodb.uri":                       "MONGODB_URI",
	"storage.type":                      "STORAGE_TYPE",
	"storage.s3.bucket":                 "S3_BUCKET",
	"storage.s3.region":                 "S3_REGION",
	"storage.s3.endpoint":               "S3_ENDPOINT",
	"storage.s3.access_key_id":          "S3_ACCESS_KEY_ID",
	"storage.s3.secret_access_key":      "S3_SECRET_ACCESS_KEY",
	"storage.s3.key_path":               "S3_KEY_PATH",
	"storage.s3.force_path_style":       "S3_FORCE_PATH_STYLE",
	"storage.local.path":                "BACKUP_LOCAL_PATH",
	"storage.gdrive.folder_id":          "GDRIVE_FOLDER_ID",
	"storage.gdrive.credentials_file":   "GDRIVE_CREDENTIALS_FILE",
	"storage.gdrive.client_secret_file": "GDRIVE_CLIENT_SECRET_FILE",
	"storage.gdrive.refresh_token":      "GDRIVE_REFRESH_TOKEN",
	"backup.schedule":                   "BACKUP_CRON_SCHEDULE",
	"backup.retention_days":             "BACKUP_RETENTION_DAYS",
	"backup.strategy":                   "BACKUP_STRATEGY",
	"backup.name_format":                "BACKUP_NAME_FORMAT",
	"backup.temp_dir":                   "BACKUP_TEMP_DIR",
	"backup.compression_level":          "BACKUP_COMPRESSION_LEVEL",
	"telegram.bot_token":                "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":                  "TELEGRAM_CHAT_ID",
}

// Load reads the YAML file at path, when given, and overlays the
// environment. Without a path, config.yaml in . or ./configs is used if
// present.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("app.name", "mongovault")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("mongodb.connect_timeout", "10s")
	v.SetDefault("storage.type", StorageS3)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("backup.strategy", StrategyDriver)
	v.SetDefault("backup.name_format", string(domain.NameFormatDaily))
	v.SetDefault("backup.batch_size", 1000)
	v.SetDefault("backup.compression_level", -1)
	v.SetDefault("restore.drop_delay", "5s")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Backup.RetentionDays = retentionDays(v.Get("backup.retention_days"))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// retentionDays reads the retention horizon. Anything that is not a whole
// number of days, or is not positive, disables retention.
func retentionDays(raw interface{}) int {
	if raw == nil {
		return 0
	}
	var days int
	var err error
	if s, ok := raw.(string); ok {
		// Decimal only: cast would read "010" as octal and "08" as invalid.
		days, err = strconv.Atoi(strings.TrimSpace(s))
	} else {
		days, err = cast.ToIntE(raw)
	}
	if err != nil || days < 0 {
		return 0
	}
	return days
}

func missing(setting, env string) error {
	return fmt.Errorf("%w: %s (%s)", domain.ErrConfigurationMissing, setting, env)
}

func (c *Config) Validate() error {
	if c.MongoDB.URI == "" {
		return missing("mongodb.uri", "MONGODB_URI")
	}

	switch c.Storage.Type {
	case StorageS3:
		s3 := c.Storage.S3
		if s3.Bucket == "" {
			return missing("storage.s3.bucket", "S3_BUCKET")
		}
		if s3.AccessKeyID == "" {
			return missing("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
		}
		if s3.SecretAccessKey == "" {
			return missing("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
		}
	case StorageLocal:
		if c.Storage.Local.Path == "" {
			return missing("storage.local.path", "BACKUP_LOCAL_PATH")
		}
	case StorageGDrive:
		gd := c.Storage.GDrive
		if gd.FolderID == "" {
			return missing("storage.gdrive.folder_id", "GDRIVE_FOLDER_ID")
		}
		if gd.CredentialsFile == "" && (gd.ClientSecretFile == "" || gd.RefreshToken == "") {
			return missing("storage.gdrive.credentials_file or client_secret_file with refresh_token", "GDRIVE_CREDENTIALS_FILE")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	switch c.Backup.Strategy {
	case StrategyDriver, StrategyMongoDump:
	default:
		return fmt.Errorf("unknown backup strategy %q", c.Backup.Strategy)
	}

	switch domain.NameFormat(c.Backup.NameFormat) {
	case domain.NameFormatDaily, domain.NameFormatTimestamp:
	default:
		return fmt.Errorf("unknown backup name format %q", c.Backup.NameFormat)
	}

	if c.Backup.BatchSize <= 0 {
		return fmt.Errorf("backup.batch_size must be positive")
	}

	return nil
}

// TelegramEnabled reports whether both Telegram settings are present.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
