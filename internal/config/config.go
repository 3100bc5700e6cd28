package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server           ServerConfig           `mapstructure:"Server"`
	Database         DatabaseConfig         `mapstructure:"Database"`
	Disks            DisksConfig            `mapstructure:"Disks"`
	S3               S3Config               `mapstructure:"S3"`
	Redis            RedisConfig            `mapstructure:"Redis"`
	Queue            QueueConfig            `mapstructure:"Queue"`
	Pending          PendingConfig          `mapstructure:"Pending"`
	GarbageCollector GarbageCollectorConfig `mapstructure:"GarbageCollector"`
	Log              LogConfig              `mapstructure:"Log"`
	Collections      []CollectionConfig     `mapstructure:"Collections"`
}

type ServerConfig struct {
	Port        string `mapstructure:"Port"`
	GRPCPort    string `mapstructure:"GRPCPort"`
	MetricsPath string `mapstructure:"MetricsPath"`
	// AdminKey разрешает DELETE /v1/assets/{id}; пустой ключ запрещает удаление
	AdminKey string `mapstructure:"AdminKey"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

// DiskConfig описывает один диск: local (Root) или s3 (Bucket, Prefix)
type DiskConfig struct {
	Driver string `mapstructure:"Driver"`
	Root   string `mapstructure:"Root"`
	Bucket string `mapstructure:"Bucket"`
	Prefix string `mapstructure:"Prefix"`
}

type DisksConfig struct {
	Public  DiskConfig `mapstructure:"Public"`
	Private DiskConfig `mapstructure:"Private"`
	Staging DiskConfig `mapstructure:"Staging"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"Endpoint"`
	Region          string `mapstructure:"Region"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	UsePathStyle    bool   `mapstructure:"UsePathStyle"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"Addr"`
	Password string `mapstructure:"Password"`
	DB       int    `mapstructure:"DB"`
}

type QueueConfig struct {
	Concurrency  int           `mapstructure:"Concurrency"`
	PollInterval time.Duration `mapstructure:"PollInterval"`
	MaxAttempts  int           `mapstructure:"MaxAttempts"`
	Backoff      time.Duration `mapstructure:"Backoff"`
	StaleAfter   time.Duration `mapstructure:"StaleAfter"`
}

type PendingConfig struct {
	DefaultTTL      time.Duration `mapstructure:"DefaultTTL"`
	TokenProvider   string        `mapstructure:"TokenProvider"`
	SigningKey      string        `mapstructure:"SigningKey"`
	CleanupSchedule string        `mapstructure:"CleanupSchedule"`
	CleanupBatch    int           `mapstructure:"CleanupBatch"`
}

type GarbageCollectorConfig struct {
	BatchSize int    `mapstructure:"BatchSize"`
	Schedule  string `mapstructure:"Schedule"`
}

// CollectionConfig объявляет коллекцию владельца EntityType
type CollectionConfig struct {
	EntityType        string          `mapstructure:"EntityType"`
	Name              string          `mapstructure:"Name"`
	Visibility        string          `mapstructure:"Visibility"`
	AllowedExtensions []string        `mapstructure:"AllowedExtensions"`
	AllowedMimeTypes  []string        `mapstructure:"AllowedMimeTypes"`
	MaxFileSize       int64           `mapstructure:"MaxFileSize"`
	MaxItems          int             `mapstructure:"MaxItems"`
	SingleFile        bool            `mapstructure:"SingleFile"`
	Variants          []VariantConfig `mapstructure:"Variants"`
}

// VariantConfig - вариант коллекции; Kind: thumbnail или poster
type VariantConfig struct {
	Name      string `mapstructure:"Name"`
	Kind      string `mapstructure:"Kind"`
	MaxSize   int    `mapstructure:"MaxSize"`
	Extension string `mapstructure:"Extension"`
}

type LogConfig struct {
	Mode string `mapstructure:"Mode"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	// Устанавливаем файл конфигурации
	v.SetConfigFile(path)
	setDefaults(v)

	// Привязываем переменные окружения
	v.BindEnv("Database.Host", "DATABASE_HOST")
	v.BindEnv("Database.Port", "DATABASE_PORT")
	v.BindEnv("Database.User", "DATABASE_USER")
	v.BindEnv("Database.Password", "DATABASE_PASSWORD")
	v.BindEnv("Database.Name", "DATABASE_NAME")
	v.BindEnv("Database.SSLMode", "DATABASE_SSLMODE")
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Server.GRPCPort", "GRPC_PORT")
	v.BindEnv("S3.Endpoint", "S3_ENDPOINT")
	v.BindEnv("S3.Region", "S3_REGION")
	v.BindEnv("S3.AccessKeyID", "S3_ACCESS_KEY_ID")
	v.BindEnv("S3.SecretAccessKey", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("S3.UsePathStyle", "S3_USE_PATH_STYLE")
	v.BindEnv("Server.AdminKey", "ADMIN_KEY")
	v.BindEnv("Redis.Addr", "REDIS_ADDR")
	v.BindEnv("Redis.Password", "REDIS_PASSWORD")
	v.BindEnv("Pending.SigningKey", "PENDING_SIGNING_KEY")
	v.BindEnv("Log.Mode", "LOG_MODE")

	// Читаем конфигурацию из файла
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "2525")
	v.SetDefault("Server.GRPCPort", "50051")
	v.SetDefault("Server.MetricsPath", "/metrics")
	v.SetDefault("Database.SSLMode", "disable")

	v.SetDefault("Disks.Public.Driver", "local")
	v.SetDefault("Disks.Public.Root", "/var/lib/mediavault/public")
	v.SetDefault("Disks.Private.Driver", "local")
	v.SetDefault("Disks.Private.Root", "/var/lib/mediavault/private")
	v.SetDefault("Disks.Staging.Driver", "local")
	v.SetDefault("Disks.Staging.Root", "/var/lib/mediavault/staging")

	v.SetDefault("Queue.Concurrency", 4)
	v.SetDefault("Queue.PollInterval", time.Second)
	v.SetDefault("Queue.MaxAttempts", 2)
	v.SetDefault("Queue.Backoff", 30*time.Second)
	v.SetDefault("Queue.StaleAfter", 10*time.Minute)

	v.SetDefault("Pending.DefaultTTL", 24*time.Hour)
	v.SetDefault("Pending.TokenProvider", "store")
	v.SetDefault("Pending.CleanupSchedule", "@every 1h")
	v.SetDefault("Pending.CleanupBatch", 500)

	v.SetDefault("GarbageCollector.BatchSize", 1000)
	v.SetDefault("GarbageCollector.Schedule", "@every 15m")

	v.SetDefault("Log.Mode", "dev")
}

// Validate проверяет, что все необходимые поля заполнены
func (c *Config) Validate() error {
	if c.Database.Host == "" ||
		c.Database.Port == "" ||
		c.Database.User == "" ||
		c.Database.Password == "" ||
		c.Database.Name == "" {
		return fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name)
	}

	for name, disk := range map[string]DiskConfig{
		"public":  c.Disks.Public,
		"private": c.Disks.Private,
		"staging": c.Disks.Staging,
	} {
		switch disk.Driver {
		case "local":
			if disk.Root == "" {
				return fmt.Errorf("disk %s: root is required for local driver", name)
			}
		case "s3":
			if disk.Bucket == "" {
				return fmt.Errorf("disk %s: bucket is required for s3 driver", name)
			}
		default:
			return fmt.Errorf("disk %s: unknown driver %q", name, disk.Driver)
		}
	}

	switch c.Pending.TokenProvider {
	case "store":
	case "signed":
		if c.Pending.SigningKey == "" {
			return fmt.Errorf("pending signing key is required for signed token provider")
		}
	default:
		return fmt.Errorf("unknown pending token provider %q", c.Pending.TokenProvider)
	}

	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue max attempts must be at least 1, got %d", c.Queue.MaxAttempts)
	}
	if c.Pending.DefaultTTL <= 0 {
		return fmt.Errorf("pending default ttl must be positive")
	}

	for i, col := range c.Collections {
		if col.EntityType == "" || col.Name == "" {
			return fmt.Errorf("collection #%d: entity type and name are required", i)
		}
		for _, v := range col.Variants {
			if v.Kind != "thumbnail" && v.Kind != "poster" {
				return fmt.Errorf("collection %s:%s: unknown variant kind %q", col.EntityType, col.Name, v.Kind)
			}
		}
	}

	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}
