package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 SOCIALSYNC_DATABASE_PASSWORD
const EnvPrefix = "SOCIALSYNC"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Websocket WebsocketConfig `mapstructure:"websocket"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Mail      MailConfig      `mapstructure:"mail"`
	Media     MediaConfig     `mapstructure:"media"`
	Badges    []BadgeConfig   `mapstructure:"badges"`
}

type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	Mode          string `mapstructure:"mode"`
	NodeID        int64  `mapstructure:"node_id"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	// AllowedOrigins 为空时允许所有来源
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	// Driver 取值 postgres 或 sqlite
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// DSN 构建 PostgreSQL DSN
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type JWTConfig struct {
	Secret       string `mapstructure:"secret"`
	ExpireHours  int    `mapstructure:"expire_hours"`
	RefreshHours int    `mapstructure:"refresh_hours"`
}

type RateLimitConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	FailOpen        bool `mapstructure:"fail_open"`
	AuthPerMinute   int  `mapstructure:"auth_per_minute"`
	JoinPerMinute   int  `mapstructure:"join_per_minute"`
	InvitePerMinute int  `mapstructure:"invite_per_minute"`
	UploadPerMinute int  `mapstructure:"upload_per_minute"`
	APIPerMinute    int  `mapstructure:"api_per_minute"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type WebsocketConfig struct {
	ReadBufferSize    int `mapstructure:"read_buffer_size"`
	WriteBufferSize   int `mapstructure:"write_buffer_size"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"` // 秒
	ConnectionTimeout int `mapstructure:"connection_timeout"` // 秒
	MaxConnsPerUser   int `mapstructure:"max_conns_per_user"`
}

type KafkaConfig struct {
	Enabled       bool           `mapstructure:"enabled"`
	Brokers       []string       `mapstructure:"brokers"`
	ConsumerGroup string         `mapstructure:"consumer_group"`
	Topics        TopicsConfig   `mapstructure:"topics"`
	Producer      ProducerConfig `mapstructure:"producer"`
	Consumer      ConsumerConfig `mapstructure:"consumer"`
}

type TopicsConfig struct {
	Notification string `mapstructure:"notification"`
	DLQ          string `mapstructure:"dlq"`
}

type ProducerConfig struct {
	MaxRetries     int `mapstructure:"max_retries"`
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

type ConsumerConfig struct {
	MaxRetries     int `mapstructure:"max_retries"`
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type StorageConfig struct {
	// Driver 取值 local、s3 或 cloudinary
	Driver     string           `mapstructure:"driver"`
	Local      LocalStorage     `mapstructure:"local"`
	S3         S3Storage        `mapstructure:"s3"`
	Cloudinary CloudinaryConfig `mapstructure:"cloudinary"`
}

type LocalStorage struct {
	Root    string `mapstructure:"root"`
	BaseURL string `mapstructure:"base_url"`
}

type S3Storage struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`
	PublicURL string `mapstructure:"public_url"`
}

type CloudinaryConfig struct {
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Folder    string `mapstructure:"folder"`
}

type GeocoderConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Language       string `mapstructure:"language"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type MailConfig struct {
	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	FromEmail      string `mapstructure:"from_email"`
	FromName       string `mapstructure:"from_name"`
}

type MediaConfig struct {
	MaxUploadMB  int `mapstructure:"max_upload_mb"`
	MaxDimension int `mapstructure:"max_dimension"`
	JPEGQuality  int `mapstructure:"jpeg_quality"`
	MaxFiles     int `mapstructure:"max_files"`
}

type BadgeConfig struct {
	Name          string `mapstructure:"name"`
	Description   string `mapstructure:"description"`
	Icon          string `mapstructure:"icon"`
	CriteriaType  string `mapstructure:"criteria_type"`
	CriteriaValue int    `mapstructure:"criteria_value"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.node_id", 1)
	v.SetDefault("server.public_base_url", "http://localhost:3000")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "socialsync")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "socialsync.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("jwt.refresh_hours", 168)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.fail_open", true)
	v.SetDefault("ratelimit.auth_per_minute", 10)
	v.SetDefault("ratelimit.join_per_minute", 10)
	v.SetDefault("ratelimit.invite_per_minute", 20)
	v.SetDefault("ratelimit.upload_per_minute", 30)
	v.SetDefault("ratelimit.api_per_minute", 300)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.heartbeat_interval", 30)
	v.SetDefault("websocket.connection_timeout", 60)
	v.SetDefault("websocket.max_conns_per_user", 5)

	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.consumer_group", "socialsync-notifications")
	v.SetDefault("kafka.topics.notification", "socialsync.notifications")
	v.SetDefault("kafka.topics.dlq", "socialsync.notifications.dlq")
	v.SetDefault("kafka.producer.max_retries", 3)
	v.SetDefault("kafka.producer.retry_backoff_ms", 100)
	v.SetDefault("kafka.consumer.max_retries", 3)
	v.SetDefault("kafka.consumer.retry_backoff_ms", 200)

	v.SetDefault("grpc.port", 9090)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.root", "./uploads")
	v.SetDefault("storage.local.base_url", "http://localhost:9000/uploads")
	v.SetDefault("storage.cloudinary.folder", "socialsync")

	v.SetDefault("geocoder.language", "en")
	v.SetDefault("geocoder.timeout_seconds", 5)

	v.SetDefault("mail.from_name", "SocialSync")

	// 没有默认值的键也要注册，否则 AutomaticEnv 在 Unmarshal 时不会生效
	for _, key := range []string{
		"jwt.secret", "database.password", "redis.password",
		"storage.s3.region", "storage.s3.bucket", "storage.s3.access_key", "storage.s3.secret_key",
		"storage.s3.endpoint", "storage.s3.public_url",
		"storage.cloudinary.cloud_name", "storage.cloudinary.api_key", "storage.cloudinary.api_secret",
		"geocoder.api_key", "geocoder.base_url", "mail.sendgrid_api_key", "mail.from_email",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("grpc.enabled", false)

	v.SetDefault("media.max_upload_mb", 50)
	v.SetDefault("media.max_dimension", 1920)
	v.SetDefault("media.jpeg_quality", 80)
	v.SetDefault("media.max_files", 10)
}

// DefaultBadges 当配置文件未声明徽章时使用
func DefaultBadges() []BadgeConfig {
	return []BadgeConfig{
		{Name: "First Reunion", Description: "Log your very first memory.", Icon: "sparkles", CriteriaType: "meeting_count", CriteriaValue: 1},
		{Name: "Regular", Description: "Show up to 10 meetups.", Icon: "calendar", CriteriaType: "meeting_count", CriteriaValue: 10},
		{Name: "Squad Goals", Description: "Be part of a meetup with 5 or more friends.", Icon: "users", CriteriaType: "participant_count", CriteriaValue: 5},
		{Name: "On a Roll", Description: "Meet up three months in a row.", Icon: "flame", CriteriaType: "streak", CriteriaValue: 3},
	}
}

// LoadConfig 读取配置文件；path 为空时只使用默认值与环境变量。
// 当前目录下存在 .env 时会先加载它。
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("加载 .env 失败: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if len(config.Badges) == 0 {
		config.Badges = DefaultBadges()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 校验启动必需的配置项
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret 不能为空")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "local", "s3", "cloudinary":
	default:
		return fmt.Errorf("不支持的存储驱动: %q", c.Storage.Driver)
	}
	for _, b := range c.Badges {
		switch b.CriteriaType {
		case "meeting_count", "participant_count", "streak":
		default:
			return fmt.Errorf("徽章 %q 的 criteria_type 无效: %q", b.Name, b.CriteriaType)
		}
	}
	return nil
}
