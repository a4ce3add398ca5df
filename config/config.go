package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppURL     string `mapstructure:"APP_URL"`
	ServerPort string `mapstructure:"SERVER_PORT"`

	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBName     string `mapstructure:"DB_NAME"`

	JWTSecretKey      string        `mapstructure:"JWT_SECRET_KEY"`
	JWTIssuer         string        `mapstructure:"JWT_ISSUER"`
	JWTExpirationTime time.Duration `mapstructure:"JWT_EXPIRATION_TIME"`

	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     string `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	MQUser     string `mapstructure:"MQ_USER"`
	MQPassword string `mapstructure:"MQ_PASSWORD"`
	MQHost     string `mapstructure:"MQ_HOST"`
	MQPort     string `mapstructure:"MQ_PORT"`

	MongoURI string `mapstructure:"MONGO_URI"`
	MongoDB  string `mapstructure:"MONGO_DB"`

	KafkaBrokers  string `mapstructure:"KAFKA_BROKERS"`
	KafkaLogTopic string `mapstructure:"KAFKA_LOG_TOPIC"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioPublicURL string `mapstructure:"MINIO_PUBLIC_URL"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`

	QdrantHost       string `mapstructure:"QDRANT_HOST"`
	QdrantPort       int    `mapstructure:"QDRANT_PORT"`
	QdrantAPIKey     string `mapstructure:"QDRANT_API_KEY"`
	QdrantCollection string `mapstructure:"QDRANT_COLLECTION"`
	QdrantVectorSize uint64 `mapstructure:"QDRANT_VECTOR_SIZE"`

	AIKey          string `mapstructure:"AI_API_KEY"`
	AIBaseURL      string `mapstructure:"AI_BASE_URL"`
	AIChatModel    string `mapstructure:"AI_CHAT_MODEL"`
	AIEmbedModel   string `mapstructure:"AI_EMBED_MODEL"`
	JaegerEndpoint string `mapstructure:"JAEGER_ENDPOINT"`

	StoryMaxLength  int           `mapstructure:"STORY_MAX_LENGTH"`
	RateLimitPosts  int           `mapstructure:"RATE_LIMIT_POSTS"`
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
}

// Brokers splits the comma separated KAFKA_BROKERS value.
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	configureViper(v)
	if err := readConfiguration(v); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.JWTSecretKey == "" {
		cfg.JWTSecretKey = "your_fallback_secret_key_change_in_production"
	}
	if cfg.JWTExpirationTime == 0 {
		cfg.JWTExpirationTime = time.Hour * 24
	}
	if cfg.StoryMaxLength <= 0 {
		cfg.StoryMaxLength = 500
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_URL", "http://localhost:8080")
	v.SetDefault("SERVER_PORT", "8080")

	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASSWORD", "root")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_NAME", "failboard")

	v.SetDefault("JWT_SECRET_KEY", "your_fallback_secret_key_change_in_production")
	v.SetDefault("JWT_ISSUER", "failboard")
	v.SetDefault("JWT_EXPIRATION_TIME", "24h")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", "0")

	v.SetDefault("MQ_USER", "guest")
	v.SetDefault("MQ_PASSWORD", "guest")
	v.SetDefault("MQ_HOST", "localhost")
	v.SetDefault("MQ_PORT", "5672")

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/")
	v.SetDefault("MONGO_DB", "failboard")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_LOG_TOPIC", "failboard-logs")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "FailBoard <noreply@failboard.com>")

	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_PUBLIC_URL", "http://localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "avatars")

	v.SetDefault("QDRANT_HOST", "localhost")
	v.SetDefault("QDRANT_PORT", "6334")
	v.SetDefault("QDRANT_API_KEY", "")
	v.SetDefault("QDRANT_COLLECTION", "stories_collection")
	v.SetDefault("QDRANT_VECTOR_SIZE", "1024")

	v.SetDefault("AI_API_KEY", "")
	v.SetDefault("AI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("AI_CHAT_MODEL", "gpt-4o-mini")
	v.SetDefault("AI_EMBED_MODEL", "text-embedding-3-small")
	v.SetDefault("JAEGER_ENDPOINT", "http://localhost:14268/api/traces")

	v.SetDefault("STORY_MAX_LENGTH", "500")
	v.SetDefault("RATE_LIMIT_POSTS", "5")
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
}

func configureViper(v *viper.Viper) {
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

func readConfiguration(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Warning: .env file not found, using defaults and system env")
			return nil
		}
		return fmt.Errorf("config file error: %w", err)
	}
	fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	return nil
}
