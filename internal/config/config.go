// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Knowledge     KnowledgeConfig     `mapstructure:"knowledge"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
	Enabled   bool   `mapstructure:"enabled"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	Enabled    bool   `mapstructure:"enabled"`
}

// KnowledgeConfig 存储知识库核心流程的配置。
type KnowledgeConfig struct {
	CacheTTLSeconds      int    `mapstructure:"cache_ttl_seconds"`      // 语料快照缓存的有效期
	VisibilityAttempts   int    `mapstructure:"visibility_attempts"`    // 写入后可见性确认的最大重试次数
	VisibilityDelayMs    int    `mapstructure:"visibility_delay_ms"`    // 可见性确认重试的固定间隔
	ExtractMaxPages      int    `mapstructure:"extract_max_pages"`      // PDF 解析的页数上限
	ExtractMaxChars      int    `mapstructure:"extract_max_chars"`      // 提取文本的字符上限
	ContentMaxChars      int    `mapstructure:"content_max_chars"`      // 入库正文的字符上限
	PresignExpiryMinutes int    `mapstructure:"presign_expiry_minutes"` // 预签名下载链接的有效期
	SeedDir              string `mapstructure:"seed_dir"`               // 启动时自动导入的目录
}

// CacheTTL 返回缓存有效期；未配置时使用默认的 30 秒。
func (k KnowledgeConfig) CacheTTL() time.Duration {
	if k.CacheTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(k.CacheTTLSeconds) * time.Second
}

// VisibilityDelay 返回可见性重试间隔；未配置时使用默认的 1 秒。
func (k KnowledgeConfig) VisibilityDelay() time.Duration {
	if k.VisibilityDelayMs <= 0 {
		return time.Second
	}
	return time.Duration(k.VisibilityDelayMs) * time.Millisecond
}

// PresignExpiry 返回预签名链接有效期；未配置时使用默认的 60 分钟。
func (k KnowledgeConfig) PresignExpiry() time.Duration {
	if k.PresignExpiryMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(k.PresignExpiryMinutes) * time.Minute
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}
