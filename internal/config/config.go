package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	NftEvents  string `mapstructure:"nft_events"`
	PoolEvents string `mapstructure:"pool_events"`
}

// BusinessConfig 代币经济参数
// mint_cost / burn_value 是固定面值；分配比例之和允许小于 100，
// 差值部分连同整数除法余数都留在池内不发放
type BusinessConfig struct {
	MintCost                  int64  `mapstructure:"mint_cost"`            // 铸造一件 NFT 消耗的代币
	BurnValue                 int64  `mapstructure:"burn_value"`           // 销毁一件 NFT 注入奖池的代币
	TargetTokens              int64  `mapstructure:"target_tokens"`        // 每轮奖池目标
	CharityPercentage         int    `mapstructure:"charity_percentage"`   // 慈善分配比例（0-100）
	TopContributorsPercentage int    `mapstructure:"top_contributors_percentage"`
	MaxTopContributors        int    `mapstructure:"max_top_contributors"` // 获奖名额数
	CharityName               string `mapstructure:"charity_name"`
	DistributionDelayDays     int    `mapstructure:"distribution_delay_days"` // 达标后几天执行分配
	MaxRetryCount             int    `mapstructure:"max_retry_count"`         // outbox 消息最大重试次数
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
