package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置（环境变量优先）
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Timeline  TimelineConfig  `mapstructure:"timeline"`
	Ranking   RankingConfig   `mapstructure:"ranking"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	JWT       JWTConfig       `mapstructure:"jwt"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // debug | release
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres | sqlite
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TimelineConfig 时间线容量（按排名裁剪）
type TimelineConfig struct {
	GlobalCap    int `mapstructure:"global_cap"`
	FollowingCap int `mapstructure:"following_cap"`
	OwnCap       int `mapstructure:"own_cap"`
}

type RankingConfig struct {
	CommentWeight float64 `mapstructure:"comment_weight"`
	LikeWeight    float64 `mapstructure:"like_weight"`
	ViewWeight    float64 `mapstructure:"view_weight"`
	RepostWeight  float64 `mapstructure:"repost_weight"`
	QuoteWeight   float64 `mapstructure:"quote_weight"`
	Scale         float64 `mapstructure:"scale"`
}

type RealtimeConfig struct {
	ProbeAfter time.Duration `mapstructure:"probe_after"` // idle before heartbeat probe
	DeadAfter  time.Duration `mapstructure:"dead_after"`  // idle before force close
}

type SentryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// Load 读取配置：config.yaml（可选）+ FEEDPULSE_* 环境变量覆盖
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("FEEDPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:feedpulse.db?cache=shared")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("timeline.global_cap", 360)
	v.SetDefault("timeline.following_cap", 120)
	v.SetDefault("timeline.own_cap", 120)

	v.SetDefault("ranking.comment_weight", 5)
	v.SetDefault("ranking.like_weight", 2)
	v.SetDefault("ranking.view_weight", 0.5)
	v.SetDefault("ranking.repost_weight", 5)
	v.SetDefault("ranking.quote_weight", 5)
	v.SetDefault("ranking.scale", 100)

	v.SetDefault("realtime.probe_after", 30*time.Second)
	v.SetDefault("realtime.dead_after", 2*time.Minute)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("telemetry.otlp_endpoint", "")

	v.SetDefault("jwt.secret", "dev-secret")
}
