package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr      string
	DBDriver      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	RedisAddr     string
	SessionSecret string
	GinMode       string
	LogFile       string
	GithubAPIURL  string
}

// Load reads configuration from the environment with defaults suitable
// for local development.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "devtrack")
	v.SetDefault("DB_PASSWORD", "devtrack")
	v.SetDefault("DB_NAME", "devtrack")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("SESSION_SECRET", "default-secret-key-change-me")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("GITHUB_API_URL", "https://api.github.com")

	return &Config{
		HTTPAddr:      v.GetString("HTTP_ADDR"),
		DBDriver:      v.GetString("DB_DRIVER"),
		DBHost:        v.GetString("DB_HOST"),
		DBPort:        v.GetString("DB_PORT"),
		DBUser:        v.GetString("DB_USER"),
		DBPassword:    v.GetString("DB_PASSWORD"),
		DBName:        v.GetString("DB_NAME"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		SessionSecret: v.GetString("SESSION_SECRET"),
		GinMode:       v.GetString("GIN_MODE"),
		LogFile:       v.GetString("LOG_FILE"),
		GithubAPIURL:  v.GetString("GITHUB_API_URL"),
	}
}
