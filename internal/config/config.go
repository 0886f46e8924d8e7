package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Tax      TaxConfig      `mapstructure:"tax"`
	Registry RegistryConfig `mapstructure:"registry"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	JWTSecret         string `mapstructure:"jwt_secret"`
	SessionTTLMinutes int    `mapstructure:"session_ttl_minutes"`
}

type TaxConfig struct {
	// DefaultYear is the tax period new sessions start with. Zero means
	// "previous calendar year", resolved at session creation.
	DefaultYear int `mapstructure:"default_year"`
}

type RegistryConfig struct {
	SeedFile        string `mapstructure:"seed_file"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (a AuthConfig) SessionTTL() time.Duration {
	if a.SessionTTLMinutes <= 0 {
		return 8 * time.Hour
	}
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

func (r RegistryConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLMinutes) * time.Minute
}

// Load reads the config file (optional) and DMV_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5100)
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl_minutes", 480)
	v.SetDefault("tax.default_year", 0)
	v.SetDefault("registry.seed_file", "")
	v.SetDefault("registry.cache_ttl_minutes", 15)
	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetEnvPrefix("DMV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
