package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. LOGSTAT_LOG_PATH
const EnvPrefix = "LOGSTAT"

// HTTPServerConfig holds settings for the optional status server
type HTTPServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ListenAddress   string        `mapstructure:"listen_address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TLS             TLSConfig     `mapstructure:"tls"`
}

// TLSConfig holds TLS settings for the status server
type TLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CACert     string `mapstructure:"ca_cert"`
	ServerCert string `mapstructure:"server_cert"`
	ServerKey  string `mapstructure:"server_key"`
	ClientAuth string `mapstructure:"client_auth"` // require, request, or none
}

// MongoDBConfig holds connection settings for the snapshot mirror
type MongoDBConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	URI                string        `mapstructure:"uri"`
	Database           string        `mapstructure:"database"`
	Collection         string        `mapstructure:"collection"`
	CertificateKeyFile string        `mapstructure:"certificate_key_file"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxPoolSize        int           `mapstructure:"max_pool_size"`
}

// Config represents the complete logstat configuration
type Config struct {
	RulesPath string           `mapstructure:"rules_path"`
	LogPath   string           `mapstructure:"log_path"`
	StatsPath string           `mapstructure:"stats_path"`
	Interval  time.Duration    `mapstructure:"interval"`
	HTTP      HTTPServerConfig `mapstructure:"http"`
	MongoDB   MongoDBConfig    `mapstructure:"mongodb"`
	LogLevel  string           `mapstructure:"log_level"`
	LogFormat string           `mapstructure:"log_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rules_path", "config/rules.json")
	v.SetDefault("log_path", "/var/log/app/combined.log")
	v.SetDefault("stats_path", "stats/server_stats.json")
	v.SetDefault("interval", "1s")
	v.SetDefault("http.enabled", false)
	v.SetDefault("http.listen_address", "127.0.0.1:9464")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.shutdown_timeout", "5s")
	v.SetDefault("http.tls.enabled", false)
	v.SetDefault("http.tls.client_auth", "none")
	v.SetDefault("http.tls.ca_cert", "")
	v.SetDefault("http.tls.server_cert", "")
	v.SetDefault("http.tls.server_key", "")
	v.SetDefault("mongodb.enabled", false)
	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", "logstat")
	v.SetDefault("mongodb.collection", "server_stats")
	v.SetDefault("mongodb.certificate_key_file", "")
	v.SetDefault("mongodb.timeout", "5s")
	v.SetDefault("mongodb.max_pool_size", 4)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Load builds the configuration from defaults, the optional YAML file at
// configPath and LOGSTAT_* environment variables, in increasing precedence.
// An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.RulesPath == "" {
		return fmt.Errorf("rules_path is required")
	}
	if c.LogPath == "" {
		return fmt.Errorf("log_path is required")
	}
	if c.StatsPath == "" {
		return fmt.Errorf("stats_path is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}

	if c.MongoDB.Enabled {
		if c.MongoDB.URI == "" {
			return fmt.Errorf("mongodb.uri is required when mongodb is enabled")
		}
		if c.MongoDB.Database == "" || c.MongoDB.Collection == "" {
			return fmt.Errorf("mongodb.database and mongodb.collection are required when mongodb is enabled")
		}
	}

	if c.HTTP.Enabled && c.HTTP.TLS.Enabled {
		if c.HTTP.TLS.ServerCert == "" || c.HTTP.TLS.ServerKey == "" {
			return fmt.Errorf("http.tls.server_cert and http.tls.server_key are required when TLS is enabled")
		}
		switch c.HTTP.TLS.ClientAuth {
		case "none":
		case "request", "require":
			if c.HTTP.TLS.CACert == "" {
				return fmt.Errorf("http.tls.ca_cert is required when client_auth is %s", c.HTTP.TLS.ClientAuth)
			}
		default:
			return fmt.Errorf("http.tls.client_auth must be require, request, or none, got %q", c.HTTP.TLS.ClientAuth)
		}
	}

	return nil
}
