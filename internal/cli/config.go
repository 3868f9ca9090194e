package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the client configuration, read from gymsync.yaml, GYMSYNC_* variables and
// flags, in increasing order of precedence.
type Config struct {
	ServerURL        string        `mapstructure:"server_url"`
	Token            string        `mapstructure:"token"`
	DBPath           string        `mapstructure:"db_path"`
	MaxRetries       int           `mapstructure:"max_retries"`
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
	ProbeInterval    time.Duration `mapstructure:"probe_interval"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"server": "server_url",
	"token":  "token",
	"db":     "db_path",
}

// LoadConfig resolves the configuration. configFile overrides the search for
// gymsync.yaml in the working directory and $HOME/.config/gymsync.
func LoadConfig(v *viper.Viper, configFile string, flags *pflag.FlagSet) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/gymsync")
		v.SetConfigName("gymsync")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("GYMSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("token", "")
	v.SetDefault("db_path", "gymsync.db")
	v.SetDefault("max_retries", 8)
	v.SetDefault("autosave_interval", "30s")
	v.SetDefault("probe_interval", "15s")
	v.SetDefault("request_timeout", "10s")

	if flags != nil {
		for flag, key := range flagKeys {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.MaxRetries <= 0 {
		return Config{}, fmt.Errorf("max_retries must be positive, got %d", cfg.MaxRetries)
	}
	return cfg, nil
}
