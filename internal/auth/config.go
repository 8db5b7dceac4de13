package auth

import (
	"fmt"
	"github.com/spf13/viper"
	"quotedesk/internal/domain"
	"strings"
)

type Config struct {
	AuthAddr string `mapstructure:"AUTH"`
	// DevTokens ("token:id:email:role,...") enables the static directory when AuthAddr is empty.
	DevTokens string `mapstructure:"AUTH_DEV_TOKENS"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.BindEnv("AUTH", "AUTH_ADDR")
	v.BindEnv("AUTH_DEV_TOKENS")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("cannot read config from %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}
	if cfg.AuthAddr == "" && cfg.DevTokens == "" {
		return nil, fmt.Errorf("either AUTH or AUTH_DEV_TOKENS is required")
	}

	return &cfg, nil
}

// ParseDevTokens reads the AUTH_DEV_TOKENS format.
func ParseDevTokens(raw string) (map[string]domain.User, error) {
	out := map[string]domain.User{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid dev token entry %q", entry)
		}
		out[parts[0]] = domain.User{ID: parts[1], Email: parts[2], Name: parts[2], Role: parts[3]}
	}
	return out, nil
}
