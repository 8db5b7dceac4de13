package config

import (
	"fmt"
	"github.com/spf13/viper"
	"strings"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"Server"`
	Database     DatabaseConfig     `mapstructure:"Database"`
	Mail         MailConfig         `mapstructure:"Mail"`
	Notification NotificationConfig `mapstructure:"Notification"`
}

type ServerConfig struct {
	Port     string `mapstructure:"Port"`
	GRPCPort string `mapstructure:"GRPCPort"`
	// AllowedOrigins is a comma separated CORS list.
	AllowedOrigins string `mapstructure:"AllowedOrigins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type MailConfig struct {
	// Driver is "smtp" or "log".
	Driver   string `mapstructure:"Driver"`
	Host     string `mapstructure:"Host"`
	Port     int    `mapstructure:"Port"`
	Username string `mapstructure:"Username"`
	Password string `mapstructure:"Password"`
	From     string `mapstructure:"From"`
	FromName string `mapstructure:"FromName"`
	NodeID   int64  `mapstructure:"NodeID"`
}

type NotificationConfig struct {
	InternalRecipients string `mapstructure:"InternalRecipients"`
	Locale             string `mapstructure:"Locale"`
	CurrencySymbol     string `mapstructure:"CurrencySymbol"`
	CompanyName        string `mapstructure:"CompanyName"`
	AdminBaseURL       string `mapstructure:"AdminBaseURL"`
	PublicBaseURL      string `mapstructure:"PublicBaseURL"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("Server.Port", "2525")
	v.SetDefault("Server.GRPCPort", "50051")
	v.SetDefault("Server.AllowedOrigins", "*")
	v.SetDefault("Database.SSLMode", "disable")
	v.SetDefault("Mail.Driver", "log")
	v.SetDefault("Mail.Port", 587)
	v.SetDefault("Mail.NodeID", 1)
	v.SetDefault("Notification.Locale", "en-US")
	v.SetDefault("Notification.CurrencySymbol", "$")
	v.SetDefault("Notification.CompanyName", "Quotedesk")

	for key, env := range map[string]string{
		"Database.Host":                   "DATABASE_HOST",
		"Database.Port":                   "DATABASE_PORT",
		"Database.User":                   "DATABASE_USER",
		"Database.Password":               "DATABASE_PASSWORD",
		"Database.Name":                   "DATABASE_NAME",
		"Database.SSLMode":                "DATABASE_SSLMODE",
		"Server.Port":                     "HTTP_PORT",
		"Server.GRPCPort":                 "GRPC_PORT",
		"Server.AllowedOrigins":           "CORS_ALLOWED_ORIGINS",
		"Mail.Driver":                     "MAIL_DRIVER",
		"Mail.Host":                       "SMTP_HOST",
		"Mail.Port":                       "SMTP_PORT",
		"Mail.Username":                   "SMTP_USERNAME",
		"Mail.Password":                   "SMTP_PASSWORD",
		"Mail.From":                       "MAIL_FROM",
		"Mail.FromName":                   "MAIL_FROM_NAME",
		"Mail.NodeID":                     "MAIL_NODE_ID",
		"Notification.InternalRecipients": "INTERNAL_NOTIFICATION_RECIPIENTS",
		"Notification.Locale":             "NOTIFICATION_LOCALE",
		"Notification.CurrencySymbol":     "NOTIFICATION_CURRENCY_SYMBOL",
		"Notification.CompanyName":        "COMPANY_NAME",
		"Notification.AdminBaseURL":       "ADMIN_BASE_URL",
		"Notification.PublicBaseURL":      "PUBLIC_BASE_URL",
	} {
		v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.Host == "" ||
		c.Database.Port == "" ||
		c.Database.User == "" ||
		c.Database.Password == "" ||
		c.Database.Name == "" {
		return fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name)
	}
	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" || c.Mail.From == "" {
			return fmt.Errorf("smtp mail driver needs SMTP_HOST and MAIL_FROM")
		}
	default:
		return fmt.Errorf("unknown mail driver %q", c.Mail.Driver)
	}
	return nil
}

// Recipients splits the comma separated fallback list.
func (c *NotificationConfig) Recipients() []string {
	var out []string
	for _, r := range strings.Split(c.InternalRecipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func (c *ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}
