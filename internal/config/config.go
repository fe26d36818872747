// Package config loads the application configuration from a YAML file with
// environment variable substitution: string values may contain ${VAR} or
// ${VAR:default} placeholders that are resolved against the process
// environment at load time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port int    `yaml:"port"`
	Env  string `yaml:"env"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AuthConfig struct {
	TokenExpireDays  int `yaml:"token_expire_days"`
	MaxTokensPerUser int `yaml:"max_tokens_per_user"`
}

type OrderConfig struct {
	// ExpireMinutes is how long a pending order stays payable before it is
	// closed automatically.
	ExpireMinutes int `yaml:"expire_minutes"`
}

type PayConfig struct {
	AppID        string `yaml:"app_id"`
	MerchantID   string `yaml:"merchant_id"`
	APIKey       string `yaml:"api_key"`
	CertSerialNo string `yaml:"cert_serial_no"`
	NotifyURL    string `yaml:"notify_url"`
	// CredentialsDir holds the merchant private key. It is expected to be
	// mounted into the container by the deployment environment.
	CredentialsDir string `yaml:"credentials_dir"`
}

type UploadConfig struct {
	Dir string `yaml:"dir"`
}

// Config holds all the configuration settings for the application.
type Config struct {
	ProjectName string         `yaml:"project_name"`
	SecretKey   string         `yaml:"secret_key"`
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Log         LogConfig      `yaml:"log"`
	Auth        AuthConfig     `yaml:"auth"`
	Order       OrderConfig    `yaml:"order"`
	Pay         PayConfig      `yaml:"pay"`
	Upload      UploadConfig   `yaml:"upload"`
}

// Default returns a Config populated with the built-in defaults. Load starts
// from these so a sparse YAML file only needs to name what it changes.
func Default() Config {
	return Config{
		ProjectName: "storefront",
		Server: ServerConfig{
			Port: 8000,
			Env:  "development",
		},
		Database: DatabaseConfig{
			Path: "storefront.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			TokenExpireDays:  7,
			MaxTokensPerUser: 0, // 0 means unlimited devices
		},
		Order: OrderConfig{
			ExpireMinutes: 30,
		},
		Pay: PayConfig{
			CredentialsDir: "/app/certs",
		},
		Upload: UploadConfig{
			Dir: "uploads",
		},
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnv replaces ${VAR} and ${VAR:default} placeholders in s with values
// from the environment. A placeholder with no default and no matching
// environment variable expands to the empty string.
func ExpandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := match[2 : len(match)-1]
		name := inner
		def := ""
		hasDefault := false
		for i := 0; i < len(inner); i++ {
			if inner[i] == ':' {
				name = inner[:i]
				def = inner[i+1:]
				hasDefault = true
				break
			}
		}
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if hasDefault {
			return def
		}
		return ""
	})
}

// Load reads the configuration file at path, expands environment placeholders
// and unmarshals the result over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	expanded := ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Resolve picks the configuration file for the given environment. It prefers
// config-<env>.yaml next to dir, falling back to config.yaml. An empty result
// means no config file exists and the defaults apply.
func Resolve(dir, env string) string {
	if env != "" {
		candidate := filepath.Join(dir, fmt.Sprintf("config-%s.yaml", env))
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	candidate := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// TokenTTL returns the configured token lifetime in days as a count usable
// with time.AddDate.
func (c AuthConfig) TokenTTLDays() int {
	if c.TokenExpireDays <= 0 {
		return 7
	}
	return c.TokenExpireDays
}
