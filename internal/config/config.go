package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem configuration is read from and written to.
var AppFs = afero.NewOsFs()

const (
	configName = ".litesql"
	envPrefix  = "LITESQL"
)

// Config holds the CLI configuration.
type Config struct {
	Database        string
	PoolSize        int
	CheckoutTimeout time.Duration
	RetryAttempts   int
	LogLevel        string
	LogJSON         bool

	// Engine options, passed through ParseOptions.
	EncryptionKey string
	AuthToken     string
	SyncURL       string
	BusyTimeoutMS int64

	// File is the config file that was read, if any.
	File string
}

func newViper() (*viper.Viper, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "litesql"))

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("database", "litesql.db")
	v.SetDefault("pool_size", 4)
	v.SetDefault("checkout_timeout", 5*time.Second)
	v.SetDefault("retry_attempts", 5)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_json", false)
	v.SetDefault("busy_timeout_ms", 0)
	return v, nil
}

// Load reads configuration from the config file (explicit path or the search paths),
// the environment (LITESQL_*) and .env/.env.local in the working directory. Variables
// already set in the environment win over .env; .env.local wins over .env.
func Load(configFile string) (*Config, error) {
	if err := loadDotEnv(".env", false); err != nil {
		return nil, err
	}
	if err := loadDotEnv(".env.local", true); err != nil {
		return nil, err
	}

	v, err := newViper()
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		Database:        v.GetString("database"),
		PoolSize:        v.GetInt("pool_size"),
		CheckoutTimeout: v.GetDuration("checkout_timeout"),
		RetryAttempts:   v.GetInt("retry_attempts"),
		LogLevel:        v.GetString("log_level"),
		LogJSON:         v.GetBool("log_json"),
		EncryptionKey:   v.GetString(KeyEncryptionKey),
		AuthToken:       v.GetString(KeyAuthToken),
		SyncURL:         v.GetString(KeySyncURL),
		BusyTimeoutMS:   v.GetInt64(KeyBusyTimeoutMS),
		File:            v.ConfigFileUsed(),
	}
	return cfg, nil
}

// EngineOptions returns the engine option map for the configured values.
func (c *Config) EngineOptions() map[string]interface{} {
	opts := map[string]interface{}{}
	if c.EncryptionKey != "" {
		opts[KeyEncryptionKey] = c.EncryptionKey
	}
	if c.AuthToken != "" {
		opts[KeyAuthToken] = c.AuthToken
	}
	if c.SyncURL != "" {
		opts[KeySyncURL] = c.SyncURL
	}
	if c.BusyTimeoutMS > 0 {
		opts[KeyBusyTimeoutMS] = c.BusyTimeoutMS
	}
	return opts
}

// Save writes the non-secret settings to $HOME/.config/litesql/.litesql.yaml and returns
// the path written.
func Save(cfg *Config) (string, error) {
	v, err := newViper()
	if err != nil {
		return "", err
	}
	v.Set("database", cfg.Database)
	v.Set("pool_size", cfg.PoolSize)
	v.Set("checkout_timeout", cfg.CheckoutTimeout.String())
	v.Set("retry_attempts", cfg.RetryAttempts)
	v.Set("log_level", cfg.LogLevel)
	v.Set("log_json", cfg.LogJSON)
	if cfg.SyncURL != "" {
		v.Set(KeySyncURL, cfg.SyncURL)
	}
	if cfg.BusyTimeoutMS > 0 {
		v.Set(KeyBusyTimeoutMS, cfg.BusyTimeoutMS)
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".config", "litesql")
	if err := AppFs.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, configName+".yaml")
	return path, v.WriteConfigAs(path)
}

func loadDotEnv(name string, override bool) error {
	data, err := afero.ReadFile(AppFs, name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	env, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}
	for key, val := range env {
		if _, set := os.LookupEnv(key); set && !override {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return err
		}
	}
	return nil
}
