// Package config loads the service configuration from an optional .env file
// and BROKERAGE_* environment variables on top of the built-in defaults.
// Priority: environment variables > .env file > defaults.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
)

// EnvPrefix prefixes every environment variable, e.g. BROKERAGE_SERVER_PORT
// for server.port.
const EnvPrefix = "BROKERAGE"

// Load reads ./.env (if present) and the environment.
func Load() (*domain.Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is ignored.
// BROKERAGE_TIER=pro starts from domain.ProConfig instead of the defaults.
func LoadFile(path string) (*domain.Config, error) {
	dotenv := viper.New()
	dotenv.SetConfigFile(path)
	dotenv.SetConfigType("env")
	_ = dotenv.ReadInConfig() // .env is optional

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	base := domain.DefaultConfig()
	if tier := lookup(v, dotenv, "tier"); tier == "pro" {
		base = domain.ProConfig()
	}
	setConfigDefaults(v, dotenv, base)

	var cfg domain.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ierr.WithError(err).
			WithHint("check BROKERAGE_* values for type errors").
			Mark(ierr.ErrValidation)
	}
	if err := cfg.Validate(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	return &cfg, nil
}

// EnvName returns the environment variable for a config key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// lookup returns key from the environment, then the dotenv file.
func lookup(v, dotenv *viper.Viper, key string) string {
	v.SetDefault(key, "")
	if s := v.GetString(key); s != "" {
		return s
	}
	return dotenv.GetString(strings.ToLower(EnvName(key)))
}

// setConfigDefaults registers every key so AutomaticEnv can override it.
// Values found in the dotenv file replace the built-in default.
func setConfigDefaults(v, dotenv *viper.Viper, cfg *domain.Config) {
	defaults := map[string]any{
		"server.host":          cfg.Server.Host,
		"server.port":          cfg.Server.Port,
		"server.read_timeout":  cfg.Server.ReadTimeout,
		"server.write_timeout": cfg.Server.WriteTimeout,

		"repository.driver":            cfg.Repository.Driver,
		"repository.sqlite_path":       cfg.Repository.SQLitePath,
		"repository.postgres_host":     cfg.Repository.PostgresHost,
		"repository.postgres_port":     cfg.Repository.PostgresPort,
		"repository.postgres_user":     cfg.Repository.PostgresUser,
		"repository.postgres_password": cfg.Repository.PostgresPassword,
		"repository.postgres_db":       cfg.Repository.PostgresDB,
		"repository.postgres_sslmode":  cfg.Repository.PostgresSSLMode,
		"repository.max_open_conns":    cfg.Repository.MaxOpenConns,
		"repository.max_idle_conns":    cfg.Repository.MaxIdleConns,
		"repository.conn_max_lifetime": cfg.Repository.ConnMaxLifetime,

		"cache.type":             cfg.Cache.Type,
		"cache.local_max_size":   cfg.Cache.LocalMaxSize,
		"cache.local_ttl":        cfg.Cache.LocalTTL,
		"cache.redis_addr":       cfg.Cache.RedisAddr,
		"cache.redis_password":   cfg.Cache.RedisPassword,
		"cache.redis_db":         cfg.Cache.RedisDB,
		"cache.enable_two_phase": cfg.Cache.EnableTwoPhase,
		"cache.catalog_ttl":      cfg.Cache.CatalogTTL,

		"eventbus.type":                cfg.EventBus.Type,
		"eventbus.channel_buffer_size": cfg.EventBus.ChannelBufferSize,
		"eventbus.nats_url":            cfg.EventBus.NATSUrl,
		"eventbus.nats_token":          cfg.EventBus.NATSToken,
		"eventbus.nats_max_reconnects": cfg.EventBus.NATSMaxReconnects,
		"eventbus.nats_reconnect_wait": cfg.EventBus.NATSReconnectWait,

		"logging.level":  cfg.Logging.Level,
		"logging.format": cfg.Logging.Format,

		"tracing.enabled":      cfg.Tracing.Enabled,
		"tracing.service_name": cfg.Tracing.ServiceName,
	}

	for key, value := range defaults {
		if fromFile := dotenv.GetString(strings.ToLower(EnvName(key))); fromFile != "" {
			v.SetDefault(key, fromFile)
			continue
		}
		v.SetDefault(key, value)
	}
}
