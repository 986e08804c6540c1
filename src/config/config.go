// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package config loads blockwatch settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix is the prefix of every environment variable read by [Load].
const EnvPrefix = "BLOCKWATCH_"

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// ResolversFile is the YAML resolver directory.
	ResolversFile string `koanf:"resolvers_file" validate:"required"`

	// StoreDriver selects the persistence backend.
	StoreDriver string `koanf:"store_driver" validate:"required,oneof=bolt postgres"`

	BoltPath         string `koanf:"bolt_path" validate:"required_if=StoreDriver bolt"`
	PostgresDSN      string `koanf:"postgres_dsn" validate:"required_if=StoreDriver postgres"`
	PostgresMaxConns int    `koanf:"postgres_max_conns" validate:"gte=1"`

	// WebhookURL receives notifications. Empty disables them.
	WebhookURL     string `koanf:"webhook_url" validate:"omitempty,url"`
	WebhookMention bool   `koanf:"webhook_mention"`

	// NotifyRate is the maximum number of notifications per minute.
	NotifyRate int `koanf:"notify_rate" validate:"gte=1"`

	// AdminTokenHash is the bcrypt hash of the admin token that guards
	// adding domains. Empty rejects every add.
	AdminTokenHash string `koanf:"admin_token_hash" validate:"omitempty,bcrypt_hash"`

	ProbeTimeout      time.Duration `koanf:"probe_timeout" validate:"gte=100ms"`
	ReconcileInterval time.Duration `koanf:"reconcile_interval" validate:"gte=1s"`
	HealthInterval    time.Duration `koanf:"health_interval" validate:"gte=1s"`

	// HealthDomain is the always-reachable, never-blocked reference domain.
	HealthDomain string `koanf:"health_domain" validate:"required,fqdn"`

	// BlockMarker is the CNAME target returned for blocked domains.
	BlockMarker string `koanf:"block_marker" validate:"required,fqdn"`

	CacheTTL  time.Duration `koanf:"cache_ttl" validate:"gte=0"`
	CacheSize int           `koanf:"cache_size" validate:"gte=1"`

	// MetricsAddr is the listen address of the Prometheus endpoint.
	// Empty disables it.
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,hostname_port"`
}

// DefaultAppConfig defines the default application configuration.
var DefaultAppConfig = AppConfig{
	Env:               "prod",
	LogLevel:          "info",
	ResolversFile:     "resolvers.yaml",
	StoreDriver:       "bolt",
	BoltPath:          "blockwatch.db",
	PostgresMaxConns:  10,
	NotifyRate:        30,
	ProbeTimeout:      3 * time.Second,
	ReconcileInterval: 60 * time.Second,
	HealthInterval:    60 * time.Second,
	HealthDomain:      "damcraft.de",
	BlockMarker:       "notice.cuii.info",
	CacheTTL:          30 * time.Second,
	CacheSize:         1024,
	MetricsAddr:       ":9153",
}

// validBcryptHash reports whether the field holds a parseable bcrypt hash.
func validBcryptHash(fl validator.FieldLevel) bool {
	_, err := bcrypt.Cost([]byte(fl.Field().String()))
	return err == nil
}

// envLoader loads environment variables with the prefix "BLOCKWATCH_".
// It lowercases the keys and removes the prefix.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads [DefaultAppConfig] through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
}

// registerValidation registers the custom "bcrypt_hash" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("bcrypt_hash", validBcryptHash)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
