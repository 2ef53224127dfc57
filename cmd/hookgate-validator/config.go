package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goliatone/go-config/cfgx"
)

const envPrefix = "HOOKGATE_VALIDATOR_"

type validatorConfig struct {
	Addr          string        `mapstructure:"addr"`
	Secret        string        `mapstructure:"secret"`
	MaxSkew       time.Duration `mapstructure:"max_skew"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes"`
	ReservedWords []string      `mapstructure:"reserved_words"`
	LogLevel      string        `mapstructure:"log_level"`
}

func defaultValidatorConfig() validatorConfig {
	return validatorConfig{
		Addr:         ":8081",
		MaxSkew:      5 * time.Minute,
		MaxBodyBytes: 1 << 20,
		LogLevel:     "info",
	}
}

// Validate normalizes the decoded values in place.
func (c *validatorConfig) Validate() error {
	c.Addr = strings.TrimSpace(c.Addr)
	c.Secret = strings.TrimSpace(c.Secret)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.Secret == "" {
		return fmt.Errorf("%sSECRET is required", envPrefix)
	}
	if c.Addr == "" {
		return fmt.Errorf("%sADDR must not be empty", envPrefix)
	}
	if c.MaxSkew <= 0 {
		return fmt.Errorf("%sMAX_SKEW must be positive", envPrefix)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%sMAX_BODY_BYTES must be a positive integer", envPrefix)
	}
	words := make([]string, 0, len(c.ReservedWords))
	for _, word := range c.ReservedWords {
		if word = strings.ToLower(strings.TrimSpace(word)); word != "" {
			words = append(words, word)
		}
	}
	c.ReservedWords = words
	return nil
}

// loadConfig decodes HOOKGATE_VALIDATOR_* variables over the defaults. PORT
// is honoured when no address is set.
func loadConfig(getenv func(string) string) (validatorConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	raw := map[string]any{}
	for _, key := range []string{"addr", "secret", "max_skew", "max_body_bytes", "reserved_words", "log_level"} {
		if value := strings.TrimSpace(getenv(envPrefix + strings.ToUpper(key))); value != "" {
			raw[key] = value
		}
	}
	if _, ok := raw["addr"]; !ok {
		if port := strings.TrimSpace(getenv("PORT")); port != "" {
			raw["addr"] = ":" + port
		}
	}
	return cfgx.Build[validatorConfig](raw,
		cfgx.WithDefaults(defaultValidatorConfig()),
		cfgx.WithDecodeHooks[validatorConfig](mapstructure.StringToSliceHookFunc(",")),
		cfgx.WithValidator[validatorConfig]((*validatorConfig).Validate),
	)
}
