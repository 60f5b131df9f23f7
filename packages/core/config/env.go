package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable postbox reads.
const EnvPrefix = "POSTBOX_"

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// FromEnv builds a partial config from POSTBOX_* variables, suitable for Merge.
func FromEnv(lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	c := &Config{}
	var problems []string

	if v, ok := get("ADDR"); ok {
		c.Addr = v
	}
	if v, ok := get("DATABASE"); ok {
		c.Database = v
	}
	if v, ok := get("JWT_SECRET"); ok {
		c.JWTSecret = v
	}
	if v, ok := get("TIMEOUT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			problems = append(problems, fmt.Sprintf("%sTIMEOUT=%q is not a positive number of milliseconds", EnvPrefix, v))
		}
		c.Timeout = n
	}
	if v, ok := get("PROXY"); ok {
		c.Proxy = v
	}
	if v, ok := get("RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%sRATE_LIMIT=%q is not a number", EnvPrefix, v))
		}
		c.RateLimit = f
	}
	if v, ok := get("VALIDATE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%sVALIDATE_SSL=%q is not a boolean", EnvPrefix, v))
		}
		c.ValidateSSL = BoolPtr(b)
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("LOG_FORMAT"); ok {
		c.LogFormat = strings.ToLower(v)
	}
	if v, ok := get("DEVELOPMENT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%sDEVELOPMENT=%q is not a boolean", EnvPrefix, v))
		}
		c.Development = BoolPtr(b)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(problems, "; "))
	}
	return c, nil
}

// Load resolves the effective configuration: defaults, then the config
// file (explicit path or the first one found in the working directory),
// then .env and POSTBOX_* variables.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	overrides, err := FromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	cfg = cfg.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
