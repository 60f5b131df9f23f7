package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		Database:        "sqlite://postbox.db",
		Timeout:         30000, // 30 seconds
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     BoolPtr(true),
		MaxBodyBytes:    10 << 20,
		RateBurst:       1,
		LogLevel:        "info",
		LogFormat:       "json",
		Development:     BoolPtr(false),
		NoColor:         BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Addr == defaults.Addr &&
		c.Database == defaults.Database &&
		c.JWTSecret == defaults.JWTSecret &&
		c.Timeout == defaults.Timeout &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == defaults.Proxy &&
		len(c.Headers) == 0 &&
		c.MaxBodyBytes == defaults.MaxBodyBytes &&
		c.RateLimit == defaults.RateLimit &&
		c.LogLevel == defaults.LogLevel &&
		c.LogFormat == defaults.LogFormat &&
		c.GetDevelopment() == defaults.GetDevelopment()
}
