package config

import "fmt"

func validate(c *Config) error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.PageLoadTimeout <= 0 {
		return fmt.Errorf("page load timeout must be > 0")
	}
	if c.StartPage < 1 {
		return fmt.Errorf("start page must be >= 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be >= 1")
	}
	if c.CacheMaxSizeBytes <= 0 {
		return fmt.Errorf("cache max size must be > 0")
	}
	return nil
}
