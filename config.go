package amirefresh

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// LoadConfigFromEnv parses Config from environment variables and validates it
func LoadConfigFromEnv() (*Config, error) {
	var config Config
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate returns a *ConfigurationError naming every required field that is empty
func (c *Config) Validate() error {
	var missing []string
	if c.ParameterName == "" {
		missing = append(missing, EnvParameterName)
	}
	if c.LaunchTemplateName == "" {
		missing = append(missing, EnvLaunchTemplateName)
	}
	if c.AutoScalingGroupName == "" {
		missing = append(missing, EnvAutoScalingGroupName)
	}
	if len(missing) > 0 {
		return &ConfigurationError{Fields: missing}
	}
	if c.LaunchTemplateLimit < 0 {
		return fmt.Errorf("launch template limit must not be negative, got %d", c.LaunchTemplateLimit)
	}
	return nil
}
