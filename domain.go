package amirefresh

import (
	"fmt"
	"strings"
)

const (
	DefaultLaunchTemplateLimit = 5
	DefaultTimestampLayout     = "20060102T150405"
	DefaultRefreshHistory      = 5
	LatestVersion              = "$Latest"
	InternalServerErrorBody    = "Internal Server Error"
	Version                    = "0.0.0"

	EnvParameterName        = "SSM_PARAMETER_FOR_AMI"
	EnvLaunchTemplateName   = "LAUNCH_TEMPLATE_NAME"
	EnvAutoScalingGroupName = "AUTO_SCALING_GROUP_NAME"
	EnvSkipDecryption       = "SSM_SKIP_DECRYPTION"
	EnvLaunchTemplateLimit  = "LAUNCH_TEMPLATE_LIMIT"
)

// Config is loaded from the environment by LoadConfigFromEnv for the Lambda, or filled in
// from flags by the CLI. The first three fields are required. LaunchTemplateLimit only drives
// the CLI prune command, so the Lambda does not read it from the environment.
type Config struct {
	ParameterName        string `env:"SSM_PARAMETER_FOR_AMI"`
	LaunchTemplateName   string `env:"LAUNCH_TEMPLATE_NAME"`
	AutoScalingGroupName string `env:"AUTO_SCALING_GROUP_NAME"`
	SkipDecryption       bool   `env:"SSM_SKIP_DECRYPTION"`
	LaunchTemplateLimit  int
	TimestampLayout      string `env:"TIMESTAMP_LAYOUT" envDefault:"20060102T150405"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string `env:"LOG_FORMAT" envDefault:"json"`
}

var DefaultConfig = Config{
	ParameterName:        "",
	LaunchTemplateName:   "",
	AutoScalingGroupName: "",
	SkipDecryption:       false,
	LaunchTemplateLimit:  DefaultLaunchTemplateLimit,
	TimestampLayout:      DefaultTimestampLayout,
	LogLevel:             "info",
	LogFormat:            "json",
}

// ConfigurationError reports required settings that were left empty
type ConfigurationError struct {
	Fields []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Fields, ", "))
}

// LookupError is returned when the AMI parameter does not exist or holds no value
type LookupError struct {
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parameter %s has no value", e.Name)
	}
	return fmt.Sprintf("parameter %s not found: %s", e.Name, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Response is the Lambda result, serialized as {"statusCode": ..., "body": ...}
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Result describes what a single refresh run found and did
type Result struct {
	TargetImageID     string
	CurrentImageID    string
	Updated           bool
	VersionNumber     int64
	InstanceRefreshID string
}

// Message is the response body reported back to the caller
func (r Result) Message(launchTemplateName string) string {
	if r.Updated {
		return fmt.Sprintf("Launch template '%s' updated with AMI %s", launchTemplateName, r.TargetImageID)
	}
	return fmt.Sprintf("Launch template '%s' already updated with AMI %s", launchTemplateName, r.TargetImageID)
}
