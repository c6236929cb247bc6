package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	ar "github.com/podaac/ami-refresh"
	"github.com/podaac/ami-refresh/internal/logging"
)

const (
	keyParameterName        = "ssm_parameter_for_ami"
	keyLaunchTemplateName   = "launch_template_name"
	keyAutoScalingGroupName = "auto_scaling_group_name"
	keySkipDecryption       = "ssm_skip_decryption"
	keyLogLevel             = "log_level"
	keyLaunchTemplateLimit  = "launch_template_limit"
)

var (
	AwsCfg  aws.Config
	cfgFile string
	Profile string
	Region  string

	build = BuildInfo{Version: "dev", Commit: "none", Date: "unknown", BuiltBy: "unknown"}
)

// BuildInfo identifies the ami-refresh binary, shown by --version and the about command
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
	BuiltBy string
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ami-refresh",
	Short: "Keep an ASG launch template on the AMI published in SSM",
	Long: `A CLI, library, and Lambda function that compares the AMI id stored in an SSM parameter with
the AMI in a launch template and, when they differ, publishes a new default launch template
version and starts an instance refresh on the auto-scaling group.`,
}

// Execute runs the root command. It is called once by main.main().
func Execute(info BuildInfo) {
	build = info
	rootCmd.Version = info.Version

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ami-refresh.yaml)")
	flags.StringVarP(&Profile, "profile", "p", "", "AWS shared credentials profile to use")
	flags.StringVarP(&Region, "region", "r", "us-west-2", "AWS region")

	flags.String("parameter", "", "SSM parameter holding the target AMI id [$SSM_PARAMETER_FOR_AMI]")
	flags.String("launch-template", "", "Launch template name [$LAUNCH_TEMPLATE_NAME]")
	flags.String("asg", "", "Auto-scaling group name [$AUTO_SCALING_GROUP_NAME]")
	flags.Bool("skip-decryption", false, "Read the SSM parameter without decryption [$SSM_SKIP_DECRYPTION]")
	flags.String("log-level", "info", "Log level [$LOG_LEVEL]")

	bindFlag(keyParameterName, flags.Lookup("parameter"))
	bindFlag(keyLaunchTemplateName, flags.Lookup("launch-template"))
	bindFlag(keyAutoScalingGroupName, flags.Lookup("asg"))
	bindFlag(keySkipDecryption, flags.Lookup("skip-decryption"))
	bindFlag(keyLogLevel, flags.Lookup("log-level"))
}

func bindFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".ami-refresh" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".ami-refresh")
	}

	// keys match the Lambda's environment variable names once upper-cased
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func initAwsCfg() {
	var cfgOpts []func(options *config.LoadOptions) error

	if Profile != "" {
		cfgOpts = append(cfgOpts, config.WithSharedConfigProfile(Profile))
	}
	if Region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(Region))
	}

	var err error
	AwsCfg, err = config.LoadDefaultConfig(context.Background(), cfgOpts...)
	if err != nil {
		fmt.Printf("failed to load AWS config with profile %s: %s\n", Profile, err)
		os.Exit(1)
	}
}

// refresherConfig builds the library config from flags, env and config file
func refresherConfig() *ar.Config {
	return &ar.Config{
		ParameterName:        viper.GetString(keyParameterName),
		LaunchTemplateName:   viper.GetString(keyLaunchTemplateName),
		AutoScalingGroupName: viper.GetString(keyAutoScalingGroupName),
		SkipDecryption:       viper.GetBool(keySkipDecryption),
		LaunchTemplateLimit:  viper.GetInt(keyLaunchTemplateLimit),
	}
}

func newRefresher() *ar.Refresher {
	initAwsCfg()

	logger := logging.New(logging.Config{Level: viper.GetString(keyLogLevel), Format: "console"})

	refresher, err := ar.NewRefresher(AwsCfg, refresherConfig(), logger)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	return refresher
}
