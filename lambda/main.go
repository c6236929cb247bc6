package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"

	ar "github.com/podaac/ami-refresh"
	"github.com/podaac/ami-refresh/internal/logging"
)

func main() {
	cfg, err := ar.LoadConfigFromEnv()
	if err != nil {
		logger := logging.New(logging.Config{})
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load AWS config")
	}

	refresher, err := ar.NewRefresher(awsCfg, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create refresher")
	}

	lambda.Start(refresher.Handle)
}
