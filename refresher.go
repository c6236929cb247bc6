package amirefresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmTypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/podaac/ami-refresh/internal"
)

type Refresher struct {
	parameterName        string
	launchTemplateName   string
	autoScalingGroupName string
	skipDecryption       bool
	launchTemplateLimit  int
	timestampLayout      string
	logger               zerolog.Logger

	ssmClient SSMAPI
	ec2Client EC2API
	asgClient AutoScalingAPI
}

func NewRefresher(awsCfg aws.Config, config *Config, logger zerolog.Logger) (*Refresher, error) {
	if awsCfg.Region == "" {
		return nil, fmt.Errorf("awsCfg must be initialized before use")
	}

	return NewRefresherWithClients(NewClients(awsCfg), config, logger)
}

// NewRefresherWithClients accepts pre-built clients, e.g. test doubles
func NewRefresherWithClients(clients Clients, config *Config, logger zerolog.Logger) (*Refresher, error) {
	if clients.SSM == nil || clients.EC2 == nil || clients.AutoScaling == nil {
		return nil, fmt.Errorf("ssm, ec2 and autoscaling clients are all required")
	}

	refresher := &Refresher{
		logger:    logger,
		ssmClient: clients.SSM,
		ec2Client: clients.EC2,
		asgClient: clients.AutoScaling,
	}

	if config == nil {
		config = &DefaultConfig
	}

	if err := refresher.loadConfig(*config); err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	return refresher, nil
}

func (r *Refresher) loadConfig(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if config.LaunchTemplateLimit == 0 {
		config.LaunchTemplateLimit = DefaultConfig.LaunchTemplateLimit
	}
	if config.TimestampLayout == "" {
		config.TimestampLayout = DefaultConfig.TimestampLayout
	}

	r.parameterName = config.ParameterName
	r.launchTemplateName = config.LaunchTemplateName
	r.autoScalingGroupName = config.AutoScalingGroupName
	r.skipDecryption = config.SkipDecryption
	r.launchTemplateLimit = config.LaunchTemplateLimit
	r.timestampLayout = config.TimestampLayout

	return nil
}

// Handle is the Lambda entry point. The event payload may be any JSON value; only an
// EventBridge detail-type, when present, is read for logging. Failures are reported in the
// response, never as an error, and never with internal detail.
func (r *Refresher) Handle(ctx context.Context, event json.RawMessage) (Response, error) {
	logCtx := r.logger.With().
		Str("launch_template", r.launchTemplateName).
		Str("asg", r.autoScalingGroupName)
	if detailType := eventDetailType(event); detailType != "" {
		logCtx = logCtx.Str("detail_type", detailType)
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logCtx = logCtx.Str("request_id", lc.AwsRequestID)
	}
	logger := logCtx.Logger()
	ctx = logger.WithContext(ctx)

	result, err := r.Refresh(ctx, false)
	if err != nil {
		logger.Error().Err(err).Str("error_code", apiErrorCode(err)).Msg("ami refresh failed")
		return Response{
			StatusCode: http.StatusInternalServerError,
			Body:       InternalServerErrorBody,
		}, nil
	}

	return Response{
		StatusCode: http.StatusOK,
		Body:       result.Message(r.launchTemplateName),
	}, nil
}

// eventDetailType returns the detail-type of an EventBridge event, or "" for anything else
func eventDetailType(event json.RawMessage) string {
	var e struct {
		DetailType string `json:"detail-type"`
	}
	if err := json.Unmarshal(event, &e); err != nil {
		return ""
	}
	return e.DetailType
}

// Refresh compares the AMI in the parameter with the one in the latest launch template
// version. When they differ, or force is set, a new default version is published and an
// instance refresh is started. A failed lookup of the current AMI is logged and treated as a
// mismatch.
func (r *Refresher) Refresh(ctx context.Context, force bool) (Result, error) {
	logger := r.log(ctx)

	targetImageID, err := r.TargetImageID(ctx)
	if err != nil {
		return Result{}, err
	}
	logger.Info().Str("ami", targetImageID).Msg("new AMI ID")

	result := Result{TargetImageID: targetImageID}

	currentImageID, err := r.CurrentImageID(ctx)
	if err != nil {
		logger.Warn().Err(err).Str("error_code", apiErrorCode(err)).Msg("error checking launch template")
	} else {
		logger.Info().Str("ami", currentImageID).Msg("current AMI ID")
	}
	result.CurrentImageID = currentImageID

	if targetImageID == currentImageID {
		if !force {
			logger.Info().Msg("launch template already uses the target AMI")
			return result, nil
		}
		logger.Info().Msg("launch template already uses the target AMI, but updating anyway")
	}

	version, err := r.UpdateLaunchTemplate(ctx, targetImageID)
	if err != nil {
		return result, err
	}
	result.VersionNumber = version
	result.Updated = true

	refreshID, err := r.StartInstanceRefresh(ctx)
	if err != nil {
		return result, err
	}
	result.InstanceRefreshID = refreshID

	return result, nil
}

// TargetImageID reads the AMI id published in the configured SSM parameter. The constructors
// already reject an empty parameter name; the check here guards a Refresher built by hand.
func (r *Refresher) TargetImageID(ctx context.Context) (string, error) {
	if r.parameterName == "" {
		return "", &ConfigurationError{Fields: []string{EnvParameterName}}
	}

	out, err := r.ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(r.parameterName),
		WithDecryption: aws.Bool(!r.skipDecryption),
	})
	if err != nil {
		var notFound *ssmTypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", &LookupError{Name: r.parameterName, Err: err}
		}
		return "", fmt.Errorf("failed to get parameter %s: %w", r.parameterName, err)
	}

	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", &LookupError{Name: r.parameterName}
	}

	return aws.ToString(out.Parameter.Value), nil
}

// CurrentImageID returns the image id in the latest version of the launch template
func (r *Refresher) CurrentImageID(ctx context.Context) (string, error) {
	lt, err := r.describeLaunchTemplate(ctx)
	if err != nil {
		return "", err
	}

	ltData, err := r.latestLaunchTemplateData(ctx, lt)
	if err != nil {
		return "", err
	}

	return aws.ToString(ltData.ImageId), nil
}

// UpdateLaunchTemplate creates a new version of the launch template from $Latest with only the
// image id replaced, then makes that version the default. If setting the default fails the new
// version is left in place.
func (r *Refresher) UpdateLaunchTemplate(ctx context.Context, imageID string) (int64, error) {
	logger := r.log(ctx)

	input := &ec2.CreateLaunchTemplateVersionInput{
		LaunchTemplateName: aws.String(r.launchTemplateName),
		SourceVersion:      aws.String(LatestVersion),
		VersionDescription: aws.String(fmt.Sprintf("%s %s", imageID, internal.CurrentTimestamp(r.timestampLayout))),
		LaunchTemplateData: &ec2types.RequestLaunchTemplateData{
			ImageId: aws.String(imageID),
		},
	}
	if _, err := r.ec2Client.CreateLaunchTemplateVersion(ctx, input); err != nil {
		return 0, fmt.Errorf("failed to create a new launch template version, %w", err)
	}

	lt, err := r.describeLaunchTemplate(ctx)
	if err != nil {
		return 0, err
	}
	latest := aws.ToInt64(lt.LatestVersionNumber)
	logger.Info().Int64("version", latest).Msg("latest launch template version")

	in := &ec2.ModifyLaunchTemplateInput{
		LaunchTemplateName: aws.String(r.launchTemplateName),
		DefaultVersion:     aws.String(strconv.FormatInt(latest, 10)),
	}
	if _, err := r.ec2Client.ModifyLaunchTemplate(ctx, in); err != nil {
		return 0, fmt.Errorf("failed to set default version %d on launch template %s: %w", latest, r.launchTemplateName, err)
	}

	logger.Info().Str("ami", imageID).Int64("version", latest).Msg("updated launch template with new AMI")
	return latest, nil
}

// StartInstanceRefresh starts an instance refresh on the Auto Scaling group and returns its id.
// It does not wait for the refresh to finish.
func (r *Refresher) StartInstanceRefresh(ctx context.Context) (string, error) {
	r.log(ctx).Info().Msg("starting ASG instance refresh")

	out, err := r.asgClient.StartInstanceRefresh(ctx, &autoscaling.StartInstanceRefreshInput{
		AutoScalingGroupName: aws.String(r.autoScalingGroupName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to start instance refresh for ASG %s: %w", r.autoScalingGroupName, err)
	}

	return aws.ToString(out.InstanceRefreshId), nil
}

func (r *Refresher) describeLaunchTemplate(ctx context.Context) (*ec2types.LaunchTemplate, error) {
	result, err := r.ec2Client.DescribeLaunchTemplates(ctx, &ec2.DescribeLaunchTemplatesInput{
		LaunchTemplateNames: []string{r.launchTemplateName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe launch templates: %w", err)
	}

	// we should only get one LT back, but just to be safe, loop through results and look for specific match
	for _, l := range result.LaunchTemplates {
		if aws.ToString(l.LaunchTemplateName) == r.launchTemplateName {
			return &l, nil
		}
	}

	return nil, fmt.Errorf("unable to find a launch template by name %s", r.launchTemplateName)
}

func (r *Refresher) latestLaunchTemplateData(ctx context.Context, lt *ec2types.LaunchTemplate) (*ec2types.ResponseLaunchTemplateData, error) {
	ltv, err := r.ec2Client.DescribeLaunchTemplateVersions(ctx, &ec2.DescribeLaunchTemplateVersionsInput{
		LaunchTemplateId: lt.LaunchTemplateId,
		Versions:         []string{LatestVersion},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe launch template versions: %w", err)
	}

	if len(ltv.LaunchTemplateVersions) == 0 || ltv.LaunchTemplateVersions[0].LaunchTemplateData == nil {
		return nil, fmt.Errorf("launch template %s has no data for version %s", r.launchTemplateName, LatestVersion)
	}

	return ltv.LaunchTemplateVersions[0].LaunchTemplateData, nil
}

// log prefers the per-invocation logger stored in ctx by Handle
func (r *Refresher) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &r.logger
}

func apiErrorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}
