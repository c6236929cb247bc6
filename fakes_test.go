package amirefresh

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgTypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmTypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog"
)

const (
	testParameter = "/app/ami"
	testTemplate  = "app-lt"
	testASG       = "app-asg"
)

// recorder keeps the order of AWS calls across all fakes
type recorder struct {
	calls []string
}

func (r *recorder) add(op string) {
	r.calls = append(r.calls, op)
}

type fakeSSM struct {
	rec   *recorder
	value string
	err   error
	input *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.rec.add("GetParameter")
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmTypes.Parameter{Name: params.Name, Value: aws.String(f.value)},
	}, nil
}

type fakeEC2 struct {
	rec *recorder

	imageID        string
	latestVersion  int64
	defaultVersion int64
	versions       []ec2types.LaunchTemplateVersion
	images         []ec2types.Image

	describeErr error
	versionsErr error
	createErr   error
	modifyErr   error
	deleteErr   error

	created  []*ec2.CreateLaunchTemplateVersionInput
	modified []*ec2.ModifyLaunchTemplateInput
	deleted  []string
}

func (f *fakeEC2) CreateLaunchTemplateVersion(ctx context.Context, params *ec2.CreateLaunchTemplateVersionInput, optFns ...func(*ec2.Options)) (*ec2.CreateLaunchTemplateVersionOutput, error) {
	f.rec.add("CreateLaunchTemplateVersion")
	f.created = append(f.created, params)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.latestVersion++
	f.imageID = aws.ToString(params.LaunchTemplateData.ImageId)
	return &ec2.CreateLaunchTemplateVersionOutput{
		LaunchTemplateVersion: &ec2types.LaunchTemplateVersion{
			LaunchTemplateName: params.LaunchTemplateName,
			VersionNumber:      aws.Int64(f.latestVersion),
		},
	}, nil
}

func (f *fakeEC2) DeleteLaunchTemplateVersions(ctx context.Context, params *ec2.DeleteLaunchTemplateVersionsInput, optFns ...func(*ec2.Options)) (*ec2.DeleteLaunchTemplateVersionsOutput, error) {
	f.rec.add("DeleteLaunchTemplateVersions")
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, params.Versions...)
	return &ec2.DeleteLaunchTemplateVersionsOutput{}, nil
}

func (f *fakeEC2) DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.rec.add("DescribeImages")
	var images []ec2types.Image
	for _, img := range f.images {
		for _, id := range params.ImageIds {
			if aws.ToString(img.ImageId) == id {
				images = append(images, img)
			}
		}
	}
	return &ec2.DescribeImagesOutput{Images: images}, nil
}

func (f *fakeEC2) DescribeLaunchTemplates(ctx context.Context, params *ec2.DescribeLaunchTemplatesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeLaunchTemplatesOutput, error) {
	f.rec.add("DescribeLaunchTemplates")
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &ec2.DescribeLaunchTemplatesOutput{
		LaunchTemplates: []ec2types.LaunchTemplate{
			{
				LaunchTemplateId:     aws.String("lt-0123456789"),
				LaunchTemplateName:   aws.String(testTemplate),
				LatestVersionNumber:  aws.Int64(f.latestVersion),
				DefaultVersionNumber: aws.Int64(f.defaultVersion),
			},
		},
	}, nil
}

func (f *fakeEC2) DescribeLaunchTemplateVersions(ctx context.Context, params *ec2.DescribeLaunchTemplateVersionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeLaunchTemplateVersionsOutput, error) {
	f.rec.add("DescribeLaunchTemplateVersions")
	if f.versionsErr != nil {
		return nil, f.versionsErr
	}
	if len(params.Versions) == 1 && params.Versions[0] == LatestVersion {
		return &ec2.DescribeLaunchTemplateVersionsOutput{
			LaunchTemplateVersions: []ec2types.LaunchTemplateVersion{
				{
					LaunchTemplateId: params.LaunchTemplateId,
					VersionNumber:    aws.Int64(f.latestVersion),
					LaunchTemplateData: &ec2types.ResponseLaunchTemplateData{
						ImageId: aws.String(f.imageID),
					},
				},
			},
		}, nil
	}
	return &ec2.DescribeLaunchTemplateVersionsOutput{LaunchTemplateVersions: f.versions}, nil
}

func (f *fakeEC2) ModifyLaunchTemplate(ctx context.Context, params *ec2.ModifyLaunchTemplateInput, optFns ...func(*ec2.Options)) (*ec2.ModifyLaunchTemplateOutput, error) {
	f.rec.add("ModifyLaunchTemplate")
	f.modified = append(f.modified, params)
	if f.modifyErr != nil {
		return nil, f.modifyErr
	}
	v, err := strconv.ParseInt(aws.ToString(params.DefaultVersion), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid default version: %w", err)
	}
	f.defaultVersion = v
	return &ec2.ModifyLaunchTemplateOutput{}, nil
}

type fakeASG struct {
	rec        *recorder
	refreshErr error
	refreshes  []asgTypes.InstanceRefresh
	started    []*autoscaling.StartInstanceRefreshInput
}

func (f *fakeASG) DescribeInstanceRefreshes(ctx context.Context, params *autoscaling.DescribeInstanceRefreshesInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeInstanceRefreshesOutput, error) {
	f.rec.add("DescribeInstanceRefreshes")
	return &autoscaling.DescribeInstanceRefreshesOutput{InstanceRefreshes: f.refreshes}, nil
}

func (f *fakeASG) StartInstanceRefresh(ctx context.Context, params *autoscaling.StartInstanceRefreshInput, optFns ...func(*autoscaling.Options)) (*autoscaling.StartInstanceRefreshOutput, error) {
	f.rec.add("StartInstanceRefresh")
	f.started = append(f.started, params)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &autoscaling.StartInstanceRefreshOutput{InstanceRefreshId: aws.String("refresh-1")}, nil
}

type fixture struct {
	rec *recorder
	ssm *fakeSSM
	ec2 *fakeEC2
	asg *fakeASG
}

// newFixture returns fakes where the parameter holds target and the latest launch
// template version (number 1, also the default) uses current
func newFixture(target, current string) *fixture {
	rec := &recorder{}
	return &fixture{
		rec: rec,
		ssm: &fakeSSM{rec: rec, value: target},
		ec2: &fakeEC2{rec: rec, imageID: current, latestVersion: 1, defaultVersion: 1},
		asg: &fakeASG{rec: rec},
	}
}

func (f *fixture) clients() Clients {
	return Clients{SSM: f.ssm, EC2: f.ec2, AutoScaling: f.asg}
}

func testConfig() *Config {
	return &Config{
		ParameterName:        testParameter,
		LaunchTemplateName:   testTemplate,
		AutoScalingGroupName: testASG,
	}
}

func (f *fixture) refresher(logger zerolog.Logger) (*Refresher, error) {
	return NewRefresherWithClients(f.clients(), testConfig(), logger)
}
