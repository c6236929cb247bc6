package amirefresh

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgTypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type Status struct {
	LaunchTemplate    ec2types.LaunchTemplate
	TargetImage       ec2types.Image
	CurrentImage      ec2types.Image
	UpToDate          bool
	TargetIsNewer     bool
	InstanceRefreshes []asgTypes.InstanceRefresh
}

// Status gathers the target and current images and the recent instance refreshes of the
// group. It makes no changes.
func (r *Refresher) Status(ctx context.Context) (Status, error) {
	var status Status

	lt, err := r.describeLaunchTemplate(ctx)
	if err != nil {
		return status, err
	}
	status.LaunchTemplate = *lt

	ltData, err := r.latestLaunchTemplateData(ctx, lt)
	if err != nil {
		return status, err
	}

	status.TargetImage, err = r.TargetImage(ctx)
	if err != nil {
		return status, err
	}

	status.CurrentImage, err = r.getImageByID(ctx, aws.ToString(ltData.ImageId))
	if err != nil {
		return status, err
	}

	status.UpToDate = aws.ToString(status.TargetImage.ImageId) == aws.ToString(status.CurrentImage.ImageId)
	if !status.UpToDate {
		status.TargetIsNewer, err = isNewerImage(status.CurrentImage, status.TargetImage)
		if err != nil {
			return status, err
		}
	}

	status.InstanceRefreshes, err = r.RecentInstanceRefreshes(ctx, DefaultRefreshHistory)
	if err != nil {
		return status, err
	}

	return status, nil
}

// TargetImage resolves the AMI id in the parameter and describes that image
func (r *Refresher) TargetImage(ctx context.Context) (ec2types.Image, error) {
	imageID, err := r.TargetImageID(ctx)
	if err != nil {
		return ec2types.Image{}, err
	}

	return r.getImageByID(ctx, imageID)
}

// RecentInstanceRefreshes returns up to max instance refreshes for the group, newest first
func (r *Refresher) RecentInstanceRefreshes(ctx context.Context, max int32) ([]asgTypes.InstanceRefresh, error) {
	out, err := r.asgClient.DescribeInstanceRefreshes(ctx, &autoscaling.DescribeInstanceRefreshesInput{
		AutoScalingGroupName: aws.String(r.autoScalingGroupName),
		MaxRecords:           aws.Int32(max),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance refreshes for ASG %s: %w", r.autoScalingGroupName, err)
	}

	return out.InstanceRefreshes, nil
}

func (r *Refresher) getImageByID(ctx context.Context, imageID string) (ec2types.Image, error) {
	if imageID == "" {
		return ec2types.Image{}, fmt.Errorf("image id is empty")
	}

	out, err := r.ec2Client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{imageID},
	})
	if err != nil {
		return ec2types.Image{}, fmt.Errorf("failed to describe image %s: %w", imageID, err)
	}

	i := slices.IndexFunc(out.Images, func(img ec2types.Image) bool {
		return aws.ToString(img.ImageId) == imageID
	})
	if i < 0 {
		return ec2types.Image{}, fmt.Errorf("image %s not found", imageID)
	}

	return out.Images[i], nil
}

// isNewerImage reports whether candidate was created after current
func isNewerImage(current, candidate ec2types.Image) (bool, error) {
	currentCreated, err := imageCreated(current)
	if err != nil {
		return false, err
	}

	candidateCreated, err := imageCreated(candidate)
	if err != nil {
		return false, err
	}

	return candidateCreated.After(currentCreated), nil
}

// imageCreated parses an image CreationDate, e.g. 2024-06-10T12:00:00.000Z
func imageCreated(img ec2types.Image) (time.Time, error) {
	created, err := time.Parse(time.RFC3339, aws.ToString(img.CreationDate))
	if err != nil {
		return time.Time{}, fmt.Errorf("image %s has an invalid creation date: %w", aws.ToString(img.ImageId), err)
	}
	return created, nil
}
