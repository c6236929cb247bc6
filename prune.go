package amirefresh

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// PruneLaunchTemplateVersions deletes all but the newest launchTemplateLimit versions of the
// launch template. The default and latest versions are always kept. Returns the deleted
// version numbers.
func (r *Refresher) PruneLaunchTemplateVersions(ctx context.Context) ([]int64, error) {
	logger := r.log(ctx)

	lt, err := r.describeLaunchTemplate(ctx)
	if err != nil {
		return nil, err
	}

	versions, err := r.getTemplateVersions(ctx, lt)
	if err != nil {
		return nil, err
	}

	if len(versions) <= r.launchTemplateLimit {
		logger.Info().Int("versions", len(versions)).Int("limit", r.launchTemplateLimit).
			Msg("nothing to prune")
		return nil, nil
	}
	logger.Info().Int("versions", len(versions)).Int("limit", r.launchTemplateLimit).
		Msg("will delete oldest launch template versions")

	protected := []int64{aws.ToInt64(lt.DefaultVersionNumber), aws.ToInt64(lt.LatestVersionNumber)}

	sortNewestFirst(versions)

	var deleted []int64
	for _, v := range versions[r.launchTemplateLimit:] {
		number := aws.ToInt64(v.VersionNumber)
		if slices.Contains(protected, number) {
			continue
		}
		if err := r.deleteLaunchTemplateVersion(ctx, number); err != nil {
			return deleted, fmt.Errorf("error deleting launch template %s version %d: %w",
				r.launchTemplateName, number, err)
		}
		deleted = append(deleted, number)
	}

	return deleted, nil
}

func (r *Refresher) getTemplateVersions(ctx context.Context, lt *ec2types.LaunchTemplate) ([]ec2types.LaunchTemplateVersion, error) {
	var versions []ec2types.LaunchTemplateVersion
	paginator := ec2.NewDescribeLaunchTemplateVersionsPaginator(r.ec2Client, &ec2.DescribeLaunchTemplateVersionsInput{
		LaunchTemplateId: lt.LaunchTemplateId,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error retrieving page of launch template versions: %w", err)
		}
		versions = append(versions, page.LaunchTemplateVersions...)
	}
	return versions, nil
}

func (r *Refresher) deleteLaunchTemplateVersion(ctx context.Context, version int64) error {
	r.log(ctx).Info().Int64("version", version).Msg("deleting launch template version")

	_, err := r.ec2Client.DeleteLaunchTemplateVersions(ctx, &ec2.DeleteLaunchTemplateVersionsInput{
		LaunchTemplateName: aws.String(r.launchTemplateName),
		Versions:           []string{strconv.FormatInt(version, 10)},
	})
	return err
}

// sortNewestFirst orders versions by creation time, breaking ties on version number
func sortNewestFirst(versions []ec2types.LaunchTemplateVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		ti, tj := aws.ToTime(versions[i].CreateTime), aws.ToTime(versions[j].CreateTime)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return aws.ToInt64(versions[i].VersionNumber) > aws.ToInt64(versions[j].VersionNumber)
	})
}
