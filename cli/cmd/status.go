package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare the target AMI with the launch template and list recent instance refreshes",
	Run: func(cmd *cobra.Command, args []string) {
		showStatus()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus() {
	refresher := newRefresher()

	status, err := refresher.Status(context.Background())
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	lt := status.LaunchTemplate
	fmt.Printf("\nLaunch template %s: default version %d, latest version %d\n\n",
		aws.ToString(lt.LaunchTemplateName), aws.ToInt64(lt.DefaultVersionNumber), aws.ToInt64(lt.LatestVersionNumber))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, " \t AMI \t Name \t Released")
	_, _ = fmt.Fprintf(w, "Target \t %s \t %s \t %s\n", aws.ToString(status.TargetImage.ImageId),
		aws.ToString(status.TargetImage.Name), aws.ToString(status.TargetImage.CreationDate))
	_, _ = fmt.Fprintf(w, "Current \t %s \t %s \t %s\n", aws.ToString(status.CurrentImage.ImageId),
		aws.ToString(status.CurrentImage.Name), aws.ToString(status.CurrentImage.CreationDate))
	_ = w.Flush()

	fmt.Printf("\nUp to date: %t\n", status.UpToDate)
	if !status.UpToDate {
		fmt.Printf("Target is newer: %t\n", status.TargetIsNewer)
	}

	if len(status.InstanceRefreshes) == 0 {
		fmt.Println("\nNo instance refreshes found")
		return
	}

	fmt.Println("\nRecent instance refreshes:")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID \t Status \t Started \t Reason")
	for _, ir := range status.InstanceRefreshes {
		started := "na"
		if ir.StartTime != nil {
			started = ir.StartTime.Format("2006-01-02 15:04:05")
		}
		_, _ = fmt.Fprintf(w, "%s \t %s \t %s \t %s\n", aws.ToString(ir.InstanceRefreshId), ir.Status,
			started, aws.ToString(ir.StatusReason))
	}
	_ = w.Flush()
	fmt.Println("")
}
