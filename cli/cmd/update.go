package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var forceUpdate bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Point the launch template at the target AMI and start an instance refresh",
	Long:  "Runs the same check and update as the Lambda function",
	Run: func(cmd *cobra.Command, args []string) {
		refresher := newRefresher()

		result, err := refresher.Refresh(context.Background(), forceUpdate)
		if err != nil {
			fmt.Printf("Error updating launch template: %s\n", err)
			os.Exit(1)
		}

		fmt.Println(result.Message(refresherConfig().LaunchTemplateName))
		if result.Updated {
			fmt.Printf("New default version: %d\n", result.VersionNumber)
			fmt.Printf("Instance refresh: %s\n", result.InstanceRefreshID)
		}
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().BoolVar(&forceUpdate, "force", false,
		"Publish a new version and refresh instances even if the launch template already uses the target AMI")
}
