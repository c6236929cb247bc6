package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
)

var targetAMICmd = &cobra.Command{
	Use:   "target-ami",
	Short: "Show the AMI published in the SSM parameter",
	Long:  "Command reads the AMI id from the SSM parameter and returns a description of that image",
	Run: func(cmd *cobra.Command, args []string) {
		refresher := newRefresher()

		image, err := refresher.TargetImage(context.Background())
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		fmt.Printf("Target AMI is %s:\n\n", aws.ToString(image.ImageId))
		jb, _ := json.MarshalIndent(image, "", "  ")
		fmt.Printf("%s\n", string(jb))
	},
}

func init() {
	rootCmd.AddCommand(targetAMICmd)
}
