package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	ar "github.com/podaac/ami-refresh"
)

var pruneVersionsCmd = &cobra.Command{
	Use:   "prune-versions",
	Short: "Delete old launch template versions",
	Long:  "Keeps the newest versions of the launch template, plus the default and latest versions, and deletes the rest",
	Run: func(cmd *cobra.Command, args []string) {
		refresher := newRefresher()

		deleted, err := refresher.PruneLaunchTemplateVersions(context.Background())
		if err != nil {
			fmt.Printf("Error pruning launch template versions: %s\n", err)
			os.Exit(1)
		}

		fmt.Printf("Deleted %d launch template versions %v\n", len(deleted), deleted)
	},
}

func init() {
	rootCmd.AddCommand(pruneVersionsCmd)

	pruneVersionsCmd.Flags().Int("limit", ar.DefaultLaunchTemplateLimit,
		"Number of launch template versions to keep [$LAUNCH_TEMPLATE_LIMIT]")
	bindFlag(keyLaunchTemplateLimit, pruneVersionsCmd.Flags().Lookup("limit"))
}
