package cmd

import (
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	ar "github.com/podaac/ami-refresh"
)

var aboutCmd = &cobra.Command{
	Use:   "about",
	Short: "Display information about this build of ami-refresh",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.Debug)
		rows := [][2]string{
			{"Version", build.Version},
			{"Library Version", ar.Version},
			{"Commit", build.Commit},
			{"Build Date", build.Date},
			{"Built By", build.BuiltBy},
			{"Go", runtime.Version()},
		}
		for _, row := range rows {
			_, _ = fmt.Fprintf(w, "%s:\t %s\n", row[0], row[1])
		}

		_ = w.Flush()
		fmt.Println("")
	},
}

func init() {
	rootCmd.AddCommand(aboutCmd)
}
