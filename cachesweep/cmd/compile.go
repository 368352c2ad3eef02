package cmd

import (
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Cross-compile the workloads of a sweep.",
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSettings(cmd)
		sw := resolveSweep(cmd)

		compileWorkloads(s, sw)

		okColor.Printf("%d workloads ready\n", len(sw.Workloads()))
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)

	addSweepFlags(compileCmd)
}
