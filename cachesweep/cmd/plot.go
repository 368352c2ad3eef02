package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesweep/plotting"
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render the standard charts of a results table.",
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSettings(cmd)
		t, csv := loadTable(cmd, s)

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = filepath.Join(filepath.Dir(csv), "plots")
		}

		r := plotting.NewRenderer(out)
		r.LogSizes, _ = cmd.Flags().GetBool("log")

		written, err := r.RenderAll(t.Rows())
		if err != nil {
			fail(err)
		}

		for _, path := range written {
			fmt.Println(path)
		}

		okColor.Printf("%d charts written to %s\n", len(written), out)
	},
}

func init() {
	rootCmd.AddCommand(plotCmd)

	addTableFlags(plotCmd)
	plotCmd.Flags().String("out", "", "Directory for the charts")
	plotCmd.Flags().Bool("log", true, "Put cache sizes on a logarithmic axis")
}
