package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesweep/simulator"
)

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Write the simulator configuration script.",
	Long: "`topology` renders the script that builds the simulated system. " +
		"The system can be described in a JSON file; fields it leaves out " +
		"keep their default values.",
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSettings(cmd)

		t := simulator.DefaultTopology()

		if file, _ := cmd.Flags().GetString("file"); file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				fail(err)
			}

			if err := json.Unmarshal(data, &t); err != nil {
				fail(fmt.Errorf("topology %s: %w", file, err))
			}
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = s.ConfigScript
		}

		if err := simulator.WriteConfigScriptFile(out, t); err != nil {
			fail(err)
		}

		okColor.Printf("Configuration script written to %s\n", out)
	},
}

func init() {
	rootCmd.AddCommand(topologyCmd)

	topologyCmd.Flags().String("file", "", "JSON description of the system")
	topologyCmd.Flags().String("out", "", "Script to write, the configured one by default")
}
