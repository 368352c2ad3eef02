// Command cachesweep runs and analyzes cache design sweeps.
package main

import "github.com/sarchlab/cachesweep/cachesweep/cmd"

func main() {
	cmd.Execute()
}
