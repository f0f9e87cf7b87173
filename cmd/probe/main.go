// Command probe is the autonomous black-box web testing service: an
// HTTP API by default, or a one-shot CLI run/explore/batch/status/
// report command via its subcommands.
package main

import "github.com/proberun/probe/internal/cmd"

func main() {
	cmd.Execute()
}
