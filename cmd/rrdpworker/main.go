// Command rrdpworker is the RRDP client worker process: it speaks the
// framed control-channel protocol to a parent process and keeps a set of
// publication points synchronized by notification/snapshot/delta (spec
// §1, §6).
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/rrdpworker/cmd/rrdpworker/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := commands.Execute(commands.BuildInfo{Version: version, Commit: commit, Date: date}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
