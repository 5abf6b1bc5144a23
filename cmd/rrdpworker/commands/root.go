// Package commands wires the rrdpworker CLI surface (cobra): a root
// command plus run/doctor/version subcommands.
package commands

import (
	"github.com/spf13/cobra"
)

// BuildInfo carries version metadata injected by the linker at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

var configPath string

// Execute builds the root command tree and runs it.
func Execute(info BuildInfo) error {
	root := newRootCommand(info)
	return root.Execute()
}

func newRootCommand(info BuildInfo) *cobra.Command {
	root := &cobra.Command{
		Use:   "rrdpworker",
		Short: "RRDP client worker process",
		Long: "rrdpworker is the RRDP (RFC 8182) client worker: a headless child process " +
			"that speaks a framed control protocol over a parent-supplied file descriptor " +
			"and keeps a set of RPKI publication points synchronized by notification, " +
			"snapshot, and delta documents.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: $XDG_CONFIG_HOME/rrdpworker/config.yaml)")

	root.AddCommand(newRunCommand())
	root.AddCommand(newDoctorCommand())
	root.AddCommand(newVersionCommand(info))

	return root
}
