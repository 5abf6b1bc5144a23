package commands

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/marmos91/rrdpworker/pkg/config"
)

func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Print the effective configuration and engine limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd)
		},
	}
}

func runDoctor(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Setting", "Value"})
	table.Append([]string{"logging.level", cfg.Logging.Level})
	table.Append([]string{"logging.format", cfg.Logging.Format})
	table.Append([]string{"logging.output", cfg.Logging.Output})
	table.Append([]string{"telemetry.enabled", strconv.FormatBool(cfg.Telemetry.Enabled)})
	table.Append([]string{"telemetry.endpoint", cfg.Telemetry.Endpoint})
	table.Append([]string{"telemetry.profiling.enabled", strconv.FormatBool(cfg.Telemetry.Profiling.Enabled)})
	table.Append([]string{"metrics.enabled", strconv.FormatBool(cfg.Metrics.Enabled)})
	table.Append([]string{"metrics.listen_addr", cfg.Metrics.ListenAddr})
	table.Append([]string{"engine.control_fd", strconv.Itoa(cfg.Engine.ControlFD)})
	table.Append([]string{"engine.concurrency", strconv.Itoa(cfg.Engine.Concurrency)})
	table.Append([]string{"engine.read_buffer_size", cfg.Engine.ReadBufferSize.String()})
	table.Render()

	return nil
}
