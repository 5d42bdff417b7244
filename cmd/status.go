package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/grovetools/linkwatch/cli"
	"github.com/grovetools/linkwatch/internal/pidfile"
	"github.com/grovetools/linkwatch/internal/status"
	"github.com/grovetools/linkwatch/logging"
	"github.com/spf13/cobra"
)

type statusReport struct {
	Running bool           `json:"running"`
	PID     int            `json:"pid,omitempty"`
	Status  *status.Status `json:"status,omitempty"`
}

// NewStatusCmd creates the `status` command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether watch is running and what it watched at its last rescan",
		RunE:  runStatusE,
	}
}

func runStatusE(cmd *cobra.Command, args []string) error {
	running, pid, err := pidfile.IsRunning(pidfile.DefaultPath())
	if err != nil {
		return err
	}
	report := statusReport{Running: running, PID: pid}
	if running {
		report.Status, err = status.Load(status.DefaultPath())
		if err != nil {
			return err
		}
	}

	if cli.GetOptions(cmd).JSONOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
	if !running {
		pretty.WarnPretty("linkwatch watch is not running")
		return nil
	}
	pretty.Success(fmt.Sprintf("linkwatch watch is running (PID %d)", pid))
	if report.Status == nil {
		return nil
	}

	s := report.Status
	pretty.Field("config", s.Config)
	pretty.Field("last rescan", fmt.Sprintf("%s (%s ago, %s)",
		s.UpdatedAt.Format(time.RFC3339), time.Since(s.UpdatedAt).Round(time.Second), s.Trigger))
	pretty.Field("projects", len(s.Projects))
	for _, p := range s.Projects {
		pretty.Blank()
		pretty.Field(p.Ident, fmt.Sprintf("%d recompile requests", p.Requests))
		for _, l := range p.Links {
			pretty.Link(l.Path, l.Target)
		}
	}
	return nil
}
