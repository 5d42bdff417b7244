package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/linkwatch/cli"
	"github.com/grovetools/linkwatch/config"
	"github.com/grovetools/linkwatch/errors"
	"github.com/grovetools/linkwatch/internal/symlink"
	"github.com/grovetools/linkwatch/logging"
	"github.com/grovetools/linkwatch/pkg/host"
	"github.com/spf13/cobra"
)

// ProjectScan is the scan result for one project.
type ProjectScan struct {
	Ident         string           `json:"ident"`
	CodePath      string           `json:"code_path"`
	Active        bool             `json:"active"`
	ServerContent string           `json:"server_content,omitempty"`
	ToolAddon     bool             `json:"tool_addon"`
	Links         []symlink.Link   `json:"links"`
	Broken        []symlink.Broken `json:"broken,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// NewScanCmd creates the `scan` command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Show the symlinked directories each project would watch",
		Long: `Resolves the symlinked subdirectories of every configured project once
and prints what watch would do, without starting any watchers.

Examples:
  linkwatch scan
  linkwatch scan --project acme.game --json`,
		RunE: runScanE,
	}
	cmd.Flags().StringP("project", "p", "", "Only scan the project with this identifier")
	return cmd
}

func runScanE(cmd *cobra.Command, args []string) error {
	logger := cli.GetLogger(cmd, "scan")

	cfg, _, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}

	h := host.NewStatic(cfg, logger)
	results, err := scanProjects(h, symlink.NewResolver(logger))
	if err != nil {
		return err
	}
	if only, _ := cmd.Flags().GetString("project"); only != "" {
		if results, err = filterProject(results, only); err != nil {
			return err
		}
	}

	if cli.GetOptions(cmd).JSONOutput {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
	for i, r := range results {
		if i > 0 {
			pretty.Blank()
		}
		if !r.Active {
			pretty.Field(r.Ident, "inactive")
			continue
		}
		pretty.Success(r.Ident)
		if r.ServerContent != "" {
			pretty.Field("server content", r.ServerContent)
		}
		if r.ToolAddon {
			pretty.Field("tool addon", "yes")
		}
		if r.Error != "" {
			pretty.ErrorPretty("scan failed", fmt.Errorf("%s", r.Error))
			continue
		}
		if len(r.Links) == 0 && len(r.Broken) == 0 {
			pretty.Field("symlinks", "none")
		}
		for _, l := range r.Links {
			pretty.Link(l.Path, l.Target)
		}
		for _, b := range r.Broken {
			pretty.WarnPretty(fmt.Sprintf("Broken symlink %s -/> %s", b.Path, b.Target))
		}
	}
	return nil
}

// scanProjects resolves every project's symlinks the way a rescan would,
// without creating watchers.
func scanProjects(h host.Host, resolver *symlink.Resolver) ([]ProjectScan, error) {
	projects, err := h.LocalProjects()
	if err != nil {
		return nil, err
	}

	results := make([]ProjectScan, 0, len(projects))
	for _, p := range projects {
		r := ProjectScan{
			Ident:    p.Ident(),
			CodePath: p.CodePath(),
			Active:   p.Active(),
			Links:    []symlink.Link{},
		}
		if !r.Active {
			results = append(results, r)
			continue
		}
		if c, ok := h.FindServerContent(r.Ident); ok {
			r.ServerContent = string(c.Kind())
		}
		_, r.ToolAddon = h.FindToolAddon(r.Ident)

		res, err := resolver.Scan(r.CodePath)
		if err != nil {
			r.Error = err.Error()
		} else {
			if res.Links != nil {
				r.Links = res.Links
			}
			r.Broken = res.Broken
		}
		results = append(results, r)
	}
	return results, nil
}

// filterProject keeps the result whose identifier matches ident the way host
// lookups do.
func filterProject(results []ProjectScan, ident string) ([]ProjectScan, error) {
	want := config.NormalizeIdent(ident)
	for _, r := range results {
		if config.NormalizeIdent(r.Ident) == want {
			return []ProjectScan{r}, nil
		}
	}
	return nil, errors.ProjectNotFound(ident)
}
