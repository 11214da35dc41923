// Package mcpcmd implements the `terminus mcp` command group.
package mcpcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/terminus/cmd/terminus/shared"
	internalmcp "github.com/go-ports/terminus/internal/mcp"
	"github.com/go-ports/terminus/internal/setup"
)

// Command implements `terminus mcp`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the mcp command. Without a subcommand it serves over stdio.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "mcp",
		Short: "Start the read-only organization MCP server (stdio transport)",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
	c.cmd.AddCommand(
		newInstall(),
		newUninstall(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.Service()
	if err != nil {
		return err
	}
	return internalmcp.Serve(cmd.Context(), svc)
}

// ---------------------------------------------------------------------------
// mcp install / uninstall
// ---------------------------------------------------------------------------

type agentFlags struct {
	configDir string
	project   bool
}

func (f *agentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configDir, "config-dir", "", "Path to the agent's config directory")
	cmd.Flags().BoolVar(&f.project, "project", false, "Use the current project instead of the global config")
}

func (f *agentFlags) target(name string) (setup.Agent, string, error) {
	agent, err := setup.ParseAgent(name)
	if err != nil {
		return "", "", err
	}
	path, err := setup.ConfigPath(agent, f.configDir, f.project)
	if err != nil {
		return "", "", err
	}
	return agent, path, nil
}

func newInstall() *cobra.Command {
	var f agentFlags
	cmd := &cobra.Command{
		Use:   "install <claude-code|cursor|codex|opencode>",
		Short: "Register the terminus MCP server with a coding agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, path, err := f.target(args[0])
			if err != nil {
				return err
			}
			added, err := setup.Install(agent, path)
			if err != nil {
				return err
			}
			if added {
				fmt.Fprintf(cmd.OutOrStdout(), "Installed: %s in %s\n", setup.ServerName, path)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Already installed")
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func newUninstall() *cobra.Command {
	var f agentFlags
	cmd := &cobra.Command{
		Use:   "uninstall <claude-code|cursor|codex|opencode>",
		Short: "Remove the terminus MCP server from a coding agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, path, err := f.target(args[0])
			if err != nil {
				return err
			}
			removed, err := setup.Uninstall(agent, path)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s from %s\n", setup.ServerName, path)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to remove")
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}
