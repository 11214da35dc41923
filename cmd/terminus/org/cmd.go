// Package orgcmd implements the `terminus org` command group.
package orgcmd

import (
	"github.com/spf13/cobra"

	"github.com/go-ports/terminus/cmd/terminus/shared"
	sitescmd "github.com/go-ports/terminus/cmd/terminus/sites"
	teamcmd "github.com/go-ports/terminus/cmd/terminus/team"
)

// Command implements `terminus org`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the org command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "org",
		Short: "Work with your organizations",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	c.cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the organizations you belong to",
			Args:  cobra.NoArgs,
			RunE:  c.runList,
		},
		teamcmd.New(ctx).Cmd(),
		sitescmd.New(ctx).Cmd(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) runList(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.Service()
	if err != nil {
		return err
	}
	l, err := svc.ListOrganizations(cmd.Context())
	if err != nil {
		return err
	}
	return c.ctx.RenderListing(cmd.OutOrStdout(), cmd.ErrOrStderr(), l)
}
