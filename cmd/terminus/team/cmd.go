// Package teamcmd implements the `terminus org team` command group.
package teamcmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/terminus/cmd/terminus/shared"
	"github.com/go-ports/terminus/internal/service"
	"github.com/go-ports/terminus/internal/ui"
)

// Command implements `terminus org team`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	org    string
	member string
	role   string
}

// New creates the team command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "team",
		Short: "List and manage the members of an organization",
		Long:  "List and manage the members of an organization. Without a subcommand the members are listed.",
		Args:  cobra.NoArgs,
		RunE:  c.runList,
	}
	c.cmd.PersistentFlags().StringVar(&c.org, "org", "", "Organization name or ID")

	addMember := &cobra.Command{
		Use:   "add-member",
		Short: "Invite a user to the organization",
		Args:  cobra.NoArgs,
		RunE:  c.runAddMember,
	}
	addMember.Flags().StringVar(&c.member, "member", "", "Email address of the user to add")
	addMember.Flags().StringVar(&c.role, "role", "", "Role to grant")

	removeMember := &cobra.Command{
		Use:   "remove-member",
		Short: "Remove a member from the organization",
		Args:  cobra.NoArgs,
		RunE:  c.runRemoveMember,
	}
	removeMember.Flags().StringVar(&c.member, "member", "", "Member UUID, email or name")

	changeRole := &cobra.Command{
		Use:   "change-role",
		Short: "Change the role of a member",
		Args:  cobra.NoArgs,
		RunE:  c.runChangeRole,
	}
	changeRole.Flags().StringVar(&c.member, "member", "", "Member UUID, email or name")
	changeRole.Flags().StringVar(&c.role, "role", "", "New role")

	c.cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the members of the organization",
			Args:  cobra.NoArgs,
			RunE:  c.runList,
		},
		&cobra.Command{
			Use:   "roles",
			Short: "List the roles the organization can grant",
			Args:  cobra.NoArgs,
			RunE:  c.runRoles,
		},
		addMember,
		removeMember,
		changeRole,
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, org, err := c.session(ctx)
	if err != nil {
		return err
	}
	l, err := svc.ListTeam(ctx, org)
	if err != nil {
		return err
	}
	return c.ctx.RenderListing(cmd.OutOrStdout(), cmd.ErrOrStderr(), l)
}

func (c *Command) runRoles(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, ref, err := c.session(ctx)
	if err != nil {
		return err
	}
	org, err := svc.ResolveOrganization(ctx, ref)
	if err != nil {
		return err
	}
	roles, err := svc.RoleChoices(ctx, org)
	if err != nil {
		return err
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return c.ctx.RenderList(cmd.OutOrStdout(), names)
}

func (c *Command) runAddMember(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, org, err := c.session(ctx)
	if err != nil {
		return err
	}
	email, err := c.ctx.Ask("member", c.member, "Email address of the new member")
	if err != nil {
		return err
	}
	role, err := c.ctx.PickRole(ctx, svc, org, c.role)
	if err != nil {
		return err
	}
	wf, err := svc.AddMember(ctx, org, email, role)
	if err != nil {
		return err
	}
	return shared.Await(cmd, wf, fmt.Sprintf("Adding %s", ui.Highlight.Sprint(email)))
}

func (c *Command) runRemoveMember(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, org, err := c.session(ctx)
	if err != nil {
		return err
	}
	member, err := c.pickMember(ctx, svc, org, false)
	if err != nil {
		return err
	}
	wf, err := svc.RemoveMember(ctx, org, member)
	if err != nil {
		return err
	}
	return shared.Await(cmd, wf, "Removing member")
}

func (c *Command) runChangeRole(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, org, err := c.session(ctx)
	if err != nil {
		return err
	}
	member, err := c.pickMember(ctx, svc, org, true)
	if err != nil {
		return err
	}
	role, err := c.ctx.PickRole(ctx, svc, org, c.role)
	if err != nil {
		return err
	}
	wf, err := svc.ChangeRole(ctx, org, member, role)
	if err != nil {
		return err
	}
	return shared.Await(cmd, wf, "Changing role")
}

// session builds the service and settles the organization choice.
func (c *Command) session(ctx context.Context) (*service.Service, string, error) {
	svc, err := c.ctx.Service()
	if err != nil {
		return nil, "", err
	}
	org, err := c.ctx.PickOrganization(ctx, svc, c.org)
	if err != nil {
		return nil, "", err
	}
	return svc, org, nil
}

// pickMember offers the organization's members. The session user is left
// out unless includeSelf is set.
func (c *Command) pickMember(ctx context.Context, svc *service.Service, orgRef string, includeSelf bool) (string, error) {
	return c.ctx.Pick("member", c.member, "Choose a member", func() ([]shared.Choice, error) {
		org, err := svc.ResolveOrganization(ctx, orgRef)
		if err != nil {
			return nil, err
		}
		members, err := svc.Members(ctx, org)
		if err != nil {
			return nil, err
		}
		var choices []shared.Choice
		for m := range members.All() {
			if !includeSelf && m.User.ID == svc.UserID() {
				continue
			}
			choices = append(choices, shared.Choice{
				Label: fmt.Sprintf("%s <%s>", m.User.DisplayName(), m.User.Email),
				Value: m.User.ID,
			})
		}
		return choices, nil
	})
}
