// Package sitescmd implements the `terminus org sites` command group.
package sitescmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/terminus/cmd/terminus/shared"
	"github.com/go-ports/terminus/internal/models"
	"github.com/go-ports/terminus/internal/service"
	"github.com/go-ports/terminus/internal/ui"
)

// Command implements `terminus org sites`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	org  string
	site string
	tag  string
}

// New creates the sites command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "sites",
		Short: "List and manage the sites of an organization",
		Long:  "List and manage the sites of an organization. Without a subcommand the sites are listed.",
		Args:  cobra.NoArgs,
		RunE:  c.runList,
	}
	c.cmd.PersistentFlags().StringVar(&c.org, "org", "", "Organization name or ID")
	c.cmd.PersistentFlags().StringVar(&c.tag, "tag", "", "Only list sites with this tag")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the organization's sites",
		Args:  cobra.NoArgs,
		RunE:  c.runList,
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Add one of your sites to the organization",
		Args:  cobra.NoArgs,
		RunE:  c.runAdd,
	}
	add.Flags().StringVar(&c.site, "site", "", "Site name or ID")

	remove := &cobra.Command{
		Use:   "remove",
		Short: "Remove a site from the organization",
		Args:  cobra.NoArgs,
		RunE:  c.runRemove,
	}
	remove.Flags().StringVar(&c.site, "site", "", "Site name or ID")

	c.cmd.AddCommand(list, add, remove)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := c.ctx.Service()
	if err != nil {
		return err
	}
	org, err := c.ctx.PickOrganization(ctx, svc, c.org)
	if err != nil {
		return err
	}
	l, err := svc.ListSites(ctx, org, c.tag)
	if err != nil {
		return err
	}
	return c.ctx.RenderListing(cmd.OutOrStdout(), cmd.ErrOrStderr(), l)
}

func (c *Command) runAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, org, err := c.session(ctx)
	if err != nil {
		return err
	}
	site, label, err := c.pickSite(func() ([]models.SiteMembership, error) {
		own, err := svc.UserSites(ctx)
		if err != nil {
			return nil, err
		}
		return own.Slice(), nil
	})
	if err != nil {
		return err
	}
	if err := c.ctx.Confirm(fmt.Sprintf("Are you sure you want to add %s to %s ?",
		ui.Highlight.Sprint(label), ui.Highlight.Sprint(org.Name))); err != nil {
		return err
	}
	wf, err := svc.AddSite(ctx, org.ID, site)
	if err != nil {
		return err
	}
	return shared.Await(cmd, wf, fmt.Sprintf("Adding %s", label))
}

func (c *Command) runRemove(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, org, err := c.session(ctx)
	if err != nil {
		return err
	}
	site, label, err := c.pickSite(func() ([]models.SiteMembership, error) {
		sites, err := svc.OrganizationSites(ctx, org)
		if err != nil {
			return nil, err
		}
		return sites.Slice(), nil
	})
	if err != nil {
		return err
	}
	if err := c.ctx.Confirm(fmt.Sprintf("Are you sure you want to remove %s from %s ?",
		ui.Highlight.Sprint(label), ui.Highlight.Sprint(org.Name))); err != nil {
		return err
	}
	wf, err := svc.RemoveSite(ctx, org.ID, site)
	if err != nil {
		return err
	}
	return shared.Await(cmd, wf, fmt.Sprintf("Removing %s", label))
}

// session builds the service and resolves the organization choice.
func (c *Command) session(ctx context.Context) (*service.Service, models.Organization, error) {
	svc, err := c.ctx.Service()
	if err != nil {
		return nil, models.Organization{}, err
	}
	ref, err := c.ctx.PickOrganization(ctx, svc, c.org)
	if err != nil {
		return nil, models.Organization{}, err
	}
	org, err := svc.ResolveOrganization(ctx, ref)
	if err != nil {
		return nil, models.Organization{}, err
	}
	return svc, org, nil
}

// pickSite returns the site reference and a label for messages. A site given
// by flag is its own label.
func (c *Command) pickSite(load func() ([]models.SiteMembership, error)) (ref, label string, err error) {
	labels := make(map[string]string)
	ref, err = c.ctx.Pick("site", c.site, "Choose a site", func() ([]shared.Choice, error) {
		sites, err := load()
		if err != nil {
			return nil, err
		}
		choices := make([]shared.Choice, 0, len(sites))
		for _, m := range sites {
			labels[m.Site.ID] = m.Site.Name
			choices = append(choices, shared.Choice{Label: m.Site.Name, Value: m.Site.ID})
		}
		return choices, nil
	})
	if err != nil {
		return "", "", err
	}
	label = ref
	if name, ok := labels[ref]; ok {
		label = name
	}
	return ref, label, nil
}
