package shared

import (
	"context"

	"github.com/go-ports/terminus/internal/service"
)

// PickOrganization returns ref or asks the user to choose one of their
// organizations.
func (c *Context) PickOrganization(ctx context.Context, svc *service.Service, ref string) (string, error) {
	return c.Pick("org", ref, "Choose an organization", func() ([]Choice, error) {
		orgs, err := svc.Organizations(ctx)
		if err != nil {
			return nil, err
		}
		choices := make([]Choice, 0, len(orgs))
		for _, m := range orgs {
			choices = append(choices, Choice{Label: m.Organization.Name, Value: m.Organization.ID})
		}
		return choices, nil
	})
}

// PickRole returns role or asks the user to choose one the organization
// allows.
func (c *Context) PickRole(ctx context.Context, svc *service.Service, orgRef, role string) (string, error) {
	return c.Pick("role", role, "Choose a role", func() ([]Choice, error) {
		org, err := svc.ResolveOrganization(ctx, orgRef)
		if err != nil {
			return nil, err
		}
		roles, err := svc.RoleChoices(ctx, org)
		if err != nil {
			return nil, err
		}
		choices := make([]Choice, 0, len(roles))
		for _, r := range roles {
			choices = append(choices, Choice{Label: string(r), Value: string(r)})
		}
		return choices, nil
	})
}
