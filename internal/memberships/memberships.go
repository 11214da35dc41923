package memberships

import (
	"context"

	"github.com/go-ports/terminus/internal/collection"
	"github.com/go-ports/terminus/internal/models"
	"github.com/go-ports/terminus/internal/workflow"
)

// ---------------------------------------------------------------------------
// User organization memberships
// ---------------------------------------------------------------------------

// UserOrganizationMemberships lists the organizations a user belongs to.
// Lookup accepts the membership ID, the membership's own name, the
// organization ID, or the organization's name.
type UserOrganizationMemberships struct {
	*collection.Collection[models.UserOrganizationMembership]
	Owner  Owner
	client Client
}

// NewUserOrganizationMemberships returns an empty collection for userID.
func NewUserOrganizationMemberships(userID string, client Client) *UserOrganizationMemberships {
	owner := UserOwner(userID)
	return &UserOrganizationMemberships{
		Collection: collection.New(owner.ListingPath("organizations"), true, models.ParseUserOrganizationMembership),
		Owner:      owner,
		client:     client,
	}
}

// Populate fetches every membership page.
func (m *UserOrganizationMemberships) Populate(ctx context.Context) error {
	return m.Collection.Populate(ctx, m.client)
}

// ---------------------------------------------------------------------------
// Organization user memberships
// ---------------------------------------------------------------------------

// OrganizationUserMemberships lists an organization's members and changes
// them. Lookup accepts the membership ID, user ID, email or display name.
type OrganizationUserMemberships struct {
	*collection.Collection[models.OrganizationUserMembership]
	Owner  Owner
	client Client
	opts   workflow.Options
}

// NewOrganizationUserMemberships returns an empty collection for orgID.
func NewOrganizationUserMemberships(orgID string, client Client, opts workflow.Options) *OrganizationUserMemberships {
	owner := OrganizationOwner(orgID)
	return &OrganizationUserMemberships{
		Collection: collection.New(owner.ListingPath("users"), true, models.ParseOrganizationUserMembership),
		Owner:      owner,
		client:     client,
		opts:       opts,
	}
}

// Populate fetches every membership page.
func (m *OrganizationUserMemberships) Populate(ctx context.Context) error {
	return m.Collection.Populate(ctx, m.client)
}

// AddMember invites email with role.
func (m *OrganizationUserMemberships) AddMember(ctx context.Context, email string, role models.Role) (*workflow.Workflow, error) {
	return startWorkflow(ctx, m.client, m.Owner, m.opts, OpAddOrgUser, map[string]any{
		"user_email": email,
		"role":       string(role),
	})
}

// RemoveMember removes member from the organization.
func (m *OrganizationUserMemberships) RemoveMember(ctx context.Context, member models.OrganizationUserMembership) (*workflow.Workflow, error) {
	return startWorkflow(ctx, m.client, m.Owner, m.opts, OpRemoveOrgUser, map[string]any{
		"user_id": member.User.ID,
	})
}

// SetRole changes member's role.
func (m *OrganizationUserMemberships) SetRole(ctx context.Context, member models.OrganizationUserMembership, role models.Role) (*workflow.Workflow, error) {
	return startWorkflow(ctx, m.client, m.Owner, m.opts, OpUpdateOrgUser, map[string]any{
		"user_id": member.User.ID,
		"role":    string(role),
	})
}

// ---------------------------------------------------------------------------
// Site memberships
// ---------------------------------------------------------------------------

// OrganizationSiteMemberships lists the sites associated with an
// organization and associates or dissociates sites.
type OrganizationSiteMemberships struct {
	*collection.Collection[models.SiteMembership]
	Owner  Owner
	client Client
	opts   workflow.Options
}

// NewOrganizationSiteMemberships returns an empty collection for orgID.
func NewOrganizationSiteMemberships(orgID string, client Client, opts workflow.Options) *OrganizationSiteMemberships {
	owner := OrganizationOwner(orgID)
	return &OrganizationSiteMemberships{
		Collection: collection.New(owner.ListingPath("sites"), true, models.ParseSiteMembership),
		Owner:      owner,
		client:     client,
		opts:       opts,
	}
}

// Populate fetches every membership page.
func (m *OrganizationSiteMemberships) Populate(ctx context.Context) error {
	return m.Collection.Populate(ctx, m.client)
}

// WithTag returns the memberships tagged tag, in listing order. An empty
// tag returns every membership.
func (m *OrganizationSiteMemberships) WithTag(tag string) []models.SiteMembership {
	if tag == "" {
		return m.Slice()
	}
	return m.FilterBy(func(sm models.SiteMembership) bool { return sm.HasTag(tag) })
}

// Create associates an existing site with the organization.
func (m *OrganizationSiteMemberships) Create(ctx context.Context, site models.Site) (*workflow.Workflow, error) {
	return startWorkflow(ctx, m.client, m.Owner, m.opts, OpAddOrgSite, map[string]any{
		"site_id": site.ID,
		"role":    string(models.RoleTeamMember),
	})
}

// Delete dissociates site from the organization.
func (m *OrganizationSiteMemberships) Delete(ctx context.Context, site models.Site) (*workflow.Workflow, error) {
	return startWorkflow(ctx, m.client, m.Owner, m.opts, OpRemoveOrgSite, map[string]any{
		"site_id": site.ID,
	})
}

// UserSiteMemberships lists the sites a user belongs to directly.
type UserSiteMemberships struct {
	*collection.Collection[models.SiteMembership]
	Owner  Owner
	client Client
}

// NewUserSiteMemberships returns an empty collection for userID.
func NewUserSiteMemberships(userID string, client Client) *UserSiteMemberships {
	owner := UserOwner(userID)
	return &UserSiteMemberships{
		Collection: collection.New(owner.ListingPath("sites"), true, models.ParseSiteMembership),
		Owner:      owner,
		client:     client,
	}
}

// Populate fetches every membership page.
func (m *UserSiteMemberships) Populate(ctx context.Context) error {
	return m.Collection.Populate(ctx, m.client)
}
